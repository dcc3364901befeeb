/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"reflect"
	"strconv"

	"github.com/piprate/json-gold/ld"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
)

const (
	contextKey = "@context"
	subjectKey = "credentialSubject"
)

var errNetworkDisabled = errors.New("network access to JSON-LD contexts is disabled")

// ContextDocument is a JSON-LD context served by the offline document loader.
type ContextDocument struct {
	URL     string
	Content []byte
}

type offlineTransport struct{}

func (offlineTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("%w: %s", errNetworkDisabled, req.URL)
}

// NewDocumentLoader returns a JSON-LD document loader that never reaches the network.
// Only the given contexts, and contexts embedded in documents, can be resolved.
func NewDocumentLoader(contexts ...ContextDocument) (*ld.CachingDocumentLoader, error) {
	loader := ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(&http.Client{Transport: offlineTransport{}}))

	for _, c := range contexts {
		doc, err := ld.DocumentFromReader(bytes.NewReader(c.Content))
		if err != nil {
			return nil, fmt.Errorf("parse JSON-LD context %s: %w", c.URL, err)
		}

		loader.AddDocument(c.URL, doc)
	}

	return loader, nil
}

// validateAttributes checks the attributes against the schema: every schema attribute
// must be present exactly once, and nothing else.
func validateAttributes(schema *registry.Schema, attrs []Attribute) error {
	if len(attrs) == 0 {
		return errors.New("credential attributes are required")
	}

	names := make([]string, 0, len(attrs))

	for _, a := range attrs {
		if a.Name == "" {
			return errors.New("attribute name is required")
		}

		if slices.Contains(names, a.Name) {
			return fmt.Errorf("duplicate attribute %s", a.Name)
		}

		names = append(names, a.Name)
	}

	expected := slices.Clone(schema.AttributeNames)
	slices.Sort(expected)
	slices.Sort(names)

	if !slices.Equal(expected, names) {
		return fmt.Errorf("attributes %v do not match schema %s attributes %v", names, schema.ID, expected)
	}

	return nil
}

// sameAttributes compares name/value pairs, ignoring order.
func sameAttributes(a, b []Attribute) bool {
	if len(a) != len(b) {
		return false
	}

	return maps.Equal(attributeMap(a), attributeMap(b))
}

func attributeMap(attrs []Attribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name] = a.Value
	}

	return m
}

// sortedAttributes returns the attributes ordered by name.
func sortedAttributes(attrs []Attribute) []Attribute {
	res := slices.Clone(attrs)
	slices.SortFunc(res, func(a, b Attribute) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})

	return res
}

// encodeAttrValue applies the AnonCreds attribute encoding: 32-bit integers are kept,
// anything else is the decimal form of its SHA-256 digest.
func encodeAttrValue(raw string) string {
	if i, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return strconv.FormatInt(i, 10)
	}

	sum := sha256.Sum256([]byte(raw))

	return new(big.Int).SetBytes(sum[:]).String()
}

// subjectAttributes flattens the scalar claims of the credential subject.
func subjectAttributes(doc map[string]interface{}) ([]Attribute, error) {
	subject := doc[subjectKey]

	if list, ok := subject.([]interface{}); ok && len(list) > 0 {
		subject = list[0]
	}

	claims, ok := subject.(map[string]interface{})
	if !ok {
		return nil, errors.New("credential has no credentialSubject")
	}

	attrs := make([]Attribute, 0, len(claims))

	for name, v := range claims {
		if name == "id" {
			continue
		}

		switch v.(type) {
		case map[string]interface{}, []interface{}:
			continue
		}

		attrs = append(attrs, Attribute{Name: name, Value: fmt.Sprint(v)})
	}

	if len(attrs) == 0 {
		return nil, errors.New("credentialSubject has no claims")
	}

	return sortedAttributes(attrs), nil
}

// validateJSONLD checks that the document compacts against its own context without losing structure.
func validateJSONLD(doc map[string]interface{}, loader ld.DocumentLoader) error {
	docCtx, ok := doc[contextKey]
	if !ok {
		return errors.New("JSON-LD document has no @context")
	}

	input, err := deepCopy(doc)
	if err != nil {
		return err
	}

	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.ProcessingMode = ld.JsonLd_1_1
	opts.DocumentLoader = loader

	compacted, err := proc.Compact(input, map[string]interface{}{contextKey: docCtx}, opts)
	if err != nil {
		return fmt.Errorf("compact JSON-LD document: %w", err)
	}

	if !mapsHaveSameStructure(doc, compacted) {
		return errors.New("JSON-LD doc has different structure after compaction")
	}

	return nil
}

// withoutKeys returns a shallow copy of the document without the given top-level keys.
func withoutKeys(doc map[string]interface{}, keys ...string) map[string]interface{} {
	res := maps.Clone(doc)
	for _, k := range keys {
		delete(res, k)
	}

	return res
}

func deepCopy(doc map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal JSON-LD document: %w", err)
	}

	var res map[string]interface{}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("unmarshal JSON-LD document: %w", err)
	}

	return res, nil
}

func mapsHaveSameStructure(originalMap, compactedMap map[string]interface{}) bool {
	original := compactMap(originalMap)
	compacted := compactMap(compactedMap)

	if reflect.DeepEqual(original, compacted) {
		return true
	}

	if len(original) != len(compacted) {
		return false
	}

	for k, v1 := range original {
		v1Map, isMap := v1.(map[string]interface{})
		if !isMap {
			continue
		}

		v2, present := compacted[k]
		if !present { // the term was renamed by the context
			continue
		}

		v2Map, isMap := v2.(map[string]interface{})
		if !isMap {
			return false
		}

		if !mapsHaveSameStructure(v1Map, v2Map) {
			return false
		}
	}

	return true
}

func compactMap(m map[string]interface{}) map[string]interface{} {
	mCopy := make(map[string]interface{})

	for k, v := range m {
		if k == contextKey {
			continue
		}

		vNorm := compactValue(v)

		switch kv := vNorm.(type) {
		case []interface{}:
			mCopy[k] = compactSlice(kv)
		case map[string]interface{}:
			mCopy[k] = compactMap(kv)
		default:
			mCopy[k] = vNorm
		}
	}

	return mCopy
}

func compactSlice(s []interface{}) []interface{} {
	sCopy := make([]interface{}, len(s))

	for i := range s {
		sItem := compactValue(s[i])

		if m, ok := sItem.(map[string]interface{}); ok {
			sCopy[i] = compactMap(m)

			continue
		}

		sCopy[i] = sItem
	}

	return sCopy
}

func compactValue(v interface{}) interface{} {
	switch cv := v.(type) {
	case []interface{}:
		if len(cv) == 1 {
			return compactValue(cv[0])
		}

		return cv
	case map[string]interface{}:
		if len(cv) == 1 {
			if id, ok := cv["id"]; ok {
				return id
			}
		}

		return cv
	default:
		return cv
	}
}
