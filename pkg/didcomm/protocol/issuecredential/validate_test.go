/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
)

func TestEncodeAttrValue(t *testing.T) {
	require.Equal(t, "42", encodeAttrValue("42"))
	require.Equal(t, "-7", encodeAttrValue("-7"))
	require.Equal(t, "2147483647", encodeAttrValue("2147483647"))

	for _, raw := range []string{"2147483648", "Jane", "", "4.2"} {
		encoded := encodeAttrValue(raw)
		require.NotEqual(t, raw, encoded)
		require.Regexp(t, "^[0-9]+$", encoded)
		require.Equal(t, encoded, encodeAttrValue(raw))
	}

	require.NotEqual(t, encodeAttrValue("Jane"), encodeAttrValue("John"))
}

func TestValidateAttributes(t *testing.T) {
	schema := &registry.Schema{ID: schemaDL, AttributeNames: []string{"first_name", "last_name", licenseClassKey}}

	require.NoError(t, validateAttributes(schema, dlAttributes()))

	reversed := dlAttributes()
	reversed[0], reversed[2] = reversed[2], reversed[0]
	require.NoError(t, validateAttributes(schema, reversed))

	require.Error(t, validateAttributes(schema, nil))
	require.Error(t, validateAttributes(schema, dlAttributes()[:2]))
	require.Error(t, validateAttributes(schema, append(dlAttributes(), Attribute{Name: "age", Value: "42"})))
	require.Error(t, validateAttributes(schema, append(dlAttributes()[:2], Attribute{Name: "first_name"})))
	require.Error(t, validateAttributes(schema, append(dlAttributes()[:2], Attribute{Value: "C"})))
}

func TestSameAttributes(t *testing.T) {
	reversed := dlAttributes()
	reversed[0], reversed[2] = reversed[2], reversed[0]

	require.True(t, sameAttributes(dlAttributes(), reversed))

	changed := dlAttributes()
	changed[1].Value = "Roe"

	require.False(t, sameAttributes(dlAttributes(), changed))
	require.False(t, sameAttributes(dlAttributes(), dlAttributes()[:2]))
}

func TestSubjectAttributes(t *testing.T) {
	attrs, err := subjectAttributes(dlDocument())
	require.NoError(t, err)
	require.Equal(t, dlAttributes(), attrs)

	doc := dlDocument()
	doc[subjectKey] = []interface{}{doc[subjectKey]}

	attrs, err = subjectAttributes(doc)
	require.NoError(t, err)
	require.Len(t, attrs, 3)

	_, err = subjectAttributes(map[string]interface{}{})
	require.Error(t, err)

	_, err = subjectAttributes(map[string]interface{}{subjectKey: map[string]interface{}{"id": holderDID}})
	require.Error(t, err)
}

func TestValidateJSONLD(t *testing.T) {
	loader, err := NewDocumentLoader()
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, validateJSONLD(dlDocument(), loader))
	})

	t.Run("Undefined term", func(t *testing.T) {
		doc := map[string]interface{}{
			"@context": map[string]interface{}{
				"credentialSubject": map[string]interface{}{"@id": dlVocabulary + "subject"},
				"first_name":        dlVocabulary + "first_name",
			},
			"credentialSubject": map[string]interface{}{
				"first_name":  "Jane",
				"middle_name": "Q",
			},
		}

		require.Error(t, validateJSONLD(doc, loader))
	})

	t.Run("No context", func(t *testing.T) {
		require.Error(t, validateJSONLD(withoutKeys(dlDocument(), contextKey), loader))
	})

	t.Run("Remote context is not fetched", func(t *testing.T) {
		doc := dlDocument()
		doc[contextKey] = "https://example.org/contexts/dl.jsonld"

		require.Error(t, validateJSONLD(doc, loader))
	})

	t.Run("Preloaded context", func(t *testing.T) {
		url := "https://example.org/contexts/dl.jsonld"

		preloaded, err := NewDocumentLoader(ContextDocument{
			URL:     url,
			Content: []byte(`{"@context": {"@vocab": "` + dlVocabulary + `"}}`),
		})
		require.NoError(t, err)

		doc := dlDocument()
		doc[contextKey] = url

		require.NoError(t, validateJSONLD(doc, preloaded))
	})

	t.Run("Invalid context document", func(t *testing.T) {
		_, err := NewDocumentLoader(ContextDocument{URL: "https://example.org/bad", Content: []byte("{")})
		require.Error(t, err)
	})
}

func TestWithoutKeys(t *testing.T) {
	doc := dlDocument()
	doc[proofKey] = map[string]interface{}{"type": "Ed25519Signature2018"}

	stripped := withoutKeys(doc, proofKey, credentialStatusKey)
	require.NotContains(t, stripped, proofKey)
	require.Contains(t, doc, proofKey)
}
