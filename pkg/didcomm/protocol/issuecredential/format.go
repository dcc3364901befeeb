/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

// attachment formats
const (
	IndyCredFilterFormat   = "hlindy/cred-filter@v2.0"
	IndyCredAbstractFormat = "hlindy/cred-abstract@v2.0"
	IndyCredReqFormat      = "hlindy/cred-req@v2.0"
	IndyCredFormat         = "hlindy/cred@v2.0"
	LDProofVCDetailFormat  = "aries/ld-proof-vc-detail@v1.0"
	LDProofVCFormat        = "aries/ld-proof-vc@v1.0"
)

const (
	mimeTypeJSON         = "application/json"
	revocationStatusType = "AnonCredsRevocationStatus"
	credentialStatusKey  = "credentialStatus"
	proofKey             = "proof"
)

type msgKind int

const (
	kindPropose msgKind = iota
	kindOffer
	kindRequest
	kindIssue
)

var formatTags = map[exchange.Format]map[msgKind]string{
	exchange.FormatIndy: {
		kindPropose: IndyCredFilterFormat,
		kindOffer:   IndyCredAbstractFormat,
		kindRequest: IndyCredReqFormat,
		kindIssue:   IndyCredFormat,
	},
	exchange.FormatJSONLD: {
		kindPropose: LDProofVCDetailFormat,
		kindOffer:   LDProofVCDetailFormat,
		kindRequest: LDProofVCDetailFormat,
		kindIssue:   LDProofVCFormat,
	},
}

var errNoAttachment = errors.New("no attachment")

// IndyCredentialFilter identifies the credential type of an AnonCreds proposal, offer or request.
type IndyCredentialFilter struct {
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
}

// IndyAttrValue is a raw attribute value with its AnonCreds encoding.
type IndyAttrValue struct {
	Raw     string `json:"raw"`
	Encoded string `json:"encoded"`
}

// IndyCredential is the AnonCreds credential payload.
type IndyCredential struct {
	SchemaID  string                   `json:"schema_id"`
	CredDefID string                   `json:"cred_def_id"`
	RevRegID  string                   `json:"rev_reg_id,omitempty"`
	CredRevID string                   `json:"cred_rev_id,omitempty"`
	Values    map[string]IndyAttrValue `json:"values"`
}

// LDProofVCDetailOptions are the proof options of a JSON-LD credential detail.
// CredentialDefinitionID binds the document to a credential definition of the issuer.
type LDProofVCDetailOptions struct {
	ProofType              string `json:"proofType,omitempty"`
	CredentialDefinitionID string `json:"credentialDefinitionId,omitempty"`
}

// LDProofVCDetail is the JSON-LD proposal, offer and request payload.
type LDProofVCDetail struct {
	Credential map[string]interface{}  `json:"credential"`
	Options    *LDProofVCDetailOptions `json:"options,omitempty"`
}

// payload is the format-specific content of a message.
type payload struct {
	format     exchange.Format
	filter     IndyCredentialFilter
	credential *IndyCredential
	document   map[string]interface{}
}

func validFormat(f exchange.Format) bool {
	_, ok := formatTags[f]

	return ok
}

func newAttachment(f exchange.Format, kind msgKind, content interface{}) ([]Format, []decorator.Attachment) {
	id := uuid.New().String()

	return []Format{{AttachID: id, Format: formatTags[f][kind]}},
		[]decorator.Attachment{{ID: id, MimeType: mimeTypeJSON, Data: decorator.AttachmentData{JSON: content}}}
}

// parsePayload decodes the first attachment whose format is known for the message kind.
func parsePayload(formats []Format, attachments []decorator.Attachment, kind msgKind) (*payload, error) {
	for _, f := range formats {
		for credFormat, tags := range formatTags {
			if tags[kind] != f.Format {
				continue
			}

			raw, err := fetchAttachment(attachments, f.AttachID)
			if err != nil {
				return nil, err
			}

			return decodePayload(credFormat, kind, raw)
		}
	}

	return nil, fmt.Errorf("%w: no supported credential format", ErrProtocolViolation)
}

func fetchAttachment(attachments []decorator.Attachment, id string) ([]byte, error) {
	for i := range attachments {
		if attachments[i].ID != id {
			continue
		}

		raw, err := attachments[i].Data.Fetch()
		if err != nil {
			return nil, fmt.Errorf("%w: attachment %s: %s", ErrProtocolViolation, id, err)
		}

		return raw, nil
	}

	return nil, fmt.Errorf("%w: %s: %s", ErrProtocolViolation, errNoAttachment, id)
}

func decodePayload(f exchange.Format, kind msgKind, raw []byte) (*payload, error) {
	p := &payload{format: f}

	var err error

	switch {
	case f == exchange.FormatIndy && kind == kindIssue:
		p.credential = &IndyCredential{}
		err = json.Unmarshal(raw, p.credential)
		p.filter = IndyCredentialFilter{SchemaID: p.credential.SchemaID, CredDefID: p.credential.CredDefID}
	case f == exchange.FormatIndy:
		err = json.Unmarshal(raw, &p.filter)
	case kind == kindIssue:
		err = json.Unmarshal(raw, &p.document)
	default:
		detail := &LDProofVCDetail{}
		err = json.Unmarshal(raw, detail)
		p.document = detail.Credential

		if detail.Options != nil {
			p.filter.CredDefID = detail.Options.CredentialDefinitionID
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: decode %s payload: %s", ErrProtocolViolation, f, err)
	}

	if p.format == exchange.FormatJSONLD && p.document == nil {
		return nil, fmt.Errorf("%w: missing JSON-LD credential", ErrProtocolViolation)
	}

	return p, nil
}

// requestContent builds the attachment content of proposals, offers and requests.
func requestContent(rec *exchange.Record) (interface{}, error) {
	if rec.Format == exchange.FormatIndy {
		return &IndyCredentialFilter{SchemaID: rec.SchemaID, CredDefID: rec.CredentialDefinitionID}, nil
	}

	doc, err := documentOf(rec)
	if err != nil {
		return nil, err
	}

	return &LDProofVCDetail{
		Credential: doc,
		Options:    &LDProofVCDetailOptions{CredentialDefinitionID: rec.CredentialDefinitionID},
	}, nil
}

// issueContent builds the credential attached to the issue message.
func issueContent(rec *exchange.Record) (interface{}, error) {
	if rec.Format == exchange.FormatIndy {
		values := make(map[string]IndyAttrValue, len(rec.Attributes))
		for _, a := range rec.Attributes {
			values[a.Name] = IndyAttrValue{Raw: a.Value, Encoded: encodeAttrValue(a.Value)}
		}

		return &IndyCredential{
			SchemaID:  rec.SchemaID,
			CredDefID: rec.CredentialDefinitionID,
			RevRegID:  rec.RevocationRegistryID,
			CredRevID: rec.RevocationIndex,
			Values:    values,
		}, nil
	}

	doc, err := documentOf(rec)
	if err != nil {
		return nil, err
	}

	if rec.Revocable {
		doc[credentialStatusKey] = map[string]interface{}{
			"id":                   rec.RevocationRegistryID + "#" + rec.RevocationIndex,
			"type":                 revocationStatusType,
			"revocationRegistryId": rec.RevocationRegistryID,
			"revocationIndex":      rec.RevocationIndex,
		}
	}

	return doc, nil
}

func documentOf(rec *exchange.Record) (map[string]interface{}, error) {
	if len(rec.Credential) == 0 {
		return nil, fmt.Errorf("%w: record has no JSON-LD credential", ErrProtocolViolation)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Credential, &doc); err != nil {
		return nil, fmt.Errorf("decode JSON-LD credential: %w", err)
	}

	return doc, nil
}

// revocationOf returns the revocation metadata carried by an issued credential.
func (p *payload) revocationOf() (regID, index string) {
	if p.credential != nil {
		return p.credential.RevRegID, p.credential.CredRevID
	}

	status, ok := p.document[credentialStatusKey].(map[string]interface{})
	if !ok {
		return "", ""
	}

	regID, _ = status["revocationRegistryId"].(string) // nolint: errcheck
	index, _ = status["revocationIndex"].(string)      // nolint: errcheck

	return regID, index
}

// attributes returns the attributes carried by an issued credential.
func (p *payload) attributes() ([]Attribute, error) {
	if p.credential != nil {
		attrs := make([]Attribute, 0, len(p.credential.Values))
		for name, v := range p.credential.Values {
			if v.Encoded != encodeAttrValue(v.Raw) {
				return nil, fmt.Errorf("attribute %s: encoded value does not match raw value", name)
			}

			attrs = append(attrs, Attribute{Name: name, Value: v.Raw})
		}

		return attrs, nil
	}

	return subjectAttributes(p.document)
}
