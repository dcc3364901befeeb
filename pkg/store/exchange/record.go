/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"encoding/json"
	"time"
)

// Role is the side of the exchange a record belongs to.
type Role string

const (
	// RoleIssuer marks records owned by the issuer state machine.
	RoleIssuer Role = "issuer"
	// RoleHolder marks records owned by the holder state machine.
	RoleHolder Role = "holder"
)

// Format is the credential payload format of an exchange.
type Format string

const (
	// FormatIndy is the AnonCreds (Hyperledger Indy) format.
	FormatIndy Format = "indy"
	// FormatJSONLD is the JSON-LD verifiable credential format.
	FormatJSONLD Format = "jsonld"
)

// Attribute is a single credential attribute.
type Attribute struct {
	Name     string `json:"name"`
	MimeType string `json:"mime-type,omitempty"`
	Value    string `json:"value"`
}

// Record is the persisted state of one credential exchange.
type Record struct {
	ThreadID               string          `json:"thread_id"`
	Role                   Role            `json:"role"`
	State                  string          `json:"state"`
	MyDID                  string          `json:"my_did,omitempty"`
	TheirDID               string          `json:"their_did,omitempty"`
	CredentialDefinitionID string          `json:"credential_definition_id,omitempty"`
	SchemaID               string          `json:"schema_id,omitempty"`
	Attributes             []Attribute     `json:"credential_attributes,omitempty"`
	Format                 Format          `json:"credential_format,omitempty"`
	Credential             json.RawMessage `json:"credential,omitempty"`
	Revocable              bool            `json:"revocable,omitempty"`
	RevocationRegistryID   string          `json:"revocation_registry_id,omitempty"`
	RevocationIndex        string          `json:"revocation_index,omitempty"`
	RevokedAt              *time.Time      `json:"revoked_at,omitempty"`
	RevocationNotified     bool            `json:"revocation_notified,omitempty"`
	ErrorReason            string          `json:"error_reason,omitempty"`
	AttributesLocked       bool            `json:"attributes_locked,omitempty"`
	Terminal               bool            `json:"terminal,omitempty"`
	Acked                  bool            `json:"acked,omitempty"`
	Version                uint64          `json:"version"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// Revoked reports whether revocation has been recorded.
func (r *Record) Revoked() bool {
	return r.RevokedAt != nil
}

// AttributeMap returns the attributes keyed by name.
func (r *Record) AttributeMap() map[string]string {
	res := make(map[string]string, len(r.Attributes))

	for _, a := range r.Attributes {
		res[a.Name] = a.Value
	}

	return res
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	c := *r

	if r.Attributes != nil {
		c.Attributes = append([]Attribute(nil), r.Attributes...)
	}

	if r.Credential != nil {
		c.Credential = append(json.RawMessage(nil), r.Credential...)
	}

	if r.RevokedAt != nil {
		t := *r.RevokedAt
		c.RevokedAt = &t
	}

	return &c
}
