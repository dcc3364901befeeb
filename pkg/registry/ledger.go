/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Ledger is the JSON document a Memory registry can be seeded from.
type Ledger struct {
	Schemas               []*Schema                     `json:"schemas"`
	CredentialDefinitions []*LedgerCredentialDefinition `json:"credential_definitions"`
}

// LedgerCredentialDefinition is a credential definition with the capacity of its revocation registry,
// zero for no limit.
type LedgerCredentialDefinition struct {
	CredentialDefinition
	MaxCredNum int `json:"max_cred_num,omitempty"`
}

// LoadMemory returns a Memory registry holding the ledger read from r.
func LoadMemory(r io.Reader) (*Memory, error) {
	var ledger Ledger

	if err := json.NewDecoder(r).Decode(&ledger); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}

	m := NewMemory()

	for _, s := range ledger.Schemas {
		if s == nil || s.ID == "" {
			return nil, errors.New("ledger schema without id")
		}

		m.AddSchema(s)
	}

	for _, cd := range ledger.CredentialDefinitions {
		if cd == nil || cd.ID == "" {
			return nil, errors.New("ledger credential definition without id")
		}

		if _, err := m.Schema(context.Background(), cd.SchemaID); err != nil {
			return nil, fmt.Errorf("credential definition %s: %w", cd.ID, err)
		}

		if cd.Revocable && cd.RevocationRegistryID == "" {
			return nil, fmt.Errorf("revocable credential definition %s needs a revocation registry", cd.ID)
		}

		def := cd.CredentialDefinition
		m.AddCredentialDefinition(&def, cd.MaxCredNum)
	}

	return m, nil
}
