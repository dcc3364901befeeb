/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package registry defines the read-only credential type lookup and the
// revocation registry capability used by the issue-credential protocol.
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSchemaNotFound is returned when a schema is unknown.
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrCredentialDefinitionNotFound is returned when a credential definition is unknown.
	ErrCredentialDefinitionNotFound = errors.New("credential definition not found")
	// ErrRevocationRegistryNotFound is returned when a revocation registry is unknown.
	ErrRevocationRegistryNotFound = errors.New("revocation registry not found")
	// ErrRegistryFull is returned when a revocation registry has no free index.
	ErrRegistryFull = errors.New("revocation registry is full")
	// ErrIndexNotIssued is returned when a revocation index was never allocated.
	ErrIndexNotIssued = errors.New("revocation index not issued")
	// ErrAlreadyRevoked is returned when an index is revoked twice.
	ErrAlreadyRevoked = errors.New("credential already revoked")
)

// Schema describes the attribute names of a credential type.
type Schema struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	AttributeNames []string `json:"attr_names"`
}

// CredentialDefinition binds a schema to an issuer.
type CredentialDefinition struct {
	ID                   string `json:"id"`
	SchemaID             string `json:"schema_id"`
	Tag                  string `json:"tag,omitempty"`
	Ready                bool   `json:"ready"`
	Revocable            bool   `json:"revocable,omitempty"`
	RevocationRegistryID string `json:"revocation_registry_id,omitempty"`
}

// RevocationStatus is the state of one credential in a revocation registry.
type RevocationStatus struct {
	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// SchemaResolver resolves schemas and credential definitions.
type SchemaResolver interface {
	Schema(ctx context.Context, schemaID string) (*Schema, error)
	CredentialDefinition(ctx context.Context, credDefID string) (*CredentialDefinition, error)
}

// RevocationRegistry allocates and revokes credential indexes.
type RevocationRegistry interface {
	// Allocate reserves the next free index in the registry.
	Allocate(ctx context.Context, regID string) (string, error)
	// Revoke marks the index as revoked.
	Revoke(ctx context.Context, regID, index string) (time.Time, error)
	// Status returns the revocation status of the index.
	Status(ctx context.Context, regID, index string) (*RevocationStatus, error)
}
