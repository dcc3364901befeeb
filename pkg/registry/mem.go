/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
)

var logger = log.New("aries-framework/registry")

type revocationRegistry struct {
	maxCredNum int
	next       int
	revoked    map[int]time.Time
}

// Memory is an in-process registry shared by the agents of one deployment.
type Memory struct {
	mu          sync.RWMutex
	schemas     map[string]*Schema
	credDefs    map[string]*CredentialDefinition
	revocations map[string]*revocationRegistry
	now         func() time.Time
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		schemas:     make(map[string]*Schema),
		credDefs:    make(map[string]*CredentialDefinition),
		revocations: make(map[string]*revocationRegistry),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AddSchema registers a schema.
func (m *Memory) AddSchema(s *Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *s
	c.AttributeNames = append([]string(nil), s.AttributeNames...)
	m.schemas[s.ID] = &c
}

// AddCredentialDefinition registers a credential definition.
// A revocable definition also creates its revocation registry when needed.
func (m *Memory) AddCredentialDefinition(cd *CredentialDefinition, maxCredNum int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *cd
	m.credDefs[cd.ID] = &c

	if cd.Revocable && cd.RevocationRegistryID != "" {
		if _, ok := m.revocations[cd.RevocationRegistryID]; !ok {
			m.revocations[cd.RevocationRegistryID] = &revocationRegistry{
				maxCredNum: maxCredNum,
				revoked:    make(map[int]time.Time),
			}
		}
	}
}

// SetReady flips the readiness flag of a credential definition.
func (m *Memory) SetReady(credDefID string, ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cd, ok := m.credDefs[credDefID]
	if !ok {
		return fmt.Errorf("%s: %w", credDefID, ErrCredentialDefinitionNotFound)
	}

	cd.Ready = ready

	return nil
}

// Schema returns the schema with the given id.
func (m *Memory) Schema(_ context.Context, schemaID string) (*Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schemas[schemaID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", schemaID, ErrSchemaNotFound)
	}

	c := *s
	c.AttributeNames = append([]string(nil), s.AttributeNames...)

	return &c, nil
}

// CredentialDefinition returns the credential definition with the given id.
func (m *Memory) CredentialDefinition(_ context.Context, credDefID string) (*CredentialDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cd, ok := m.credDefs[credDefID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", credDefID, ErrCredentialDefinitionNotFound)
	}

	c := *cd

	return &c, nil
}

// Allocate reserves the next free index. Indexes start at 1.
func (m *Memory) Allocate(_ context.Context, regID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.revocations[regID]
	if !ok {
		return "", fmt.Errorf("%s: %w", regID, ErrRevocationRegistryNotFound)
	}

	if reg.maxCredNum > 0 && reg.next >= reg.maxCredNum {
		return "", fmt.Errorf("%s: %w", regID, ErrRegistryFull)
	}

	reg.next++

	logger.Debugf("allocated revocation index %d in registry %s", reg.next, regID)

	return strconv.Itoa(reg.next), nil
}

// Revoke marks the index as revoked and returns the revocation time.
func (m *Memory) Revoke(_ context.Context, regID, index string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, idx, err := m.lookup(regID, index)
	if err != nil {
		return time.Time{}, err
	}

	if _, ok := reg.revoked[idx]; ok {
		return time.Time{}, fmt.Errorf("%s/%s: %w", regID, index, ErrAlreadyRevoked)
	}

	at := m.now()
	reg.revoked[idx] = at

	return at, nil
}

// Status returns the revocation status of the index.
func (m *Memory) Status(_ context.Context, regID, index string) (*RevocationStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, idx, err := m.lookup(regID, index)
	if err != nil {
		return nil, err
	}

	at, ok := reg.revoked[idx]
	if !ok {
		return &RevocationStatus{}, nil
	}

	return &RevocationStatus{Revoked: true, RevokedAt: &at}, nil
}

func (m *Memory) lookup(regID, index string) (*revocationRegistry, int, error) {
	reg, ok := m.revocations[regID]
	if !ok {
		return nil, 0, fmt.Errorf("%s: %w", regID, ErrRevocationRegistryNotFound)
	}

	idx, err := strconv.Atoi(index)
	if err != nil || idx < 1 || idx > reg.next {
		return nil, 0, fmt.Errorf("%s/%s: %w", regID, index, ErrIndexNotIssued)
	}

	return reg, idx, nil
}
