/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
)

const ledgerJSON = `{
	"schemas": [{"id": "driverslicense:1.0", "name": "driverslicense", "version": "1.0",
		"attr_names": ["family_name", "given_name"]}],
	"credential_definitions": [
		{"id": "faber:dl", "schema_id": "driverslicense:1.0", "ready": true,
			"revocable": true, "revocation_registry_id": "faber:dl:rev", "max_cred_num": 2},
		{"id": "faber:pending", "schema_id": "driverslicense:1.0"}
	]
}`

func TestLoadMemory(t *testing.T) {
	ctx := context.Background()

	m, err := registry.LoadMemory(strings.NewReader(ledgerJSON))
	require.NoError(t, err)

	schema, err := m.Schema(ctx, "driverslicense:1.0")
	require.NoError(t, err)
	require.Equal(t, []string{"family_name", "given_name"}, schema.AttributeNames)

	cd, err := m.CredentialDefinition(ctx, "faber:dl")
	require.NoError(t, err)
	require.True(t, cd.Ready)
	require.True(t, cd.Revocable)

	pending, err := m.CredentialDefinition(ctx, "faber:pending")
	require.NoError(t, err)
	require.False(t, pending.Ready)

	_, err = m.Allocate(ctx, "faber:dl:rev")
	require.NoError(t, err)
	_, err = m.Allocate(ctx, "faber:dl:rev")
	require.NoError(t, err)
	_, err = m.Allocate(ctx, "faber:dl:rev")
	require.True(t, errors.Is(err, registry.ErrRegistryFull))
}

func TestLoadMemory_Errors(t *testing.T) {
	tests := []struct {
		name   string
		ledger string
		err    string
	}{
		{"not json", "{", "decode ledger"},
		{"schema without id", `{"schemas":[{"name":"x"}]}`, "ledger schema without id"},
		{"credential definition without id", `{"credential_definitions":[{"schema_id":"x"}]}`,
			"ledger credential definition without id"},
		{"unknown schema", `{"credential_definitions":[{"id":"cd","schema_id":"x"}]}`, "schema not found"},
		{"revocable without registry", `{"schemas":[{"id":"s"}],
			"credential_definitions":[{"id":"cd","schema_id":"s","revocable":true}]}`, "needs a revocation registry"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := registry.LoadMemory(strings.NewReader(tc.ledger))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}
