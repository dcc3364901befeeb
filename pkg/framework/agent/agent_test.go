/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
	mockservice "github.com/hyperledger/aries-issuecredential-go/pkg/internal/gomocks/didcomm/common/service"
)

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := newLedger()
	messenger := mockservice.NewMockMessenger(ctrl)

	t.Run("Success", func(t *testing.T) {
		dispatcher := event.NewSync()

		a, err := New("faber",
			WithMessenger(messenger),
			WithSchemaResolver(ledger),
			WithRevocationRegistry(ledger),
			WithDispatcher(dispatcher),
			WithDIDs(faberDID),
		)
		require.NoError(t, err)

		require.Equal(t, "faber", a.AgentName())
		require.Equal(t, []string{faberDID}, a.DIDs())
		require.Equal(t, dispatcher, a.Dispatcher())
		require.Equal(t, messenger, a.Messenger())
		require.Equal(t, ledger, a.SchemaResolver())
		require.Equal(t, ledger, a.RevocationRegistry())
		require.NotNil(t, a.DocumentLoader())
		require.NotNil(t, a.Issuer())
		require.NotNil(t, a.Holder())
		require.Equal(t, a.Store(), a.ExchangeStore())
		require.NoError(t, a.Close())
	})

	tests := []struct {
		name  string
		agent string
		opts  []Option
		err   string
	}{
		{"No name", "", nil, "agent name is mandatory"},
		{"No messenger", "a", []Option{WithSchemaResolver(ledger), WithRevocationRegistry(ledger)}, "messenger"},
		{"No resolver", "a", []Option{WithMessenger(messenger), WithRevocationRegistry(ledger)}, "schema resolver"},
		{"No registry", "a", []Option{WithMessenger(messenger), WithSchemaResolver(ledger)}, "revocation registry"},
		{"Empty DID", "a", []Option{WithDIDs("")}, "empty DID"},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.agent, tc.opts...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestAgent_HandleInbound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := newLedger()
	messenger := mockservice.NewMockMessenger(ctrl)

	a, err := New("alice",
		WithMessenger(messenger),
		WithSchemaResolver(ledger),
		WithRevocationRegistry(ledger),
	)
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("Unknown message type", func(t *testing.T) {
		err := a.HandleInbound(ctx, service.DIDCommMsgMap{"@type": "https://didcomm.org/trust_ping/2.0/ping"},
			aliceDID, faberDID)
		require.True(t, errors.Is(err, issuecredential.ErrUnknownMessageType))
	})

	t.Run("Problem report for unknown thread", func(t *testing.T) {
		err := a.HandleInbound(ctx, service.DIDCommMsgMap{
			"@type":   issuecredential.ProblemReportMsgTypeV2,
			"@id":     "1",
			"~thread": map[string]interface{}{"thid": "unknown"},
		}, aliceDID, faberDID)
		require.True(t, errors.Is(err, exchange.ErrRecordNotFound))
	})

	t.Run("Problem report without thread", func(t *testing.T) {
		err := a.HandleInbound(ctx, service.DIDCommMsgMap{
			"@type": issuecredential.ProblemReportMsgTypeV2,
			"@id":   "1",
		}, aliceDID, faberDID)
		require.Error(t, err)
	})

	t.Run("Offer reaches the holder", func(t *testing.T) {
		messenger.EXPECT().Send(gomock.Any(), gomock.Any(), faberDID, aliceDID).Return(nil).AnyTimes()

		faber, err := New("faber",
			WithMessenger(service.MessengerFunc(func(ctx context.Context, msg service.DIDCommMsgMap,
				myDID, theirDID string) error {
				return a.HandleInbound(ctx, msg, theirDID, myDID)
			})),
			WithSchemaResolver(ledger),
			WithRevocationRegistry(ledger),
		)
		require.NoError(t, err)

		thID, err := faber.Issuer().Offer(ctx, &issuecredential.OfferParams{
			MyDID:                  faberDID,
			TheirDID:               aliceDID,
			CredentialDefinitionID: credDefDL,
			Attributes:             dataDLNormalizedValues(),
		})
		require.NoError(t, err)

		rec, err := a.Store().Get(thID)
		require.NoError(t, err)
		require.Equal(t, exchange.RoleHolder, rec.Role)
		require.Equal(t, string(issuecredential.HolderOfferReceived), rec.State)
	})
}

func newLedger() *registry.Memory {
	reg := registry.NewMemory()
	reg.AddSchema(&registry.Schema{
		ID: schemaDL, Name: "driverslicense", Version: "1.0",
		AttributeNames: dlAttributeNames(),
	})
	reg.AddCredentialDefinition(&registry.CredentialDefinition{
		ID: credDefDL, SchemaID: schemaDL, Tag: "default", Ready: true,
		Revocable: true, RevocationRegistryID: revRegDL,
	}, 100)
	reg.AddCredentialDefinition(&registry.CredentialDefinition{
		ID: credDefPending, SchemaID: schemaDL, Tag: "pending",
	}, 0)

	return reg
}
