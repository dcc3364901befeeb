/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/command"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/event"
	protocol "github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/framework/agent"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

const (
	faberDID  = "did:example:faber"
	aliceDID  = "did:example:alice"
	schemaDL  = "driverslicense:1.0"
	credDefDL = "faber:driverslicense:default"
	revRegDL  = "faber:driverslicense:revocation"
)

func newLedger() *registry.Memory {
	reg := registry.NewMemory()
	reg.AddSchema(&registry.Schema{
		ID: schemaDL, Name: "driverslicense", Version: "1.0",
		AttributeNames: []string{"family_name", "given_name"},
	})
	reg.AddCredentialDefinition(&registry.CredentialDefinition{
		ID: credDefDL, SchemaID: schemaDL, Tag: "default", Ready: true,
		Revocable: true, RevocationRegistryID: revRegDL,
	}, 10)

	return reg
}

func attributes() []protocol.Attribute {
	return []protocol.Attribute{
		{Name: "family_name", Value: "DOE"},
		{Name: "given_name", Value: "JANE"},
	}
}

func newTenants(t *testing.T) *agent.Tenants {
	t.Helper()

	ledger := newLedger()
	tenants := agent.NewTenants(mem.NewProvider(), agent.WithDefaultOptions(
		agent.WithSchemaResolver(ledger),
		agent.WithRevocationRegistry(ledger),
	))

	t.Cleanup(func() {
		require.NoError(t, tenants.Close())
	})

	_, err := tenants.Add("faber", agent.WithDIDs(faberDID))
	require.NoError(t, err)

	_, err = tenants.Add("alice", agent.WithDIDs(aliceDID))
	require.NoError(t, err)

	return tenants
}

func newCommand(t *testing.T) *Command {
	t.Helper()

	cmd, err := New(newTenants(t), nil)
	require.NoError(t, err)
	t.Cleanup(cmd.Close)

	return cmd
}

func execute(t *testing.T, exec command.Exec, args interface{}, res interface{}) command.Error {
	t.Helper()

	payload, err := json.Marshal(args)
	require.NoError(t, err)

	var b bytes.Buffer

	cmdErr := exec(&b, bytes.NewBuffer(payload))
	if cmdErr == nil && res != nil {
		require.NoError(t, json.Unmarshal(b.Bytes(), res))
	}

	return cmdErr
}

func offer(t *testing.T, cmd *Command) string {
	t.Helper()

	var res ThreadResponse

	require.NoError(t, execute(t, cmd.IssueOffer, &IssueOfferArgs{
		Agent:                  "faber",
		MyDID:                  faberDID,
		TheirDID:               aliceDID,
		CredentialDefinitionID: credDefDL,
		Attributes:             attributes(),
	}, &res))
	require.NotEmpty(t, res.ThreadID)
	require.Equal(t, string(protocol.IssuerOfferSent), res.State)

	return res.ThreadID
}

func TestNew(t *testing.T) {
	t.Run("no provider", func(t *testing.T) {
		cmd, err := New(nil, nil)
		require.Error(t, err)
		require.Nil(t, cmd)
	})

	t.Run("handlers", func(t *testing.T) {
		cmd := newCommand(t)

		handlers := cmd.GetHandlers()
		require.Len(t, handlers, 10)

		for _, h := range handlers {
			require.Equal(t, CommandName, h.Name())
			require.NotNil(t, h.Handle())
		}
	})
}

func TestCommand_IssueFlow(t *testing.T) {
	cmd := newCommand(t)
	thID := offer(t, cmd)

	var res ThreadResponse

	require.NoError(t, execute(t, cmd.SendRequest, &SendRequestArgs{Agent: "alice", ThreadID: thID}, &res))
	require.Equal(t, thID, res.ThreadID)
	require.Equal(t, string(protocol.HolderRequestSent), res.State)

	require.NoError(t, execute(t, cmd.AcceptRequest, &ThreadArgs{Agent: "faber", ThreadID: thID}, &res))
	require.Equal(t, string(protocol.IssuerCredentialIssued), res.State)

	var held RecordResponse

	require.NoError(t, execute(t, cmd.Record, &ThreadArgs{Agent: "alice", ThreadID: thID}, &held))
	require.Equal(t, string(protocol.HolderDone), held.Record.State)
	require.Equal(t, attributes(), held.Record.Attributes)

	var status RevocationStatusResponse

	require.NoError(t, execute(t, cmd.CheckRevocation, &ThreadArgs{Agent: "alice", ThreadID: thID}, &status))
	require.False(t, status.Status.Revoked)

	require.NoError(t, execute(t, cmd.RevokeCredential, &ThreadArgs{Agent: "faber", ThreadID: thID}, nil))

	require.NoError(t, execute(t, cmd.CheckRevocation, &ThreadArgs{Agent: "alice", ThreadID: thID}, &status))
	require.True(t, status.Status.Revoked)

	cmdErr := execute(t, cmd.RevokeCredential, &ThreadArgs{Agent: "faber", ThreadID: thID}, nil)
	require.Error(t, cmdErr)
	require.Equal(t, AlreadyRevokedErrorCode, cmdErr.Code())
	require.Equal(t, command.ExecuteError, cmdErr.Type())
}

func TestCommand_DeleteOffer(t *testing.T) {
	cmd := newCommand(t)
	thID := offer(t, cmd)

	var res ThreadResponse

	require.NoError(t, execute(t, cmd.DeleteOffer, &ThreadArgs{Agent: "faber", ThreadID: thID}, &res))
	require.Equal(t, string(protocol.IssuerDeleted), res.State)

	cmdErr := execute(t, cmd.SendRequest, &SendRequestArgs{Agent: "alice", ThreadID: thID}, nil)
	require.Error(t, cmdErr)
	require.Equal(t, ProtocolViolationErrorCode, cmdErr.Code())
}

func TestCommand_ProposalFlow(t *testing.T) {
	cmd := newCommand(t)

	var proposed ThreadResponse

	require.NoError(t, execute(t, cmd.SendProposal, &SendRequestArgs{
		Agent:                  "alice",
		MyDID:                  aliceDID,
		TheirDID:               faberDID,
		SchemaID:               schemaDL,
		CredentialDefinitionID: credDefDL,
		Attributes:             attributes(),
	}, &proposed))
	require.Equal(t, string(protocol.HolderProposalSent), proposed.State)

	var res ThreadResponse

	require.NoError(t, execute(t, cmd.AcceptProposal, &IssueOfferArgs{
		Agent:                  "faber",
		ThreadID:               proposed.ThreadID,
		CredentialDefinitionID: credDefDL,
		Attributes:             attributes(),
	}, &res))
	require.Equal(t, proposed.ThreadID, res.ThreadID)
	require.Equal(t, string(protocol.IssuerOfferSent), res.State)

	var records RecordsResponse

	require.NoError(t, execute(t, cmd.Records, &RecordsArgs{Agent: "alice", Role: exchange.RoleHolder}, &records))
	require.Len(t, records.Records, 1)
	require.Equal(t, string(protocol.HolderOfferReceived), records.Records[0].State)
}

func TestCommand_StandaloneRequest(t *testing.T) {
	cmd := newCommand(t)

	var res ThreadResponse

	require.NoError(t, execute(t, cmd.SendRequest, &SendRequestArgs{
		Agent:                  "alice",
		MyDID:                  aliceDID,
		TheirDID:               faberDID,
		SchemaID:               schemaDL,
		CredentialDefinitionID: credDefDL,
		Attributes:             attributes(),
	}, &res))
	require.NotEmpty(t, res.ThreadID)

	var records RecordsResponse

	require.NoError(t, execute(t, cmd.Records, &RecordsArgs{Agent: "faber"}, &records))
	require.Len(t, records.Records, 1)
	require.Equal(t, exchange.RoleIssuer, records.Records[0].Role)
	require.Equal(t, string(protocol.IssuerRequestReceived), records.Records[0].State)

	require.NoError(t, execute(t, cmd.Records, &RecordsArgs{
		Agent: "faber", State: string(protocol.IssuerOfferSent),
	}, &records))
	require.Empty(t, records.Records)
}

func TestCommand_Errors(t *testing.T) {
	cmd := newCommand(t)

	t.Run("invalid json", func(t *testing.T) {
		for _, exec := range []command.Exec{
			cmd.IssueOffer, cmd.AcceptProposal, cmd.DeleteOffer, cmd.SendProposal, cmd.SendRequest,
			cmd.AcceptRequest, cmd.RevokeCredential, cmd.CheckRevocation, cmd.Records, cmd.Record,
		} {
			var b bytes.Buffer

			cmdErr := exec(&b, bytes.NewBufferString("{"))
			require.Error(t, cmdErr)
			require.Equal(t, InvalidRequestErrorCode, cmdErr.Code())
			require.Equal(t, command.ValidationError, cmdErr.Type())
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			exec command.Exec
			args interface{}
			err  string
		}{
			{"offer no agent", cmd.IssueOffer, &IssueOfferArgs{
				MyDID: faberDID, TheirDID: aliceDID, CredentialDefinitionID: credDefDL,
			}, errEmptyAgent},
			{"offer no my did", cmd.IssueOffer, &IssueOfferArgs{Agent: "faber"}, errEmptyMyDID},
			{"offer no their did", cmd.IssueOffer, &IssueOfferArgs{Agent: "faber", MyDID: faberDID}, errEmptyTheirDID},
			{"offer no cred def", cmd.IssueOffer, &IssueOfferArgs{
				Agent: "faber", MyDID: faberDID, TheirDID: aliceDID,
			}, errEmptyCredDef},
			{"accept proposal no thread", cmd.AcceptProposal, &IssueOfferArgs{Agent: "faber"}, errEmptyThreadID},
			{"accept proposal no agent", cmd.AcceptProposal, &IssueOfferArgs{ThreadID: "th"}, errEmptyAgent},
			{"request no thread", cmd.SendRequest, &SendRequestArgs{Agent: "alice"}, errEmptyThreadID},
			{"standalone no schema", cmd.SendRequest, &SendRequestArgs{
				Agent: "alice", MyDID: aliceDID, TheirDID: faberDID,
			}, errEmptySchemaID},
			{"proposal no their did", cmd.SendProposal, &SendRequestArgs{
				Agent: "alice", MyDID: aliceDID,
			}, errEmptyTheirDID},
			{"delete no thread", cmd.DeleteOffer, &ThreadArgs{Agent: "faber"}, errEmptyThreadID},
			{"record no agent", cmd.Record, &ThreadArgs{ThreadID: "th"}, errEmptyAgent},
			{"records no agent", cmd.Records, &RecordsArgs{}, errEmptyAgent},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				cmdErr := execute(t, tc.exec, tc.args, nil)
				require.EqualError(t, cmdErr, tc.err)
				require.Equal(t, InvalidRequestErrorCode, cmdErr.Code())
			})
		}
	})

	t.Run("unknown agent", func(t *testing.T) {
		cmdErr := execute(t, cmd.Record, &ThreadArgs{Agent: "bob", ThreadID: "th"}, nil)
		require.Error(t, cmdErr)
		require.Equal(t, AgentNotFoundErrorCode, cmdErr.Code())
		require.Equal(t, command.NotFoundError, cmdErr.Type())
	})

	t.Run("unknown record", func(t *testing.T) {
		for _, exec := range []command.Exec{cmd.Record, cmd.AcceptRequest, cmd.CheckRevocation} {
			cmdErr := execute(t, exec, &ThreadArgs{Agent: "faber", ThreadID: "unknown"}, nil)
			require.Error(t, cmdErr)
			require.Equal(t, RecordNotFoundErrorCode, cmdErr.Code())
			require.Equal(t, command.NotFoundError, cmdErr.Type())
		}
	})
}

func TestExecuteError(t *testing.T) {
	tests := []struct {
		err  error
		code command.Code
	}{
		{protocol.ErrConcurrentModification, ConcurrentModificationErrorCode},
		{protocol.ErrUnresolvedRequest, UnresolvedRequestErrorCode},
		{protocol.ErrCredentialMismatch, CredentialMismatchErrorCode},
		{protocol.ErrTransportFailure, TransportFailureErrorCode},
		{protocol.ErrAlreadyRevoked, AlreadyRevokedErrorCode},
		{protocol.ErrProtocolViolation, ProtocolViolationErrorCode},
		{errors.New("other"), IssueOfferErrorCode},
	}

	for _, tc := range tests {
		cmdErr := executeError(IssueOfferErrorCode, fmt.Errorf("wrapped: %w", tc.err))
		require.Equal(t, tc.code, cmdErr.Code(), tc.err.Error())
		require.Equal(t, command.ExecuteError, cmdErr.Type())
	}
}

func TestCommand_Notifications(t *testing.T) {
	events := make(chan event.Event, 10)
	notifier := command.NotifierFunc(func(topic string, message []byte) error {
		require.Equal(t, StatesTopic, topic)

		var e event.Event
		if err := json.Unmarshal(message, &e); err != nil {
			return err
		}

		events <- e

		return nil
	})

	cmd, err := New(newTenants(t), notifier)
	require.NoError(t, err)

	thID := offer(t, cmd)

	cmd.Close()

	got := map[string]string{}

	for len(got) < 2 {
		select {
		case e := <-events:
			require.Equal(t, thID, e.ThreadID)
			got[e.Agent] = e.NewState
		case <-time.After(time.Second):
			require.Fail(t, "state events not notified")
		}
	}

	require.Equal(t, map[string]string{
		"faber": string(protocol.IssuerOfferSent),
		"alice": string(protocol.HolderOfferReceived),
	}, got)
}
