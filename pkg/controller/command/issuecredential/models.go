/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	protocol "github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

// ThreadArgs model
//
// This is used for commands addressing one exchange of an agent.
type ThreadArgs struct {
	// Agent is the name of the agent (tenant).
	Agent string `json:"agent"`
	// ThreadID identifies the exchange.
	ThreadID string `json:"thread_id"`
}

// IssueOfferArgs model
//
// This is used for offering a credential, or for answering a proposal with an offer.
type IssueOfferArgs struct {
	Agent string `json:"agent"`
	// ThreadID is optional when offering, it is the thread of the proposal when answering one.
	ThreadID               string                 `json:"thread_id,omitempty"`
	MyDID                  string                 `json:"my_did"`
	TheirDID               string                 `json:"their_did"`
	CredentialDefinitionID string                 `json:"credential_definition_id"`
	Format                 exchange.Format        `json:"credential_format,omitempty"`
	Attributes             []protocol.Attribute   `json:"credential_attributes,omitempty"`
	Credential             map[string]interface{} `json:"credential,omitempty"`
	Comment                string                 `json:"comment,omitempty"`
}

// SendRequestArgs model
//
// This is used for requesting an offered credential (agent and thread id only),
// for requesting a credential without an offer and for proposals.
type SendRequestArgs struct {
	Agent                  string                 `json:"agent"`
	ThreadID               string                 `json:"thread_id,omitempty"`
	MyDID                  string                 `json:"my_did,omitempty"`
	TheirDID               string                 `json:"their_did,omitempty"`
	SchemaID               string                 `json:"schema_id,omitempty"`
	CredentialDefinitionID string                 `json:"credential_definition_id,omitempty"`
	Format                 exchange.Format        `json:"credential_format,omitempty"`
	Attributes             []protocol.Attribute   `json:"credential_attributes,omitempty"`
	Credential             map[string]interface{} `json:"credential,omitempty"`
	Comment                string                 `json:"comment,omitempty"`
}

// standalone reports whether the request is sent without an offer.
func (a *SendRequestArgs) standalone() bool {
	return a.SchemaID != "" || a.MyDID != "" || a.TheirDID != ""
}

func (a *SendRequestArgs) params() *protocol.RequestParams {
	return &protocol.RequestParams{
		ThreadID:               a.ThreadID,
		MyDID:                  a.MyDID,
		TheirDID:               a.TheirDID,
		SchemaID:               a.SchemaID,
		CredentialDefinitionID: a.CredentialDefinitionID,
		Format:                 a.Format,
		Attributes:             a.Attributes,
		Credential:             a.Credential,
		Comment:                a.Comment,
	}
}

// ThreadResponse model
//
// Represents the thread of the exchange a command started or moved.
type ThreadResponse struct {
	ThreadID string `json:"thread_id"`
	State    string `json:"state,omitempty"`
}

// RecordsArgs model
//
// This is used for listing the exchanges of an agent. Role and State are optional filters.
type RecordsArgs struct {
	Agent string        `json:"agent"`
	Role  exchange.Role `json:"role,omitempty"`
	State string        `json:"state,omitempty"`
}

// RecordsResponse model
//
// Represents the exchange records of an agent.
type RecordsResponse struct {
	Records []*exchange.Record `json:"records"`
}

// RecordResponse model
//
// Represents one exchange record.
type RecordResponse struct {
	Record *exchange.Record `json:"record"`
}

// RevocationStatusResponse model
//
// Represents the revocation status of a held credential.
type RevocationStatusResponse struct {
	ThreadID string                    `json:"thread_id"`
	Status   *registry.RevocationStatus `json:"status"`
}
