/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	cmd "github.com/hyperledger/aries-issuecredential-go/pkg/controller/command/issuecredential"
)

// issueCredentialIssueOfferRequest model
//
// This is used for operation to offer a credential
//
// swagger:parameters issueCredentialIssueOffer
type issueCredentialIssueOfferRequest struct { // nolint: unused,deadcode
	// Agent name
	//
	// in: path
	// required: true
	Agent string `json:"agent"`

	// in: body
	// required: true
	Params cmd.IssueOfferArgs `json:""`
}

// issueCredentialAcceptProposalRequest model
//
// This is used for operation to answer a proposal with an offer
//
// swagger:parameters issueCredentialAcceptProposal
type issueCredentialAcceptProposalRequest struct { // nolint: unused,deadcode
	// in: path
	// required: true
	Agent string `json:"agent"`

	// Thread of the proposal
	//
	// in: path
	// required: true
	ThreadID string `json:"thread_id"`

	// in: body
	Params cmd.IssueOfferArgs `json:""`
}

// issueCredentialSendRequestRequest model
//
// This is used for operations to propose or to request a credential
//
// swagger:parameters issueCredentialSendRequest issueCredentialSendProposal
type issueCredentialSendRequestRequest struct { // nolint: unused,deadcode
	// in: path
	// required: true
	Agent string `json:"agent"`

	// in: body
	Params cmd.SendRequestArgs `json:""`
}

// issueCredentialThreadRequest model
//
// This is used for operations on one exchange
//
// swagger:parameters issueCredentialDeleteOffer issueCredentialAcceptRequest issueCredentialRevoke issueCredentialCheckRevocation issueCredentialRecord
type issueCredentialThreadRequest struct { // nolint: unused,deadcode
	// in: path
	// required: true
	Agent string `json:"agent"`

	// in: path
	// required: true
	ThreadID string `json:"thread_id"`
}

// issueCredentialRecordsRequest model
//
// This is used for operation to list exchanges
//
// swagger:parameters issueCredentialRecords
type issueCredentialRecordsRequest struct { // nolint: unused,deadcode
	// in: path
	// required: true
	Agent string `json:"agent"`

	// in: query
	Role string `json:"role"`

	// in: query
	State string `json:"state"`
}

// issueCredentialThreadResponse model
//
// Represents the thread and the state of an exchange
//
// swagger:response issueCredentialThreadResponse
type issueCredentialThreadResponse struct { // nolint: unused,deadcode
	// in: body
	cmd.ThreadResponse
}

// issueCredentialRecordsResponse model
//
// Represents the exchanges of an agent
//
// swagger:response issueCredentialRecordsResponse
type issueCredentialRecordsResponse struct { // nolint: unused,deadcode
	// in: body
	cmd.RecordsResponse
}

// issueCredentialRecordResponse model
//
// Represents one exchange
//
// swagger:response issueCredentialRecordResponse
type issueCredentialRecordResponse struct { // nolint: unused,deadcode
	// in: body
	cmd.RecordResponse
}

// issueCredentialRevocationStatusResponse model
//
// Represents the revocation status of a held credential
//
// swagger:response issueCredentialRevocationStatusResponse
type issueCredentialRevocationStatusResponse struct { // nolint: unused,deadcode
	// in: body
	cmd.RevocationStatusResponse
}
