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
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/command"
	cmd "github.com/hyperledger/aries-issuecredential-go/pkg/controller/command/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/rest"
)

const (
	operationID      = "/{agent}/issuecredential"
	records          = operationID + "/records"
	record           = records + "/{thread_id}"
	issueOffer       = operationID + "/offer"
	sendProposal     = operationID + "/propose"
	sendRequest      = operationID + "/request"
	acceptProposal   = operationID + "/{thread_id}/accept-proposal"
	deleteOffer      = operationID + "/{thread_id}/delete-offer"
	requestOffered   = operationID + "/{thread_id}/request"
	acceptRequest    = operationID + "/{thread_id}/accept-request"
	revokeCredential = operationID + "/{thread_id}/revoke"
	checkRevocation  = operationID + "/{thread_id}/revocation-status"
)

// Operation is controller REST service controller for issue credential.
type Operation struct {
	command  *cmd.Command
	handlers []rest.Handler
}

// New returns new issue credential rest client protocol instance.
func New(p cmd.Provider, notifier command.Notifier, opts ...cmd.Option) (*Operation, error) {
	c, err := cmd.New(p, notifier, opts...)
	if err != nil {
		return nil, fmt.Errorf("issue credential command : %w", err)
	}

	o := &Operation{command: c}
	o.registerHandler()

	return o, nil
}

// GetRESTHandlers get all controller API handler available for this protocol service.
func (c *Operation) GetRESTHandlers() []rest.Handler {
	return c.handlers
}

// Command returns the command the operation executes.
func (c *Operation) Command() *cmd.Command {
	return c.command
}

// Close stops notifying exchange events.
func (c *Operation) Close() {
	c.command.Close()
}

// registerHandler register handlers to be exposed from this protocol service as REST API endpoints.
// Record routes come first, "records" is not a thread id.
func (c *Operation) registerHandler() {
	c.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(records, http.MethodGet, c.Records),
		cmdutil.NewHTTPHandler(record, http.MethodGet, c.Record),
		cmdutil.NewHTTPHandler(issueOffer, http.MethodPost, c.IssueOffer),
		cmdutil.NewHTTPHandler(sendProposal, http.MethodPost, c.SendProposal),
		cmdutil.NewHTTPHandler(sendRequest, http.MethodPost, c.SendRequest),
		cmdutil.NewHTTPHandler(acceptProposal, http.MethodPost, c.AcceptProposal),
		cmdutil.NewHTTPHandler(deleteOffer, http.MethodPost, c.DeleteOffer),
		cmdutil.NewHTTPHandler(requestOffered, http.MethodPost, c.SendRequest),
		cmdutil.NewHTTPHandler(acceptRequest, http.MethodPost, c.AcceptRequest),
		cmdutil.NewHTTPHandler(revokeCredential, http.MethodPost, c.RevokeCredential),
		cmdutil.NewHTTPHandler(checkRevocation, http.MethodGet, c.CheckRevocation),
	}
}

// IssueOffer swagger:route POST /{agent}/issuecredential/offer issue-credential issueCredentialIssueOffer
//
// Offers a credential.
//
// Responses:
//    default: genericError
//        200: issueCredentialThreadResponse
func (c *Operation) IssueOffer(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.IssueOffer, rw, req)
}

// AcceptProposal swagger:route POST /{agent}/issuecredential/{thread_id}/accept-proposal issue-credential issueCredentialAcceptProposal
//
// Answers a proposal with an offer.
//
// Responses:
//    default: genericError
//        200: issueCredentialThreadResponse
func (c *Operation) AcceptProposal(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.AcceptProposal, rw, req)
}

// DeleteOffer swagger:route POST /{agent}/issuecredential/{thread_id}/delete-offer issue-credential issueCredentialDeleteOffer
//
// Withdraws an offer the holder did not answer.
//
// Responses:
//    default: genericError
//        200: issueCredentialThreadResponse
func (c *Operation) DeleteOffer(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.DeleteOffer, rw, req)
}

// SendProposal swagger:route POST /{agent}/issuecredential/propose issue-credential issueCredentialSendProposal
//
// Proposes a credential.
//
// Responses:
//    default: genericError
//        200: issueCredentialThreadResponse
func (c *Operation) SendProposal(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.SendProposal, rw, req)
}

// SendRequest swagger:route POST /{agent}/issuecredential/request issue-credential issueCredentialSendRequest
//
// Requests a credential, the offered one when posted to /{agent}/issuecredential/{thread_id}/request.
//
// Responses:
//    default: genericError
//        200: issueCredentialThreadResponse
func (c *Operation) SendRequest(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.SendRequest, rw, req)
}

// AcceptRequest swagger:route POST /{agent}/issuecredential/{thread_id}/accept-request issue-credential issueCredentialAcceptRequest
//
// Issues the requested credential.
//
// Responses:
//    default: genericError
//        200: issueCredentialThreadResponse
func (c *Operation) AcceptRequest(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.AcceptRequest, rw, req)
}

// RevokeCredential swagger:route POST /{agent}/issuecredential/{thread_id}/revoke issue-credential issueCredentialRevoke
//
// Revokes an issued credential.
//
// Responses:
//    default: genericError
//        200: issueCredentialThreadResponse
func (c *Operation) RevokeCredential(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.RevokeCredential, rw, req)
}

// CheckRevocation swagger:route GET /{agent}/issuecredential/{thread_id}/revocation-status issue-credential issueCredentialCheckRevocation
//
// Checks whether a held credential was revoked.
//
// Responses:
//    default: genericError
//        200: issueCredentialRevocationStatusResponse
func (c *Operation) CheckRevocation(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.CheckRevocation, rw, req)
}

// Records swagger:route GET /{agent}/issuecredential/records issue-credential issueCredentialRecords
//
// Lists the exchanges of the agent, filtered by the role and state query parameters.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordsResponse
func (c *Operation) Records(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.Records, rw, req, "role", "state")
}

// Record swagger:route GET /{agent}/issuecredential/records/{thread_id} issue-credential issueCredentialRecord
//
// Returns one exchange of the agent.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) Record(rw http.ResponseWriter, req *http.Request) {
	execute(c.command.Record, rw, req)
}

// execute runs exec on the JSON body merged with the path variables and the given query parameters.
func execute(exec command.Exec, rw http.ResponseWriter, req *http.Request, query ...string) {
	args := map[string]interface{}{}

	if req.Body != nil && req.Method != http.MethodGet {
		var buf bytes.Buffer

		// nolint: errcheck
		_, _ = buf.ReadFrom(req.Body)

		if len(bytes.TrimSpace(buf.Bytes())) > 0 {
			if err := json.Unmarshal(buf.Bytes(), &args); err != nil {
				rest.SendHTTPStatusError(rw, http.StatusBadRequest, cmd.InvalidRequestErrorCode,
					errors.New("payload is not a JSON object"))

				return
			}
		}
	}

	for k, v := range mux.Vars(req) {
		args[k] = v
	}

	for _, k := range query {
		if v := req.URL.Query().Get(k); v != "" {
			args[k] = v
		}
	}

	payload, err := json.Marshal(args)
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusInternalServerError, command.UnknownStatus, err)

		return
	}

	rest.Execute(exec, rw, bytes.NewBuffer(payload))
}
