/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

var (
	// ErrProtocolViolation is returned when an action is illegal in the current state.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrCredentialMismatch is returned when a credential does not match the outstanding request.
	ErrCredentialMismatch = errors.New("credential mismatch")
	// ErrUnresolvedRequest is returned when no matching offer or credential definition exists.
	ErrUnresolvedRequest = errors.New("unresolved request")
	// ErrConcurrentModification is returned when a concurrent operation on the thread won.
	ErrConcurrentModification = exchange.ErrConcurrentModification
	// ErrTransportFailure wraps errors of the outbound transport.
	ErrTransportFailure = errors.New("transport failure")
	// ErrAlreadyRevoked is returned when a credential is revoked twice.
	ErrAlreadyRevoked = errors.New("credential already revoked")
	// ErrUnknownMessageType is returned for messages of other protocols.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// problem report codes
const (
	codeInternalError      = "internal"
	codeRejectedError      = "rejected"
	codeUnresolvedRequest  = "unresolved-request"
	codeCredentialMismatch = "credential-mismatch"
	codeOfferDeleted       = "offer-deleted"
	codeTimeout            = "timeout"
	codeTransportFailure   = "transport-failure"
)

// ProblemError is an error reported by, or to, the other party.
type ProblemError struct {
	Code string
	Err  error
}

func (e *ProblemError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Err)
}

func (e *ProblemError) Unwrap() error {
	return e.Err
}

func problem(code string, err error) *ProblemError {
	return &ProblemError{Code: code, Err: err}
}

// reason formats the error reason stored on an abandoned record.
func reason(code, description string) string {
	if description == "" {
		return code
	}

	return code + ": " + description
}

// reasonCode returns the problem code an error reason starts with.
func reasonCode(r string) string {
	if i := strings.Index(r, ":"); i >= 0 {
		return r[:i]
	}

	return r
}

// errorFromReason maps the error reason of an abandoned record to the protocol error taxonomy.
func errorFromReason(r string) error {
	code := reasonCode(r)

	switch code {
	case codeUnresolvedRequest, codeOfferDeleted:
		return problem(code, ErrUnresolvedRequest)
	case codeCredentialMismatch:
		return problem(code, ErrCredentialMismatch)
	case codeTransportFailure:
		return problem(code, ErrTransportFailure)
	default:
		return problem(code, ErrProtocolViolation)
	}
}

func codeOf(err error) string {
	var pErr *ProblemError
	if errors.As(err, &pErr) {
		return pErr.Code
	}

	switch {
	case errors.Is(err, ErrUnresolvedRequest):
		return codeUnresolvedRequest
	case errors.Is(err, ErrCredentialMismatch):
		return codeCredentialMismatch
	case errors.Is(err, ErrProtocolViolation):
		return codeRejectedError
	default:
		return codeInternalError
	}
}
