/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/spi/log"
)

// ErrEmptyPayload is returned by DecodeArgs when the request carries no arguments.
var ErrEmptyPayload = errors.New("empty payload")

// DecodeArgs reads the JSON arguments of a command into v.
// Failures are validation errors with the given code.
func DecodeArgs(req io.Reader, v interface{}, code Code) Error {
	if req == nil {
		return NewValidationError(code, ErrEmptyPayload)
	}

	err := json.NewDecoder(req).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return NewValidationError(code, ErrEmptyPayload)
	default:
		return NewValidationError(code, fmt.Errorf("decode arguments: %w", err))
	}
}

// WriteNillableResponse writes v to w as JSON, an empty object when v is nil.
// The response may be partially written already, so failures are only logged.
func WriteNillableResponse(w io.Writer, v interface{}, l log.Logger) {
	if v == nil {
		v = struct{}{}
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.Errorf("write command response: %s", err)
	}
}
