/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"context"
	"errors"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
)

// ErrNoRoute is returned when no agent is reachable for the recipient DID.
var ErrNoRoute = errors.New("no route to recipient")

// Sender interface definition for transport layer
// This is the client side of the agent
type Sender interface {
	// Send delivers msg from myDID to theirDID.
	Send(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error
}

// Envelope is the plaintext wire form of a protocol message between two agents.
type Envelope struct {
	From    string                `json:"from"`
	To      string                `json:"to"`
	Message service.DIDCommMsgMap `json:"message"`
}
