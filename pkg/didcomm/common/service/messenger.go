/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import "context"

// Messenger delivers protocol messages to the other party of an exchange.
// Delivery may be asynchronous; implementations must not retry on behalf of the caller.
type Messenger interface {
	// Send sends the message from myDID to theirDID.
	Send(ctx context.Context, msg DIDCommMsgMap, myDID, theirDID string) error
}

// InboundHandler consumes protocol messages received from the other party.
type InboundHandler interface {
	// HandleInbound handles an inbound message addressed to myDID by theirDID.
	HandleInbound(ctx context.Context, msg DIDCommMsgMap, myDID, theirDID string) error
}

// MessengerFunc is a function adapter for the Messenger interface.
type MessengerFunc func(ctx context.Context, msg DIDCommMsgMap, myDID, theirDID string) error

// Send calls f(ctx, msg, myDID, theirDID).
func (f MessengerFunc) Send(ctx context.Context, msg DIDCommMsgMap, myDID, theirDID string) error {
	return f(ctx, msg, myDID, theirDID)
}
