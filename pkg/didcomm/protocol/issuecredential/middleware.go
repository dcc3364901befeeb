/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"context"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

// Handler describes middleware interface
type Handler interface {
	Handle(ctx context.Context, metadata MetaData) error
}

// Middleware function receives next handler and returns handler that needs to be executed
type Middleware func(next Handler) Handler

// HandlerFunc is a helper type which implements the middleware Handler interface
type HandlerFunc func(ctx context.Context, metadata MetaData) error

// Handle implements function to satisfy the Handler interface
func (hf HandlerFunc) Handle(ctx context.Context, metadata MetaData) error {
	return hf(ctx, metadata)
}

// MetaData provides helpful information for the processing of a transition.
type MetaData interface {
	// Agent is the name of the agent owning the record.
	Agent() string
	// Record is the record as it will be committed.
	Record() *exchange.Record
	// Message contains the inbound message that triggered the transition, if any.
	Message() service.DIDCommMsgMap
	// PreviousStateName provides the state the record leaves.
	PreviousStateName() string
	// StateName provides the state the record enters
	StateName() string
}

type metaData struct {
	agent    string
	record   *exchange.Record
	msg      service.DIDCommMsgMap
	previous string
}

func (md *metaData) Agent() string {
	return md.agent
}

func (md *metaData) Record() *exchange.Record {
	return md.record
}

func (md *metaData) Message() service.DIDCommMsgMap {
	return md.msg
}

func (md *metaData) PreviousStateName() string {
	return md.previous
}

func (md *metaData) StateName() string {
	return md.record.State
}

func chain(h Handler, middleware []Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}

	return h
}
