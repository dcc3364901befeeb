/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package loopback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/transport"
)

var logger = log.New("aries-framework/transport/loopback")

// ErrRouteExists is returned when a DID is registered twice.
var ErrRouteExists = errors.New("route already registered")

// Router delivers messages between agents of the same process. Delivery is synchronous:
// Send returns once the recipient handled the message.
type Router struct {
	mu     sync.RWMutex
	routes map[string]service.InboundHandler
}

// New returns an empty router.
func New() *Router {
	return &Router{routes: map[string]service.InboundHandler{}}
}

// Register routes messages sent to did to h.
func (r *Router) Register(did string, h service.InboundHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[did]; ok {
		return fmt.Errorf("%s: %w", did, ErrRouteExists)
	}

	r.routes[did] = h

	return nil
}

// Unregister removes the route of did.
func (r *Router) Unregister(did string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.routes, did)
}

// Send encodes msg as on the wire and hands it to the recipient.
// Errors of the recipient are protocol outcomes reported back with problem reports,
// they are logged and do not fail the delivery.
func (r *Router) Send(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error {
	r.mu.RLock()
	h, ok := r.routes[theirDID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s: %w", theirDID, transport.ErrNoRoute)
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	inbound, err := service.ParseDIDCommMsgMap(raw)
	if err != nil {
		return err
	}

	if err := h.HandleInbound(ctx, inbound, theirDID, myDID); err != nil {
		logger.Warnf("%s -> %s: %s handled with error: %s", myDID, theirDID, inbound.Type(), err)
	}

	return nil
}
