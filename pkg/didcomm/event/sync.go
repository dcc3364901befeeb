/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package event

import "context"

// Sync invokes listeners on the dispatching goroutine, in registration order.
type Sync struct {
	listeners
}

// NewSync returns a synchronous dispatcher.
func NewSync() *Sync {
	return &Sync{}
}

// Dispatch notifies every listener before returning.
func (s *Sync) Dispatch(ctx context.Context, e Event) error {
	logger.Debugf("dispatching event thid=%s %s -> %s", e.ThreadID, e.OldState, e.NewState)

	return s.notify(ctx, e)
}

// Close is a no-op.
func (s *Sync) Close() error {
	return nil
}
