/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"context"
	"errors"
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"
)

var logger = log.New("aries-framework/didcomm/event")

// ErrChannelRegistered is returned when a channel is registered twice.
var ErrChannelRegistered = errors.New("channel is already registered")

// ErrChannelNotRegistered is returned when unregistering an unknown channel.
var ErrChannelNotRegistered = errors.New("channel is not registered")

// Event is a committed state change of an exchange record.
type Event struct {
	Protocol    string                 `json:"protocol"`
	Agent       string                 `json:"agent"`
	ThreadID    string                 `json:"thread_id"`
	Role        string                 `json:"role"`
	OldState    string                 `json:"old_state"`
	NewState    string                 `json:"new_state"`
	ErrorReason string                 `json:"error_reason,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}

// Dispatcher delivers events to registered listeners.
type Dispatcher interface {
	// Dispatch delivers the event. It returns once every listener has been handed the event.
	Dispatch(ctx context.Context, e Event) error
	// RegisterMsgEvent registers a channel listener. Sends on the channel block.
	RegisterMsgEvent(ch chan<- Event) error
	// UnregisterMsgEvent unregisters a channel listener.
	UnregisterMsgEvent(ch chan<- Event) error
	// RegisterListener registers a callback and returns the function removing it.
	RegisterListener(fn func(Event)) func()
	// Close releases the dispatcher resources.
	Close() error
}

type listener struct {
	id uint64
	ch chan<- Event
	fn func(Event)
}

// listeners keeps registration order.
type listeners struct {
	mu     sync.RWMutex
	nextID uint64
	items  []listener
}

func (l *listeners) RegisterMsgEvent(ch chan<- Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, item := range l.items {
		if item.ch != nil && item.ch == ch {
			return ErrChannelRegistered
		}
	}

	l.nextID++
	l.items = append(l.items, listener{id: l.nextID, ch: ch})

	return nil
}

func (l *listeners) UnregisterMsgEvent(ch chan<- Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, item := range l.items {
		if item.ch != nil && item.ch == ch {
			l.items = append(l.items[:i:i], l.items[i+1:]...)

			return nil
		}
	}

	return ErrChannelNotRegistered
}

func (l *listeners) RegisterListener(fn func(Event)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.items = append(l.items, listener{id: id, fn: fn})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		for i, item := range l.items {
			if item.id == id {
				l.items = append(l.items[:i:i], l.items[i+1:]...)

				return
			}
		}
	}
}

func (l *listeners) snapshot() []listener {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]listener(nil), l.items...)
}

func (l *listeners) notify(ctx context.Context, e Event) error {
	for _, item := range l.snapshot() {
		if item.fn != nil {
			item.fn(e)

			continue
		}

		select {
		case item.ch <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
