/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"
	"sync"

	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/command"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/event"
)

// Observer forwards the events of agent dispatchers to a notifier.
// Events are notified in dispatch order, on one goroutine per observer.
// Dispatch never waits on the notifier: the queue is unbounded.
type Observer struct {
	notifier command.Notifier
	wake     chan struct{}
	done     chan struct{}
	stopped  chan struct{}

	qmu    sync.Mutex
	queue  []topicEvent
	closed bool

	mu    sync.Mutex
	stops []func()
	once  sync.Once
}

type topicEvent struct {
	topic string
	event event.Event
}

// NewObserver returns an observer notifying notifier.
func NewObserver(notifier command.Notifier) *Observer {
	o := &Observer{
		notifier: notifier,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go o.forward()

	return o
}

// RegisterDispatcher notifies the events of dispatcher under topic.
func (o *Observer) RegisterDispatcher(topic string, dispatcher event.Dispatcher) {
	stop := dispatcher.RegisterListener(func(e event.Event) {
		o.enqueue(topicEvent{topic: topic, event: e})
	})

	o.mu.Lock()
	o.stops = append(o.stops, stop)
	o.mu.Unlock()
}

// Stop unregisters the observer from every dispatcher. Queued events are still notified.
func (o *Observer) Stop() {
	o.once.Do(func() {
		o.mu.Lock()
		for _, stop := range o.stops {
			stop()
		}
		o.mu.Unlock()

		o.qmu.Lock()
		o.closed = true
		o.qmu.Unlock()

		close(o.done)
		<-o.stopped
	})
}

func (o *Observer) enqueue(te topicEvent) {
	o.qmu.Lock()
	if o.closed {
		o.qmu.Unlock()
		logger.Debugf("observer stopped, event of thread %s is not notified", te.event.ThreadID)

		return
	}

	o.queue = append(o.queue, te)
	o.qmu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Observer) take() []topicEvent {
	o.qmu.Lock()
	defer o.qmu.Unlock()

	batch := o.queue
	o.queue = nil

	return batch
}

func (o *Observer) forward() {
	defer close(o.stopped)

	for {
		select {
		case <-o.wake:
			for _, te := range o.take() {
				o.notify(te)
			}
		case <-o.done:
			for _, te := range o.take() {
				o.notify(te)
			}

			return
		}
	}
}
func (o *Observer) notify(te topicEvent) {
	payload, err := json.Marshal(te.event)
	if err != nil {
		logger.Errorf("observer: marshal event of thread %s: %s", te.event.ThreadID, err)

		return
	}

	if err := o.notifier.Notify(te.topic, payload); err != nil {
		logger.Warnf("observer: notify %s: %s", te.topic, err)
	}
}
