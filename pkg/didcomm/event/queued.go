/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topic is the pub/sub topic carrying exchange events.
const Topic = "issuecredential_states"

const defaultBufferSize = 20

// Queued hands events to a pub/sub queue consumed by a single subscriber.
// Publishing blocks until the subscriber acknowledges, so events of one thread keep their order.
type Queued struct {
	listeners

	pubSub *gochannel.GoChannel
	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueued returns a dispatcher backed by a watermill Go channel pub/sub.
func NewQueued() (*Queued, error) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            defaultBufferSize,
		BlockPublishUntilSubscriberAck: true,
	}, newWMLogger())

	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := pubSub.Subscribe(ctx, Topic)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("subscribe to %s: %w", Topic, err)
	}

	q := &Queued{
		pubSub: pubSub,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go q.consume(ctx, msgs)

	return q, nil
}

// Dispatch publishes the event and waits for the subscriber to deliver it.
func (q *Queued) Dispatch(_ context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := q.pubSub.Publish(Topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}

// Close stops the subscriber and closes the pub/sub.
func (q *Queued) Close() error {
	q.cancel()

	err := q.pubSub.Close()

	<-q.done

	return err
}

func (q *Queued) consume(ctx context.Context, msgs <-chan *message.Message) {
	defer close(q.done)

	for msg := range msgs {
		var e Event

		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			logger.Errorf("drop malformed event %s: %s", msg.UUID, err)
			msg.Ack()

			continue
		}

		if err := q.notify(ctx, e); err != nil {
			logger.Warnf("event %s delivery interrupted: %s", msg.UUID, err)
		}

		msg.Ack()
	}
}
