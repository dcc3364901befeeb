/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package webnotifier fans agent events out to webhook subscribers and WebSocket clients.
package webnotifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/command"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/rest"
)

var logger = log.New("aries-framework/webnotifier")

const (
	notificationSendTimeout = 10 * time.Second
	emptyTopicErrMsg        = "cannot notify with an empty topic"
	emptyMessageErrMsg      = "cannot notify with an empty message"
	failedToCreateErrMsg    = "failed to create topic message : %w"
)

// WebNotifier is a dispatcher capable of notifying multiple subscribers via HTTP (webhooks) and WebSocket.
type WebNotifier struct {
	notifiers []command.Notifier
	handlers  []rest.Handler
}

// New returns a new instance of a WebNotifier. Clients connect to the WebSocket at wsPath,
// opts configure the webhook deliveries.
func New(wsPath string, webhookURLs []string, opts ...HTTPOption) *WebNotifier {
	ws := NewWSNotifier(wsPath)

	return &WebNotifier{
		notifiers: []command.Notifier{NewHTTPNotifier(webhookURLs, opts...), ws},
		handlers:  ws.GetRESTHandlers(),
	}
}

// Notify sends the given message to all of the subscribers.
func (n *WebNotifier) Notify(topic string, message []byte) error {
	var allErrs error

	for _, notifier := range n.notifiers {
		allErrs = appendError(allErrs, notifier.Notify(topic, message))
	}

	return allErrs
}

// GetRESTHandlers returns all REST handlers provided by notifier.
func (n *WebNotifier) GetRESTHandlers() []rest.Handler {
	return n.handlers
}

type topicMessage struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
}

// PrepareTopicMessage wraps the message into the topic envelope sent to subscribers.
func PrepareTopicMessage(topic string, message []byte) ([]byte, error) {
	if !json.Valid(message) {
		return nil, errors.New("message is not valid JSON")
	}

	return json.Marshal(&topicMessage{
		ID:      uuid.New().String(),
		Topic:   topic,
		Message: message,
	})
}

func appendError(errToAppendTo, err error) error {
	if err == nil {
		return errToAppendTo
	}

	if errToAppendTo == nil {
		return err
	}

	return fmt.Errorf("%v;%w", errToAppendTo, err)
}
