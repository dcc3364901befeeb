/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultWebhookRetries = 2
	webhookRetryInterval  = 100 * time.Millisecond
)

// HTTPNotifier posts events to webhook subscribers.
// Transport failures and 5xx answers are retried with an exponential backoff, other answers are final.
type HTTPNotifier struct {
	urls    []string
	client  *http.Client
	retries uint64
}

// HTTPOption configures an HTTPNotifier.
type HTTPOption func(*HTTPNotifier)

// WithRetries sets how many times a failed delivery is retried, defaults to 2.
func WithRetries(retries uint64) HTTPOption {
	return func(n *HTTPNotifier) {
		n.retries = retries
	}
}

// WithHTTPClient sets the client deliveries are posted with.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(n *HTTPNotifier) {
		n.client = client
	}
}

// NewHTTPNotifier returns an HTTPNotifier posting to webhookURLs.
func NewHTTPNotifier(webhookURLs []string, opts ...HTTPOption) *HTTPNotifier {
	n := &HTTPNotifier{
		urls:    webhookURLs,
		client:  &http.Client{Timeout: notificationSendTimeout},
		retries: defaultWebhookRetries,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Notify posts the message to every url and returns the errors of all of them.
func (n *HTTPNotifier) Notify(topic string, message []byte) error {
	if topic == "" {
		return errors.New(emptyTopicErrMsg)
	}

	if len(message) == 0 {
		return errors.New(emptyMessageErrMsg)
	}

	topicMsg, err := PrepareTopicMessage(topic, message)
	if err != nil {
		return fmt.Errorf(failedToCreateErrMsg, err)
	}

	var allErrs error

	for _, webhookURL := range n.urls {
		allErrs = appendError(allErrs, n.deliver(webhookURL, topicMsg))
	}

	return allErrs
}

func (n *HTTPNotifier) deliver(destination string, message []byte) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = webhookRetryInterval

	return backoff.RetryNotify(func() error {
		return n.post(destination, message)
	}, backoff.WithMaxRetries(b, n.retries), func(err error, wait time.Duration) {
		logger.Debugf("webhook delivery to %s failed, retrying in %s: %v", destination, wait, err)
	})
}

func (n *HTTPNotifier) post(destination string, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(message))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create new http post request for %s: %w", destination, err))
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post notification to %s: %w", destination, err)
	}

	defer closeResponse(resp.Body)

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		logger.Debugf("Notification sent to %s successfully", destination)

		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("notification was sent to %s, but %s was received", destination, resp.Status)
	default:
		return backoff.Permanent(fmt.Errorf("notification was rejected by %s with %s", destination, resp.Status))
	}
}

func closeResponse(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Errorf("Failed to close response body")
	}
}
