/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/transport"
)

// Endpoints maps recipient DIDs to the HTTP endpoints of their agents.
type Endpoints struct {
	mu   sync.RWMutex
	urls map[string]string
}

// NewEndpoints returns the endpoint table.
func NewEndpoints(urls map[string]string) *Endpoints {
	e := &Endpoints{urls: map[string]string{}}
	for did, url := range urls {
		e.urls[did] = url
	}

	return e
}

// Set sets the endpoint of did.
func (e *Endpoints) Set(did, url string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.urls[did] = url
}

// Endpoint returns the endpoint of did.
func (e *Endpoints) Endpoint(did string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	url, ok := e.urls[did]
	if !ok {
		return "", fmt.Errorf("%s: %w", did, transport.ErrNoRoute)
	}

	return url, nil
}

// outboundCommHTTPOpts holds options for the HTTP transport implementation of Sender
// it has an http.Client instance
type outboundCommHTTPOpts struct {
	client *http.Client
}

// OutboundHTTPOpt is an outbound HTTP transport option
type OutboundHTTPOpt func(opts *outboundCommHTTPOpts)

// WithOutboundHTTPClient option is for creating an Outbound HTTP transport using an http.Client instance
func WithOutboundHTTPClient(client *http.Client) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = client
	}
}

// WithOutboundTimeout option is for creating an Outbound HTTP transport using a client timeout value
func WithOutboundTimeout(timeout time.Duration) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client.Timeout = timeout
	}
}

// WithOutboundTLSConfig option is for creating an Outbound HTTP transport using a tls.Config instance
func WithOutboundTLSConfig(tlsConfig *tls.Config) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		}
	}
}

// OutboundHTTPClient represents the Outbound HTTP transport instance
type OutboundHTTPClient struct {
	client    *http.Client
	endpoints *Endpoints
}

// NewOutbound creates a new instance of Outbound HTTP transport to Post messages to other agents.
func NewOutbound(endpoints *Endpoints, opts ...OutboundHTTPOpt) (*OutboundHTTPClient, error) {
	if endpoints == nil {
		return nil, errors.New("can't create an outbound transport without endpoints")
	}

	clOpts := &outboundCommHTTPOpts{client: &http.Client{}}
	// Apply options
	for _, opt := range opts {
		opt(clOpts)
	}

	if clOpts.client == nil {
		return nil, errors.New("can't create an outbound transport without an HTTP client")
	}

	return &OutboundHTTPClient{client: clOpts.client, endpoints: endpoints}, nil
}

// Send posts the message to the agent of theirDID (client side).
func (cs *OutboundHTTPClient) Send(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error {
	url, err := cs.endpoints.Endpoint(theirDID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(&transport.Envelope{From: myDID, To: theirDID, Message: msg})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("new request for %s: %w", url, err)
	}

	req.Header.Set("Content-Type", transport.MediaTypeV1PlaintextPayload)

	resp, err := cs.client.Do(req)
	if err != nil {
		logger.Errorf("HTTP Transport - Error posting message to agent at [%s]: %v", url, err)

		return err
	}

	defer closeResponse(resp.Body)

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non success POST HTTP status from agent at [%s]: status : %v", url, resp.Status)
	}

	return nil
}

func closeResponse(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Errorf("HTTP Transport - Error closing response body: %v", err)
	}
}
