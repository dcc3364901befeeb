/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"fmt"
	"time"

	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/command"
	issuecredentialcmd "github.com/hyperledger/aries-issuecredential-go/pkg/controller/command/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/rest"
	issuecredentialrest "github.com/hyperledger/aries-issuecredential-go/pkg/controller/rest/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/webnotifier"
)

type allOpts struct {
	webhookURLs    []string
	webhookOpts    []webnotifier.HTTPOption
	notifier       command.Notifier
	commandTimeout time.Duration
}

const wsPath = "/ws"

// Opt represents a controller option.
type Opt func(opts *allOpts)

// WithWebhookURLs is an option for setting up a webhook dispatcher which will notify clients of events
func WithWebhookURLs(webhookURLs ...string) Opt {
	return func(opts *allOpts) {
		opts.webhookURLs = webhookURLs
	}
}

// WithWebhookRetries sets how many times a failed webhook notification is retried.
func WithWebhookRetries(retries uint64) Opt {
	return func(opts *allOpts) {
		opts.webhookOpts = append(opts.webhookOpts, webnotifier.WithRetries(retries))
	}
}

// WithNotifier is an option for setting up a notifier which will notify clients of events
func WithNotifier(notifier command.Notifier) Opt {
	return func(opts *allOpts) {
		opts.notifier = notifier
	}
}

// WithCommandTimeout bounds the time one command may take.
func WithCommandTimeout(timeout time.Duration) Opt {
	return func(opts *allOpts) {
		opts.commandTimeout = timeout
	}
}

// Controller contains the REST and command handlers of the agents.
type Controller struct {
	issueCredential *issuecredentialrest.Operation
	handlers        []rest.Handler
}

// New returns the controller of the agents known to p.
// Without WithNotifier, events go to the webhook URLs and to websocket clients of /ws.
func New(p issuecredentialcmd.Provider, opts ...Opt) (*Controller, error) {
	ctrlOpts := &allOpts{}
	// Apply options
	for _, opt := range opts {
		opt(ctrlOpts)
	}

	notifier := ctrlOpts.notifier
	if notifier == nil {
		notifier = webnotifier.New(wsPath, ctrlOpts.webhookURLs, ctrlOpts.webhookOpts...)
	}

	var cmdOpts []issuecredentialcmd.Option
	if ctrlOpts.commandTimeout > 0 {
		cmdOpts = append(cmdOpts, issuecredentialcmd.WithTimeout(ctrlOpts.commandTimeout))
	}

	op, err := issuecredentialrest.New(p, notifier, cmdOpts...)
	if err != nil {
		return nil, fmt.Errorf("create issue credential rest operation : %w", err)
	}

	var allHandlers []rest.Handler
	allHandlers = append(allHandlers, op.GetRESTHandlers()...)

	nhp, ok := notifier.(handlerProvider)
	if ok {
		allHandlers = append(allHandlers, nhp.GetRESTHandlers()...)
	}

	return &Controller{issueCredential: op, handlers: allHandlers}, nil
}

type handlerProvider interface {
	GetRESTHandlers() []rest.Handler
}

// GetRESTHandlers returns all REST handlers provided by controller.
func (c *Controller) GetRESTHandlers() []rest.Handler {
	return c.handlers
}

// GetCommandHandlers returns all command handlers provided by controller.
func (c *Controller) GetCommandHandlers() []command.Handler {
	return c.issueCredential.Command().GetHandlers()
}

// Close stops notifying events.
func (c *Controller) Close() {
	c.issueCredential.Close()
}
