/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/piprate/json-gold/ld"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

var logger = log.New("aries-framework/issuecredential/service")

const (
	defaultPollInterval = 100 * time.Millisecond
	maxPollInterval     = 2 * time.Second
)

// Provider contains dependencies for the issuer and holder state machines.
type Provider interface {
	AgentName() string
	ExchangeStore() *exchange.Store
	Messenger() service.Messenger
	Dispatcher() event.Dispatcher
	SchemaResolver() registry.SchemaResolver
	RevocationRegistry() registry.RevocationRegistry
	DocumentLoader() ld.DocumentLoader
}

type options struct {
	autoIssue              bool
	notifyOnDelete         bool
	revocationNotification bool
	silenceTimeout         time.Duration
	pollInterval           time.Duration
	middleware             []Middleware
}

// Opt configures the issuer and holder state machines.
type Opt func(*options)

// WithAutoIssue makes the issuer accept requests as soon as they are received.
func WithAutoIssue(autoIssue bool) Opt {
	return func(o *options) {
		o.autoIssue = autoIssue
	}
}

// WithNotifyOnDelete controls whether deleting an offer sends a problem report to the holder.
// Enabled by default.
func WithNotifyOnDelete(notify bool) Opt {
	return func(o *options) {
		o.notifyOnDelete = notify
	}
}

// WithRevocationNotification makes the issuer notify the holder about revocations.
func WithRevocationNotification(notify bool) Opt {
	return func(o *options) {
		o.revocationNotification = notify
	}
}

// WithSilenceTimeout sets how long a holder waits for the issuer before abandoning the exchange.
// Zero disables the timeout; the holder then relies on problem reports only.
func WithSilenceTimeout(timeout time.Duration) Opt {
	return func(o *options) {
		o.silenceTimeout = timeout
	}
}

// WithPollInterval sets the initial polling interval of ObserveDeletionOrSilence.
func WithPollInterval(interval time.Duration) Opt {
	return func(o *options) {
		o.pollInterval = interval
	}
}

// WithMiddleware adds transition middleware.
func WithMiddleware(mw ...Middleware) Opt {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

func newOptions(opts []Opt) *options {
	o := &options{
		notifyOnDelete: true,
		pollInterval:   defaultPollInterval,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// machine holds what the issuer and holder state machines share.
type machine struct {
	agent      string
	role       exchange.Role
	store      *exchange.Store
	messenger  service.Messenger
	dispatcher event.Dispatcher
	resolver   registry.SchemaResolver
	revReg     registry.RevocationRegistry
	loader     ld.DocumentLoader
	handler    Handler
}

func newMachine(p Provider, role exchange.Role, mw []Middleware) *machine {
	m := &machine{
		agent:      p.AgentName(),
		role:       role,
		store:      p.ExchangeStore(),
		messenger:  p.Messenger(),
		dispatcher: p.Dispatcher(),
		resolver:   p.SchemaResolver(),
		revReg:     p.RevocationRegistry(),
		loader:     p.DocumentLoader(),
	}

	m.handler = chain(HandlerFunc(m.persist), mw)

	return m
}

// lock takes the thread lease and loads the record of this machine's role.
func (m *machine) lock(thID string) (*exchange.Record, func(), error) {
	release, err := m.store.Acquire(thID)
	if err != nil {
		return nil, nil, err
	}

	rec, err := m.store.Get(thID)
	if err != nil {
		release()

		return nil, nil, err
	}

	if rec.Role != m.role {
		release()

		return nil, nil, fmt.Errorf("%w: thread %s belongs to the %s", ErrProtocolViolation, thID, rec.Role)
	}

	return rec, release, nil
}

// transition commits rec into state next through the middleware chain and dispatches the event.
// The caller must hold the thread lease.
func (m *machine) transition(ctx context.Context, rec *exchange.Record, next string, terminal bool,
	msg service.DIDCommMsgMap) error {
	original, wasTerminal := rec.State, rec.Terminal

	previous := original
	if previous == "" {
		previous = stateNameStart
	}

	rec.State = next
	rec.Terminal = terminal

	md := &metaData{agent: m.agent, record: rec, msg: msg, previous: previous}

	if err := m.handler.Handle(ctx, md); err != nil {
		rec.State, rec.Terminal = original, wasTerminal

		return err
	}

	logger.Debugf("agent=%s role=%s thid=%s: %s -> %s", m.agent, rec.Role, rec.ThreadID, previous, next)

	m.dispatch(ctx, rec, previous, nil)

	return nil
}

func (m *machine) persist(_ context.Context, md MetaData) error {
	rec := md.Record()

	if md.PreviousStateName() == stateNameStart {
		if err := m.store.Create(rec); err != nil {
			if errors.Is(err, exchange.ErrRecordExists) {
				return fmt.Errorf("%w: %s", ErrProtocolViolation, err)
			}

			return err
		}

		return nil
	}

	return m.store.Update(rec)
}

// update commits metadata changes that keep the state.
func (m *machine) update(ctx context.Context, rec *exchange.Record, extra map[string]interface{}) error {
	if err := m.store.Update(rec); err != nil {
		return err
	}

	m.dispatch(ctx, rec, rec.State, extra)

	return nil
}

func (m *machine) dispatch(ctx context.Context, rec *exchange.Record, previous string, extra map[string]interface{}) {
	props := newEventProps(rec).All()
	for k, v := range extra {
		props[k] = v
	}

	err := m.dispatcher.Dispatch(ctx, event.Event{
		Protocol:    Name,
		Agent:       m.agent,
		ThreadID:    rec.ThreadID,
		Role:        string(rec.Role),
		OldState:    previous,
		NewState:    rec.State,
		ErrorReason: rec.ErrorReason,
		Properties:  props,
	})
	if err != nil {
		logger.Errorf("agent=%s thid=%s: dispatch event: %s", m.agent, rec.ThreadID, err)
	}
}

// send delivers a protocol message. Transport errors are wrapped, never retried.
func (m *machine) send(ctx context.Context, msg interface{}, myDID, theirDID string) error {
	msgMap, err := service.NewDIDCommMsgMap(msg)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTransportFailure, err)
	}

	if msgMap.ID() == "" {
		msgMap.SetID(uuid.New().String())
	}

	if err := m.messenger.Send(ctx, msgMap, myDID, theirDID); err != nil {
		return fmt.Errorf("%w: send %s: %s", ErrTransportFailure, msgMap.Type(), err)
	}

	return nil
}

// sendProblemReport is fire-and-forget; failures are logged.
func (m *machine) sendProblemReport(ctx context.Context, thID, code, description, myDID, theirDID string) {
	err := m.send(ctx, &ProblemReport{
		Type:        ProblemReportMsgTypeV2,
		ID:          uuid.New().String(),
		Thread:      &decorator.Thread{ID: thID},
		Description: Description{Code: code, En: description},
	}, myDID, theirDID)
	if err != nil {
		logger.Warnf("agent=%s thid=%s: problem report %s not delivered: %s", m.agent, thID, code, err)
	}
}

// credentialDefinition resolves a definition that is ready to be used.
func (m *machine) credentialDefinition(ctx context.Context, credDefID string) (*registry.CredentialDefinition,
	*registry.Schema, error) {
	if credDefID == "" {
		return nil, nil, fmt.Errorf("%w: credential definition id is required", ErrUnresolvedRequest)
	}

	cd, err := m.resolver.CredentialDefinition(ctx, credDefID)
	if errors.Is(err, registry.ErrCredentialDefinitionNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnresolvedRequest, err)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("resolve credential definition: %w", err)
	}

	if !cd.Ready {
		return nil, nil, fmt.Errorf("%w: credential definition %s is not ready", ErrUnresolvedRequest, credDefID)
	}

	schema, err := m.resolver.Schema(ctx, cd.SchemaID)
	if errors.Is(err, registry.ErrSchemaNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnresolvedRequest, err)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("resolve schema: %w", err)
	}

	return cd, schema, nil
}
