/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package agent assembles the issue-credential state machines of one agent
// and hosts several agents (tenants) in one process.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/piprate/json-gold/ld"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

var logger = log.New("aries-framework/agent")

// Agent provides the issuer and holder of one agent. The state machines, the exchange
// store and the event dispatcher are private to the agent.
type Agent struct {
	name           string
	storeProvider  storage.Provider
	storeName      string
	store          *exchange.Store
	messenger      service.Messenger
	dispatcher     event.Dispatcher
	resolver       registry.SchemaResolver
	revocationReg  registry.RevocationRegistry
	documentLoader ld.DocumentLoader
	protocolOpts   []issuecredential.Opt
	dids           []string
	issuer         *issuecredential.Issuer
	holder         *issuecredential.Holder
}

// Option configures the agent.
type Option func(opts *Agent) error

// New initializes the agent named name.
func New(name string, opts ...Option) (*Agent, error) {
	if name == "" {
		return nil, errors.New("agent name is mandatory")
	}

	a := &Agent{name: name}

	for _, option := range opts {
		if err := option(a); err != nil {
			return nil, fmt.Errorf("error in option passed to New: %w", err)
		}
	}

	if err := defAgentOpts(a); err != nil {
		return nil, fmt.Errorf("default option initialization failed: %w", err)
	}

	var storeOpts []exchange.Opt
	if a.storeName != "" {
		storeOpts = append(storeOpts, exchange.WithStoreName(a.storeName))
	}

	s, err := exchange.New(a.storeProvider, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open exchange store of %s: %w", name, err)
	}

	a.store = s
	a.issuer = issuecredential.NewIssuer(a, a.protocolOpts...)
	a.holder = issuecredential.NewHolder(a, a.protocolOpts...)

	logger.Infof("agent %s started with DIDs %v", name, a.dids)

	return a, nil
}

func defAgentOpts(a *Agent) error {
	if a.storeProvider == nil {
		a.storeProvider = mem.NewProvider()
	}

	if a.dispatcher == nil {
		a.dispatcher = event.NewSync()
	}

	if a.messenger == nil {
		return errors.New("messenger is mandatory")
	}

	if a.resolver == nil {
		return errors.New("schema resolver is mandatory")
	}

	if a.revocationReg == nil {
		return errors.New("revocation registry is mandatory")
	}

	if a.documentLoader == nil {
		loader, err := issuecredential.NewDocumentLoader()
		if err != nil {
			return err
		}

		a.documentLoader = loader
	}

	return nil
}

// WithStorageProvider injects the storage provider of the exchange store.
func WithStorageProvider(p storage.Provider) Option {
	return func(opts *Agent) error {
		opts.storeProvider = p
		return nil
	}
}

// WithStoreName sets the name of the exchange store, so agents can share a storage provider.
func WithStoreName(name string) Option {
	return func(opts *Agent) error {
		opts.storeName = name
		return nil
	}
}

// WithMessenger injects the outbound messenger.
func WithMessenger(m service.Messenger) Option {
	return func(opts *Agent) error {
		opts.messenger = m
		return nil
	}
}

// WithDispatcher injects the event dispatcher. The agent closes it on Close.
func WithDispatcher(d event.Dispatcher) Option {
	return func(opts *Agent) error {
		opts.dispatcher = d
		return nil
	}
}

// WithSchemaResolver injects the schema and credential definition lookup.
func WithSchemaResolver(r registry.SchemaResolver) Option {
	return func(opts *Agent) error {
		opts.resolver = r
		return nil
	}
}

// WithRevocationRegistry injects the revocation registry.
func WithRevocationRegistry(r registry.RevocationRegistry) Option {
	return func(opts *Agent) error {
		opts.revocationReg = r
		return nil
	}
}

// WithDocumentLoader injects the JSON-LD document loader.
func WithDocumentLoader(l ld.DocumentLoader) Option {
	return func(opts *Agent) error {
		opts.documentLoader = l
		return nil
	}
}

// WithProtocolOptions configures the issuer and holder state machines.
func WithProtocolOptions(o ...issuecredential.Opt) Option {
	return func(opts *Agent) error {
		opts.protocolOpts = append(opts.protocolOpts, o...)
		return nil
	}
}

// WithDIDs sets the DIDs the agent receives messages on.
func WithDIDs(dids ...string) Option {
	return func(opts *Agent) error {
		for _, did := range dids {
			if did == "" {
				return errors.New("empty DID")
			}
		}

		opts.dids = append(opts.dids, dids...)

		return nil
	}
}

// AgentName returns the agent name.
func (a *Agent) AgentName() string {
	return a.name
}

// ExchangeStore returns the exchange record store of the agent.
func (a *Agent) ExchangeStore() *exchange.Store {
	return a.store
}

// Messenger returns the outbound messenger.
func (a *Agent) Messenger() service.Messenger {
	return a.messenger
}

// Dispatcher returns the event dispatcher.
func (a *Agent) Dispatcher() event.Dispatcher {
	return a.dispatcher
}

// SchemaResolver returns the schema resolver.
func (a *Agent) SchemaResolver() registry.SchemaResolver {
	return a.resolver
}

// RevocationRegistry returns the revocation registry.
func (a *Agent) RevocationRegistry() registry.RevocationRegistry {
	return a.revocationReg
}

// DocumentLoader returns the JSON-LD document loader.
func (a *Agent) DocumentLoader() ld.DocumentLoader {
	return a.documentLoader
}

// DIDs returns the DIDs of the agent.
func (a *Agent) DIDs() []string {
	return append([]string(nil), a.dids...)
}

// Issuer returns the issuer state machine.
func (a *Agent) Issuer() *issuecredential.Issuer {
	return a.issuer
}

// Holder returns the holder state machine.
func (a *Agent) Holder() *issuecredential.Holder {
	return a.holder
}

// Store returns the exchange record store.
func (a *Agent) Store() *exchange.Store {
	return a.store
}

// HandleInbound routes an inbound message to the state machine of the role it addresses.
func (a *Agent) HandleInbound(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error {
	logger.Debugf("%s: inbound %s from %s", a.name, msg.Type(), theirDID)

	switch msg.Type() {
	case issuecredential.ProposeCredentialMsgTypeV2:
		return a.issuer.HandleProposal(ctx, msg, myDID, theirDID)
	case issuecredential.OfferCredentialMsgTypeV2:
		return a.holder.HandleOffer(ctx, msg, myDID, theirDID)
	case issuecredential.RequestCredentialMsgTypeV2:
		return a.issuer.HandleRequest(ctx, msg, myDID, theirDID)
	case issuecredential.IssueCredentialMsgTypeV2:
		return a.holder.ReceiveCredential(ctx, msg, myDID, theirDID)
	case issuecredential.AckMsgTypeV2:
		return a.issuer.HandleAck(ctx, msg, myDID, theirDID)
	case issuecredential.RevocationNotificationMsgType:
		return a.holder.HandleRevocationNotification(ctx, msg, myDID, theirDID)
	case issuecredential.ProblemReportMsgTypeV2:
		return a.handleProblemReport(ctx, msg, myDID, theirDID)
	default:
		return fmt.Errorf("%s: %w", msg.Type(), issuecredential.ErrUnknownMessageType)
	}
}

func (a *Agent) handleProblemReport(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error {
	thID, err := msg.ThreadID()
	if err != nil {
		return err
	}

	rec, err := a.store.Get(thID)
	if err != nil {
		return fmt.Errorf("problem report for thread %s: %w", thID, err)
	}

	if rec.Role == exchange.RoleIssuer {
		return a.issuer.HandleProblemReport(ctx, msg, myDID, theirDID)
	}

	return a.holder.HandleProblemReport(ctx, msg, myDID, theirDID)
}

// Close releases the dispatcher.
func (a *Agent) Close() error {
	if err := a.dispatcher.Close(); err != nil {
		return fmt.Errorf("close dispatcher of %s: %w", a.name, err)
	}

	return nil
}
