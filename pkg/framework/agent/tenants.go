/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/transport/loopback"
)

const storeNamePrefix = "issuecredential_"

var (
	// ErrTenantNotFound is returned for unknown tenant names.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrTenantExists is returned when a tenant name is taken.
	ErrTenantExists = errors.New("tenant already exists")
)

// Tenants hosts named agents sharing one storage provider. Messages between tenants are
// delivered in process, messages to other DIDs go through the remote sender when set.
type Tenants struct {
	mu       sync.RWMutex
	provider storage.Provider
	router   *loopback.Router
	remote   transport.Sender
	defaults []Option
	agents   map[string]*Agent
	byDID    map[string]*Agent
}

// TenantsOpt configures the tenants.
type TenantsOpt func(t *Tenants)

// WithRemoteSender sets the sender for recipients hosted elsewhere.
func WithRemoteSender(s transport.Sender) TenantsOpt {
	return func(t *Tenants) {
		t.remote = s
	}
}

// WithDefaultOptions sets the options applied to every tenant before its own.
func WithDefaultOptions(opts ...Option) TenantsOpt {
	return func(t *Tenants) {
		t.defaults = append(t.defaults, opts...)
	}
}

// NewTenants returns an empty tenant registry on top of provider.
func NewTenants(provider storage.Provider, opts ...TenantsOpt) *Tenants {
	t := &Tenants{
		provider: provider,
		router:   loopback.New(),
		agents:   map[string]*Agent{},
		byDID:    map[string]*Agent{},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Add creates the agent of tenant name and routes its DIDs.
func (t *Tenants) Add(name string, opts ...Option) (*Agent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.agents[name]; ok {
		return nil, fmt.Errorf("%s: %w", name, ErrTenantExists)
	}

	all := append([]Option{
		WithStorageProvider(t.provider),
		WithStoreName(storeNamePrefix + name),
		WithMessenger(service.MessengerFunc(t.send)),
	}, t.defaults...)

	a, err := New(name, append(all, opts...)...)
	if err != nil {
		return nil, err
	}

	for i, did := range a.dids {
		if err := t.router.Register(did, a); err != nil {
			for _, registered := range a.dids[:i] {
				t.router.Unregister(registered)
			}

			if closeErr := a.Close(); closeErr != nil {
				logger.Warnf("close rejected tenant %s: %s", name, closeErr)
			}

			return nil, fmt.Errorf("tenant %s: %w", name, err)
		}
	}

	for _, did := range a.dids {
		t.byDID[did] = a
	}

	t.agents[name] = a

	return a, nil
}

// Get returns the agent of tenant name.
func (t *Tenants) Get(name string) (*Agent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	a, ok := t.agents[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrTenantNotFound)
	}

	return a, nil
}

// Names returns the sorted tenant names.
func (t *Tenants) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.agents))
	for name := range t.agents {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// HandleInbound delivers a message received from another process to the tenant owning myDID.
func (t *Tenants) HandleInbound(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error {
	t.mu.RLock()
	a, ok := t.byDID[myDID]
	t.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s: %w", myDID, transport.ErrNoRoute)
	}

	return a.HandleInbound(ctx, msg, myDID, theirDID)
}

func (t *Tenants) send(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error {
	err := t.router.Send(ctx, msg, myDID, theirDID)
	if errors.Is(err, transport.ErrNoRoute) && t.remote != nil {
		return t.remote.Send(ctx, msg, myDID, theirDID)
	}

	return err
}

// Close closes every tenant.
func (t *Tenants) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error

	for name, a := range t.agents {
		for _, did := range a.dids {
			t.router.Unregister(did)
		}

		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}

		delete(t.agents, name)
	}

	t.byDID = map[string]*Agent{}

	return errors.Join(errs...)
}
