/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

const (
	// StoreName is the default name of the exchange record store.
	StoreName = "issuecredential_exchange"

	keyPrefix = "exchange_"
	tagRole   = "role"
	tagState  = "state"
)

var logger = log.New("aries-framework/store/exchange")

var (
	// ErrRecordExists is returned when a record for the thread already exists.
	ErrRecordExists = errors.New("exchange record already exists")
	// ErrRecordNotFound is returned when no record exists for the thread.
	ErrRecordNotFound = errors.New("exchange record not found")
	// ErrConcurrentModification is returned when a writer lost a race on a record.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrImmutableField is returned when an update touches a field that can no longer change.
	ErrImmutableField = errors.New("immutable field")
)

// Store persists exchange records, one per thread id.
type Store struct {
	store storage.Store
	now   func() time.Time

	mu     sync.Mutex
	leases map[string]struct{}
}

type options struct {
	name string
	now  func() time.Time
}

// Opt configures the store.
type Opt func(*options)

// WithStoreName sets the name of the underlying store. Each agent uses its own name.
func WithStoreName(name string) Opt {
	return func(o *options) {
		o.name = name
	}
}

// WithClock overrides the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Opt {
	return func(o *options) {
		o.now = now
	}
}

// New opens the exchange record store on the given provider.
func New(provider storage.Provider, opts ...Opt) (*Store, error) {
	o := &options{
		name: StoreName,
		now:  func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(o)
	}

	store, err := provider.OpenStore(o.name)
	if err != nil {
		return nil, fmt.Errorf("failed to open exchange store: %w", err)
	}

	err = provider.SetStoreConfig(o.name, storage.StoreConfiguration{TagNames: []string{tagRole, tagState}})
	if err != nil {
		return nil, fmt.Errorf("failed to set store configuration: %w", err)
	}

	return &Store{
		store:  store,
		now:    o.now,
		leases: make(map[string]struct{}),
	}, nil
}

// Acquire takes the single-writer lease for the thread. It never blocks:
// when the lease is held the call fails with ErrConcurrentModification.
func (s *Store) Acquire(thID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leases[thID]; ok {
		return nil, fmt.Errorf("thread %s is busy: %w", thID, ErrConcurrentModification)
	}

	s.leases[thID] = struct{}{}

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.leases, thID)
			s.mu.Unlock()
		})
	}, nil
}

// Create stores a new record. The version is set to 1.
func (s *Store) Create(rec *Record) error {
	if rec.ThreadID == "" {
		return errors.New("thread id is mandatory")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.get(rec.ThreadID)
	if err == nil {
		return fmt.Errorf("thread %s: %w", rec.ThreadID, ErrRecordExists)
	}

	if !errors.Is(err, ErrRecordNotFound) {
		return err
	}

	now := s.now()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := s.put(rec); err != nil {
		return err
	}

	logger.Debugf("created exchange record thid=%s role=%s state=%s", rec.ThreadID, rec.Role, rec.State)

	return nil
}

// Get returns the record for the thread.
func (s *Store) Get(thID string) (*Record, error) {
	return s.get(thID)
}

// Update replaces the stored record. The stored version must equal rec.Version,
// otherwise ErrConcurrentModification is returned. On success rec.Version is bumped.
func (s *Store) Update(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(rec.ThreadID)
	if err != nil {
		return err
	}

	if current.Version != rec.Version {
		return fmt.Errorf("thread %s: stored version %d, got %d: %w",
			rec.ThreadID, current.Version, rec.Version, ErrConcurrentModification)
	}

	if err := checkMutable(current, rec); err != nil {
		return fmt.Errorf("thread %s: %w", rec.ThreadID, err)
	}

	next := rec.Clone()
	next.Version++
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now()

	if err := s.put(next); err != nil {
		return err
	}

	rec.Version = next.Version
	rec.CreatedAt = next.CreatedAt
	rec.UpdatedAt = next.UpdatedAt

	return nil
}

// Delete removes the record for the thread.
func (s *Store) Delete(thID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(keyPrefix + thID); err != nil {
		return fmt.Errorf("failed to delete exchange record: %w", err)
	}

	return nil
}

// List returns all records of the given role.
func (s *Store) List(role Role) ([]*Record, error) {
	return s.query(fmt.Sprintf("%s:%s", tagRole, role))
}

// ListByState returns all records in the given state.
func (s *Store) ListByState(state string) ([]*Record, error) {
	return s.query(fmt.Sprintf("%s:%s", tagState, state))
}

func (s *Store) query(expression string) ([]*Record, error) {
	iter, err := s.store.Query(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange records: %w", err)
	}

	defer storage.Close(iter, logger)

	var records []*Record

	more, err := iter.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next record: %w", err)
	}

	for more {
		raw, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to get record value: %w", err)
		}

		rec := &Record{}
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal exchange record: %w", err)
		}

		records = append(records, rec)

		more, err = iter.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next record: %w", err)
		}
	}

	return records, nil
}

func (s *Store) get(thID string) (*Record, error) {
	raw, err := s.store.Get(keyPrefix + thID)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, fmt.Errorf("thread %s: %w", thID, ErrRecordNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get exchange record: %w", err)
	}

	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exchange record: %w", err)
	}

	return rec, nil
}

func (s *Store) put(rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal exchange record: %w", err)
	}

	err = s.store.Put(keyPrefix+rec.ThreadID, raw,
		storage.Tag{Name: tagRole, Value: string(rec.Role)},
		storage.Tag{Name: tagState, Value: rec.State},
	)
	if err != nil {
		return fmt.Errorf("failed to store exchange record: %w", err)
	}

	return nil
}

func checkMutable(current, next *Record) error {
	if current.Role != next.Role {
		return fmt.Errorf("role: %w", ErrImmutableField)
	}

	if current.AttributesLocked && !sameAttributes(current.Attributes, next.Attributes) {
		return fmt.Errorf("credential attributes are locked: %w", ErrImmutableField)
	}

	if !current.Terminal {
		return nil
	}

	// only revocation and ack metadata may change on a terminal record
	if !bytes.Equal(frozen(current), frozen(next)) {
		return fmt.Errorf("record in terminal state %s: %w", current.State, ErrImmutableField)
	}

	return nil
}

func frozen(rec *Record) []byte {
	c := rec.Clone()
	c.RevokedAt = nil
	c.RevocationNotified = false
	c.Acked = false
	c.Version = 0
	c.CreatedAt = time.Time{}
	c.UpdatedAt = time.Time{}

	raw, err := json.Marshal(c)
	if err != nil {
		return nil
	}

	return raw
}

func sameAttributes(a, b []Attribute) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
