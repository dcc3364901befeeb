/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storage/leveldb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"
)

func newRecord(thID string) *Record {
	return &Record{
		ThreadID:               thID,
		Role:                   RoleIssuer,
		State:                  "offer-sent",
		MyDID:                  "did:example:issuer",
		TheirDID:               "did:example:holder",
		CredentialDefinitionID: "cred-def-id",
		SchemaID:               "schema-id",
		Attributes: []Attribute{
			{Name: "first_name", Value: "Jane"},
			{Name: "last_name", Value: "Doe"},
		},
		Format:           FormatIndy,
		AttributesLocked: true,
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(mem.NewProvider())
	require.NoError(t, err)

	return s
}

func TestNew(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		s, err := New(mem.NewProvider(), WithStoreName("tenant_a"))
		require.NoError(t, err)
		require.NotNil(t, s)
	})

	t.Run("Open store error", func(t *testing.T) {
		_, err := New(&failingProvider{errOpen: errors.New("open error")})
		require.Contains(t, err.Error(), "open error")
	})

	t.Run("Set store config error", func(t *testing.T) {
		_, err := New(&failingProvider{errConfig: errors.New("config error")})
		require.Contains(t, err.Error(), "config error")
	})
}

func TestStore_CreateGet(t *testing.T) {
	s := newStore(t)

	rec := newRecord("thid-1")
	require.NoError(t, s.Create(rec))
	require.Equal(t, uint64(1), rec.Version)
	require.False(t, rec.CreatedAt.IsZero())

	got, err := s.Get("thid-1")
	require.NoError(t, err)
	require.Equal(t, rec, got)

	require.ErrorIs(t, s.Create(newRecord("thid-1")), ErrRecordExists)

	_, err = s.Get("unknown")
	require.ErrorIs(t, err, ErrRecordNotFound)

	require.Error(t, s.Create(&Record{}))
}

func TestStore_Update(t *testing.T) {
	t.Run("Success bumps version", func(t *testing.T) {
		s := newStore(t)

		rec := newRecord("thid")
		require.NoError(t, s.Create(rec))

		rec.State = "request-received"
		require.NoError(t, s.Update(rec))
		require.Equal(t, uint64(2), rec.Version)

		got, err := s.Get("thid")
		require.NoError(t, err)
		require.Equal(t, "request-received", got.State)
		require.Equal(t, uint64(2), got.Version)
	})

	t.Run("Stale version", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(newRecord("thid")))

		first, err := s.Get("thid")
		require.NoError(t, err)

		second, err := s.Get("thid")
		require.NoError(t, err)

		first.State = "request-received"
		require.NoError(t, s.Update(first))

		second.State = "deleted"
		require.ErrorIs(t, s.Update(second), ErrConcurrentModification)

		got, err := s.Get("thid")
		require.NoError(t, err)
		require.Equal(t, "request-received", got.State)
	})

	t.Run("Not found", func(t *testing.T) {
		require.ErrorIs(t, newStore(t).Update(newRecord("thid")), ErrRecordNotFound)
	})

	t.Run("Role is immutable", func(t *testing.T) {
		s := newStore(t)

		rec := newRecord("thid")
		require.NoError(t, s.Create(rec))

		rec.Role = RoleHolder
		require.ErrorIs(t, s.Update(rec), ErrImmutableField)
	})

	t.Run("Locked attributes", func(t *testing.T) {
		s := newStore(t)

		rec := newRecord("thid")
		require.NoError(t, s.Create(rec))

		rec.Attributes[0].Value = "John"
		require.ErrorIs(t, s.Update(rec), ErrImmutableField)
	})

	t.Run("Unlocked attributes may change", func(t *testing.T) {
		s := newStore(t)

		rec := newRecord("thid")
		rec.AttributesLocked = false
		require.NoError(t, s.Create(rec))

		rec.Attributes = append(rec.Attributes, Attribute{Name: "age", Value: "30"})
		rec.AttributesLocked = true
		require.NoError(t, s.Update(rec))
	})

	t.Run("Terminal record accepts revocation metadata only", func(t *testing.T) {
		s := newStore(t)

		rec := newRecord("thid")
		rec.State = "credential-issued"
		rec.Terminal = true
		rec.Revocable = true
		rec.RevocationRegistryID = "rev-reg"
		rec.RevocationIndex = "1"
		require.NoError(t, s.Create(rec))

		revokedAt := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
		rec.RevokedAt = &revokedAt
		rec.RevocationNotified = true
		rec.Acked = true
		require.NoError(t, s.Update(rec))

		rec.State = "abandoned"
		require.ErrorIs(t, s.Update(rec), ErrImmutableField)

		got, err := s.Get("thid")
		require.NoError(t, err)
		require.Equal(t, "credential-issued", got.State)
		require.True(t, got.Revoked())
		require.True(t, got.RevocationNotified)
		require.True(t, got.Acked)
	})
}

func TestStore_Delete(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Create(newRecord("thid")))
	require.NoError(t, s.Delete("thid"))

	_, err := s.Get("thid")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_List(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Create(newRecord("thid-1")))
	require.NoError(t, s.Create(newRecord("thid-2")))

	holderRec := newRecord("thid-3")
	holderRec.Role = RoleHolder
	holderRec.State = "offer-received"
	require.NoError(t, s.Create(holderRec))

	issuerRecs, err := s.List(RoleIssuer)
	require.NoError(t, err)
	require.Len(t, issuerRecs, 2)

	holderRecs, err := s.List(RoleHolder)
	require.NoError(t, err)
	require.Len(t, holderRecs, 1)
	require.Equal(t, "thid-3", holderRecs[0].ThreadID)

	pending, err := s.ListByState("offer-sent")
	require.NoError(t, err)
	require.Len(t, pending, 2)

	// the state tag follows updates
	rec, err := s.Get("thid-1")
	require.NoError(t, err)

	rec.State = "deleted"
	require.NoError(t, s.Update(rec))

	pending, err = s.ListByState("offer-sent")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "thid-2", pending[0].ThreadID)
}

func TestStore_Acquire(t *testing.T) {
	t.Run("Held lease rejects other writers", func(t *testing.T) {
		s := newStore(t)

		release, err := s.Acquire("thid")
		require.NoError(t, err)

		_, err = s.Acquire("thid")
		require.ErrorIs(t, err, ErrConcurrentModification)

		other, err := s.Acquire("other")
		require.NoError(t, err)
		other()

		release()
		release()

		release, err = s.Acquire("thid")
		require.NoError(t, err)
		release()
	})

	t.Run("Exactly one concurrent winner", func(t *testing.T) {
		s := newStore(t)

		const workers = 20

		var (
			wg      sync.WaitGroup
			wins    int32
			losses  int32
			start   = make(chan struct{})
			holding = make(chan struct{})
		)

		for i := 0; i < workers; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				<-start

				release, err := s.Acquire("thid")
				if errors.Is(err, ErrConcurrentModification) {
					atomic.AddInt32(&losses, 1)

					return
				}

				atomic.AddInt32(&wins, 1)
				<-holding
				release()
			}()
		}

		close(start)

		require.Eventually(t, func() bool {
			return atomic.LoadInt32(&wins)+atomic.LoadInt32(&losses) == workers
		}, time.Second, time.Millisecond)

		close(holding)
		wg.Wait()

		require.Equal(t, int32(1), wins)
		require.Equal(t, int32(workers-1), losses)
	})
}

func TestRecord_RoundTrip(t *testing.T) {
	revokedAt := time.Date(2023, 5, 1, 10, 0, 0, 123, time.UTC)

	rec := newRecord("thid")
	rec.Format = FormatJSONLD
	rec.Credential = json.RawMessage(`{"@context":["https://www.w3.org/2018/credentials/v1"],"type":["VerifiableCredential"]}`)
	rec.Revocable = true
	rec.RevocationRegistryID = "rev-reg"
	rec.RevocationIndex = "7"
	rec.RevokedAt = &revokedAt
	rec.Version = 3
	rec.CreatedAt = time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)
	rec.UpdatedAt = time.Date(2023, 4, 2, 10, 0, 0, 0, time.UTC)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	decoded := &Record{}
	require.NoError(t, json.Unmarshal(raw, decoded))
	require.Equal(t, rec, decoded)
	require.Equal(t, map[string]string{"first_name": "Jane", "last_name": "Doe"}, decoded.AttributeMap())

	clone := rec.Clone()
	require.Equal(t, rec, clone)

	clone.Attributes[0].Value = "changed"
	require.Equal(t, "Jane", rec.Attributes[0].Value)

	require.Nil(t, (*Record)(nil).Clone())
}

func TestStore_LevelDB(t *testing.T) {
	provider := leveldb.NewProvider(t.TempDir())

	t.Cleanup(func() {
		require.NoError(t, provider.Close())
	})

	s, err := New(provider)
	require.NoError(t, err)

	rec := newRecord("thid")
	require.NoError(t, s.Create(rec))

	rec.State = "request-received"
	require.NoError(t, s.Update(rec))

	got, err := s.Get("thid")
	require.NoError(t, err)
	require.Equal(t, rec, got)

	recs, err := s.ListByState("request-received")
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

type failingProvider struct {
	storage.Provider
	errOpen   error
	errConfig error
}

func (p *failingProvider) OpenStore(string) (storage.Store, error) {
	if p.errOpen != nil {
		return nil, p.errOpen
	}

	return nil, nil
}

func (p *failingProvider) SetStoreConfig(string, storage.StoreConfiguration) error {
	return p.errConfig
}
