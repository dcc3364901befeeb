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

	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

// Revocation updates the revocation registry for issued credentials.
// Revoking never changes the state of the exchange.
type Revocation struct {
	*machine
	notify bool
}

func newRevocation(m *machine, notify bool) *Revocation {
	return &Revocation{machine: m, notify: notify}
}

// Revoke revokes the credential issued on the thread and records revoked_at.
func (r *Revocation) Revoke(ctx context.Context, thID string) error {
	rec, release, err := r.lock(thID)
	if err != nil {
		return err
	}

	if IssuerState(rec.State) != IssuerCredentialIssued {
		release()

		return fmt.Errorf("%w: revoke in state %s", ErrProtocolViolation, rec.State)
	}

	if !rec.Revocable || rec.RevocationIndex == "" {
		release()

		return fmt.Errorf("%w: credential on thread %s is not revocable", ErrProtocolViolation, thID)
	}

	if rec.Revoked() {
		release()

		return fmt.Errorf("thread %s: %w", thID, ErrAlreadyRevoked)
	}

	revokedAt, err := r.revReg.Revoke(ctx, rec.RevocationRegistryID, rec.RevocationIndex)
	if errors.Is(err, registry.ErrAlreadyRevoked) {
		revokedAt, err = r.revokedAt(ctx, rec)
	}

	if err != nil {
		release()

		return fmt.Errorf("update revocation registry: %w", err)
	}

	rec.RevokedAt = &revokedAt

	err = r.update(ctx, rec, nil)

	release()

	if err != nil {
		return err
	}

	logger.Infof("agent=%s thid=%s: credential %s/%s revoked",
		r.agent, thID, rec.RevocationRegistryID, rec.RevocationIndex)

	if r.notify {
		r.notifyHolder(ctx, rec)
	}

	return nil
}

// revokedAt reads the revocation time of an index revoked behind our back.
func (r *Revocation) revokedAt(ctx context.Context, rec *exchange.Record) (time.Time, error) {
	status, err := r.revReg.Status(ctx, rec.RevocationRegistryID, rec.RevocationIndex)
	if err != nil {
		return time.Time{}, err
	}

	if status.RevokedAt == nil {
		return time.Now().UTC(), nil
	}

	return *status.RevokedAt, nil
}

func (r *Revocation) notifyHolder(ctx context.Context, rec *exchange.Record) {
	err := r.send(ctx, &RevocationNotification{
		Type:     RevocationNotificationMsgType,
		ID:       uuid.New().String(),
		ThreadID: rec.ThreadID,
		Comment:  fmt.Sprintf("credential %s/%s was revoked", rec.RevocationRegistryID, rec.RevocationIndex),
	}, rec.MyDID, rec.TheirDID)
	if err != nil {
		logger.Warnf("agent=%s thid=%s: revocation notification not delivered: %s", r.agent, rec.ThreadID, err)
	}
}

// Status returns the revocation status of a credential index.
func (r *Revocation) Status(ctx context.Context, regID, index string) (*registry.RevocationStatus, error) {
	return r.revReg.Status(ctx, regID, index)
}
