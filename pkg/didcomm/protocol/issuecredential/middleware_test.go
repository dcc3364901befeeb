/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	mockservice "github.com/hyperledger/aries-issuecredential-go/pkg/internal/gomocks/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

func TestMiddleware(t *testing.T) {
	ctx := context.Background()

	t.Run("Sees the transition", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		var seen []string

		mw := func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, md MetaData) error {
				require.Equal(t, "faber", md.Agent())
				require.Equal(t, md.StateName(), md.Record().State)

				seen = append(seen, md.PreviousStateName()+" -> "+md.StateName())

				return next.Handle(ctx, md)
			})
		}

		messenger := mockservice.NewMockMessenger(ctrl)
		faber, thID := offeredIssuer(t, messenger, WithMiddleware(mw))

		// gomock matches in order; must follow the offer's expectation.
		messenger.EXPECT().Send(gomock.Any(), gomock.Any(), issuerDID, holderDID).Return(nil).AnyTimes()

		require.NoError(t, faber.issuer.DeleteOffer(ctx, thID))
		require.Equal(t, []string{"start -> offer-sent", "offer-sent -> deleted"}, seen)
	})

	t.Run("Rejected transition is not committed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		errVeto := errors.New("veto")

		mw := func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, md MetaData) error {
				if md.StateName() == string(IssuerDeleted) {
					return errVeto
				}

				return next.Handle(ctx, md)
			})
		}

		faber, thID := offeredIssuer(t, mockservice.NewMockMessenger(ctrl), WithMiddleware(mw))

		require.True(t, errors.Is(faber.issuer.DeleteOffer(ctx, thID), errVeto))

		rec := faber.record(t, thID)
		require.Equal(t, string(IssuerOfferSent), rec.State)
		require.False(t, rec.Terminal)
		require.Equal(t, []string{string(IssuerOfferSent)}, faber.states(thID))
	})

	t.Run("One writer per thread", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		started := make(chan struct{})
		proceed := make(chan struct{})

		mw := func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, md MetaData) error {
				if md.StateName() == string(IssuerDeleted) {
					close(started)
					<-proceed
				}

				return next.Handle(ctx, md)
			})
		}

		messenger := mockservice.NewMockMessenger(ctrl)
		faber, thID := offeredIssuer(t, messenger, WithMiddleware(mw))

		// gomock matches in order; must follow the offer's expectation.
		messenger.EXPECT().Send(gomock.Any(), gomock.Any(), issuerDID, holderDID).Return(nil).AnyTimes()

		done := make(chan error)

		go func() {
			done <- faber.issuer.DeleteOffer(ctx, thID)
		}()

		<-started

		require.True(t, errors.Is(faber.issuer.DeleteOffer(ctx, thID), ErrConcurrentModification))
		require.True(t, errors.Is(faber.issuer.Revoke(ctx, thID), exchange.ErrConcurrentModification))

		close(proceed)

		require.NoError(t, <-done)
		require.Equal(t, string(IssuerDeleted), faber.record(t, thID).State)
	})
}
