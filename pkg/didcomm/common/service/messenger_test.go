/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessengerFunc(t *testing.T) {
	msg, err := NewDIDCommMsgMap(struct {
		ID   string `json:"@id"`
		Type string `json:"@type"`
	}{ID: "id", Type: "type"})
	require.NoError(t, err)

	var called bool

	var m Messenger = MessengerFunc(func(_ context.Context, got DIDCommMsgMap, myDID, theirDID string) error {
		called = true

		require.Equal(t, "id", got.ID())
		require.Equal(t, "did:example:alice", myDID)
		require.Equal(t, "did:example:faber", theirDID)

		return errors.New("unreachable")
	})

	require.EqualError(t, m.Send(context.Background(), msg, "did:example:alice", "did:example:faber"), "unreachable")
	require.True(t, called)
}
