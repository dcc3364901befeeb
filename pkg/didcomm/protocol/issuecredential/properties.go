/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"time"

	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

const (
	myDIDPropKey     = "myDID"
	theirDIDPropKey  = "theirDID"
	credDefPropKey   = "credDefID"
	formatPropKey    = "format"
	revokedPropKey   = "revokedAt"
	ackedPropKey     = "acked"
	notifiedPropKey  = "revocationNotification"
	msgTypePropKey   = "msgType"
	errorCodePropKey = "errorCode"
)

type eventProps struct {
	properties map[string]interface{}
}

func newEventProps(rec *exchange.Record) *eventProps {
	props := &eventProps{properties: map[string]interface{}{}}

	props.set(myDIDPropKey, rec.MyDID)
	props.set(theirDIDPropKey, rec.TheirDID)
	props.set(credDefPropKey, rec.CredentialDefinitionID)
	props.set(formatPropKey, string(rec.Format))
	props.set(errorCodePropKey, reasonCode(rec.ErrorReason))

	if rec.RevokedAt != nil {
		props.properties[revokedPropKey] = rec.RevokedAt.Format(time.RFC3339Nano)
	}

	if rec.Acked {
		props.properties[ackedPropKey] = true
	}

	return props
}

func (e *eventProps) set(key, value string) *eventProps {
	if value != "" {
		e.properties[key] = value
	}

	return e
}

// All returns the event properties.
func (e *eventProps) All() map[string]interface{} {
	return e.properties
}
