/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	jsonID             = "@id"
	jsonType           = "@type"
	jsonThread         = "~thread"
	jsonThreadID       = "thid"
	jsonParentThreadID = "pthid"
	jsonMetadata       = "_internal_metadata"
	jsonTagName        = "json"
)

// ErrThreadIDNotFound occurs when a message does not carry a thread ID.
var ErrThreadIDNotFound = errors.New("threadID not found")

// DIDCommMsgMap is the generic representation of a protocol message on the wire.
type DIDCommMsgMap map[string]interface{}

// NewDIDCommMsgMap converts a structure into a DIDCommMsgMap.
func NewDIDCommMsgMap(v interface{}) (DIDCommMsgMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return ParseDIDCommMsgMap(raw)
}

// ParseDIDCommMsgMap returns a DIDCommMsgMap from the raw JSON payload.
func ParseDIDCommMsgMap(payload []byte) (DIDCommMsgMap, error) {
	var msg DIDCommMsgMap

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("invalid payload data format: %w", err)
	}

	return msg, nil
}

// ID returns the message ID.
func (m DIDCommMsgMap) ID() string {
	if m == nil {
		return ""
	}

	res, _ := m[jsonID].(string) // nolint: errcheck

	return res
}

// SetID sets the message ID.
func (m DIDCommMsgMap) SetID(id string) {
	if m == nil {
		return
	}

	m[jsonID] = id
}

// Type returns the message type.
func (m DIDCommMsgMap) Type() string {
	if m == nil {
		return ""
	}

	res, _ := m[jsonType].(string) // nolint: errcheck

	return res
}

// ThreadID returns the message's thread ID.
func (m DIDCommMsgMap) ThreadID() (string, error) {
	if m == nil {
		return "", ErrThreadIDNotFound
	}

	if thread, ok := m[jsonThread].(map[string]interface{}); ok {
		if thID, ok := thread[jsonThreadID].(string); ok && thID != "" {
			return thID, nil
		}
	}

	return "", ErrThreadIDNotFound
}

// ParentThreadID returns the message's parent thread ID.
func (m DIDCommMsgMap) ParentThreadID() string {
	if m == nil {
		return ""
	}

	thread, ok := m[jsonThread].(map[string]interface{})
	if !ok {
		return ""
	}

	res, _ := thread[jsonParentThreadID].(string) // nolint: errcheck

	return res
}

// Metadata returns the internal metadata attached to the message.
func (m DIDCommMsgMap) Metadata() map[string]interface{} {
	if m[jsonMetadata] == nil {
		return map[string]interface{}{}
	}

	res, ok := m[jsonMetadata].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}

	return res
}

// Clone returns a shallow copy of the message.
func (m DIDCommMsgMap) Clone() DIDCommMsgMap {
	if m == nil {
		return nil
	}

	msg := DIDCommMsgMap{}
	for k, v := range m {
		msg[k] = v
	}

	return msg
}

// Decode converts the message into the given structure.
func (m DIDCommMsgMap) Decode(v interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(rfc3339Time(), base64Bytes()),
		WeaklyTypedInput: true,
		Result:           v,
		TagName:          jsonTagName,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(m)
}

// MarshalJSON excludes the internal metadata from the wire representation.
func (m DIDCommMsgMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}

	wire := make(map[string]interface{}, len(m))

	for k, v := range m {
		if k == jsonMetadata {
			continue
		}

		wire[k] = v
	}

	return json.Marshal(wire)
}

func rfc3339Time() mapstructure.DecodeHookFuncType {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Time{}) {
			return data, nil
		}

		return time.Parse(time.RFC3339Nano, data.(string))
	}
}

func base64Bytes() mapstructure.DecodeHookFuncType {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf([]byte(nil)) {
			return data, nil
		}

		return base64.StdEncoding.DecodeString(data.(string))
	}
}
