/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package decorator

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const credential = `{"schema_id":"driverslicense:1.0","values":{"family_name":"Doe"}}`

func TestAttachmentData_Fetch(t *testing.T) {
	var inline map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(credential), &inline))

	tests := []struct {
		name   string
		data   AttachmentData
		want   string
		errMsg string
	}{
		{name: "inline json", data: AttachmentData{JSON: inline}, want: credential},
		{
			name: "base64",
			data: AttachmentData{Base64: base64.StdEncoding.EncodeToString([]byte(credential))},
			want: credential,
		},
		{
			name: "inline json preferred",
			data: AttachmentData{JSON: inline, Base64: "not base64"},
			want: credential,
		},
		{name: "json not marshalable", data: AttachmentData{JSON: make(chan int)}, errMsg: "marshal json contents"},
		{name: "invalid base64", data: AttachmentData{Base64: "not base64"}, errMsg: "decode base64 contents"},
		{name: "empty", errMsg: "no contents"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bits, err := tc.data.Fetch()
			if tc.errMsg != "" {
				require.ErrorContains(t, err, tc.errMsg)
				return
			}

			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(bits))
		})
	}
}

func TestAttachment_JSON(t *testing.T) {
	a := Attachment{
		ID:       "libindy-cred-offer-0",
		MimeType: "application/json",
		Data:     AttachmentData{Base64: base64.StdEncoding.EncodeToString([]byte(credential))},
	}

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"mime-type":"application/json"`)
	require.NotContains(t, string(raw), `"json"`)

	var got Attachment
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, a, got)
}

func TestThread_JSON(t *testing.T) {
	raw, err := json.Marshal(&Thread{ID: "th-1"})
	require.NoError(t, err)
	require.JSONEq(t, `{"thid":"th-1"}`, string(raw))

	raw, err = json.Marshal(&Thread{ID: "th-1", PID: "proposal-th"})
	require.NoError(t, err)

	var got Thread
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, Thread{ID: "th-1", PID: "proposal-th"}, got)
}
