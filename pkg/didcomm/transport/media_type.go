/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

// MediaTypeV1PlaintextPayload is the media type for plaintext protocol envelopes as per Aries RFC 0044.
const MediaTypeV1PlaintextPayload = "application/json;flavor=didcomm-msg"
