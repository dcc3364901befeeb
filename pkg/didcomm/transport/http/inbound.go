/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/transport"
)

var logger = log.New("aries-framework/transport/http")

const maxPayloadSize = 1 << 20

// inboundHandler accepts envelopes POSTed by remote agents.
type inboundHandler struct {
	msgHandler service.InboundHandler
}

// NewInboundHandler returns the HTTP handler delivering the envelopes it receives to msgHandler.
//
// The message is handled before the response is written, so the sender observes
// the replies of the recipient once Send returns.
func NewInboundHandler(msgHandler service.InboundHandler) (http.Handler, error) {
	if msgHandler == nil {
		return nil, errors.New("failed to create inbound handler: message handler is nil")
	}

	return &inboundHandler{msgHandler: msgHandler}, nil
}

func (h *inboundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "HTTP Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != transport.MediaTypeV1PlaintextPayload {
		http.Error(w, fmt.Sprintf("Unsupported Content-type %q", ct), http.StatusUnsupportedMediaType)
		return
	}

	env, status, err := readEnvelope(r.Body)
	if err != nil {
		logger.Debugf("rejected inbound envelope from %s: %s", r.RemoteAddr, err)
		http.Error(w, err.Error(), status)

		return
	}

	if err := h.msgHandler.HandleInbound(r.Context(), env.Message, env.To, env.From); err != nil {
		logger.Warnf("%s -> %s: %s handled with error: %s", env.From, env.To, env.Message.Type(), err)
	}

	w.WriteHeader(http.StatusAccepted)
}

// readEnvelope returns the envelope of body, or the status rejecting it.
func readEnvelope(body io.Reader) (*transport.Envelope, int, error) {
	payload, err := io.ReadAll(io.LimitReader(body, maxPayloadSize+1))

	switch {
	case err != nil:
		return nil, http.StatusInternalServerError, errors.New("failed to read payload")
	case len(payload) == 0:
		return nil, http.StatusBadRequest, errors.New("empty payload")
	case len(payload) > maxPayloadSize:
		return nil, http.StatusRequestEntityTooLarge, errors.New("payload too large")
	}

	env := &transport.Envelope{}
	if err := json.Unmarshal(payload, env); err != nil || env.Message == nil {
		return nil, http.StatusBadRequest, errors.New("invalid envelope")
	}

	return env, 0, nil
}
