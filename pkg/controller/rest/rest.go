/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package rest serves controller commands over HTTP.
package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/command"
)

var logger = log.New("aries-framework/controller/rest")

const contentType = "application/json"

// Handler http handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

// Register routes every handler on router.
func Register(router *mux.Router, handlers ...Handler) {
	for _, h := range handlers {
		router.HandleFunc(h.Path(), h.Handle()).Methods(h.Method())
	}
}

// genericErrorBody is the body of failed requests.
// swagger:response genericError
type genericErrorBody struct {
	// in: body
	Code command.Code `json:"code"`
	// in: body
	Type string `json:"type,omitempty"`
	// in: body
	Message string `json:"message"`
}

var statusByType = map[command.Type]int{
	command.ValidationError: http.StatusBadRequest,
	command.NotFoundError:   http.StatusNotFound,
	command.ExecuteError:    http.StatusInternalServerError,
}

// Execute runs exec with the arguments read from req. The command result is only written
// once exec succeeded, so a failure never leaves a partial body behind.
func Execute(exec command.Exec, rw http.ResponseWriter, req io.Reader) {
	var b bytes.Buffer

	if err := exec(&b, req); err != nil {
		SendError(rw, err)

		return
	}

	rw.Header().Set("Content-Type", contentType)

	if _, err := rw.Write(b.Bytes()); err != nil {
		logger.Errorf("Unable to send response, %s", err)
	}
}

// SendError writes err with the status of its type, 500 when the type is unknown.
func SendError(rw http.ResponseWriter, err command.Error) {
	status, ok := statusByType[err.Type()]
	if !ok {
		status = http.StatusInternalServerError
	}

	writeError(rw, status, &genericErrorBody{Code: err.Code(), Type: err.Type().String(), Message: err.Error()})
}

// SendHTTPStatusError writes err with the given status and code.
func SendHTTPStatusError(rw http.ResponseWriter, httpStatus int, code command.Code, err error) {
	writeError(rw, httpStatus, &genericErrorBody{Code: code, Message: err.Error()})
}

func writeError(rw http.ResponseWriter, status int, body *genericErrorBody) {
	rw.Header().Set("Content-Type", contentType)
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(body); err != nil {
		logger.Errorf("Unable to send error response, %s", err)
	}
}
