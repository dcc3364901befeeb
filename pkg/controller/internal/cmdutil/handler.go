/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cmdutil builds the handlers controllers expose.
package cmdutil

import (
	"net/http"

	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/command"
)

// route is what every handler is keyed on: a REST path or command name, plus its method.
type route struct {
	key    string
	method string
}

func (r route) Method() string {
	return r.method
}

// HTTPHandler serves one REST endpoint.
type HTTPHandler struct {
	route
	handle http.HandlerFunc
}

// NewHTTPHandler returns the handler serving method requests on path.
func NewHTTPHandler(path, method string, handle http.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{route: route{key: path, method: method}, handle: handle}
}

// Path returns the route template of the endpoint.
func (h *HTTPHandler) Path() string {
	return h.key
}

// Handle returns the endpoint implementation.
func (h *HTTPHandler) Handle() http.HandlerFunc {
	return h.handle
}

// CommandHandler exposes one method of a controller command.
type CommandHandler struct {
	route
	exec command.Exec
}

// NewCommandHandler returns the handler running exec for method of the named command.
func NewCommandHandler(name, method string, exec command.Exec) *CommandHandler {
	return &CommandHandler{route: route{key: name, method: method}, exec: exec}
}

// Name of the command.
func (c *CommandHandler) Name() string {
	return c.key
}

// Handle returns the command implementation.
func (c *CommandHandler) Handle() command.Exec {
	return c.exec
}

// CommandHandlers returns the handlers of the methods of one command, in the order given.
func CommandHandlers(name string, methods ...Method) []command.Handler {
	handlers := make([]command.Handler, len(methods))

	for i, m := range methods {
		handlers[i] = NewCommandHandler(name, m.Name, m.Exec)
	}

	return handlers
}

// Method pairs a command method name with its implementation.
type Method struct {
	Name string
	Exec command.Exec
}
