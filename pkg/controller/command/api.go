/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import (
	"io"
)

// Exec runs a command: it reads the JSON arguments from req and writes the JSON result to rw.
type Exec func(rw io.Writer, req io.Reader) Error

// Handler exposes one method of a controller command.
type Handler interface {
	Name() string
	Method() string
	Handle() Exec
}

// Notifier delivers the events of the agents to subscribers.
type Notifier interface {
	Notify(topic string, message []byte) error
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(topic string, message []byte) error

// Notify calls f.
func (f NotifierFunc) Notify(topic string, message []byte) error {
	return f(topic, message)
}
