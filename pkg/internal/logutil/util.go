/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package logutil formats the log lines of controller commands.
package logutil

import (
	"strings"

	"github.com/hyperledger/aries-framework-go/component/log"
)

// Field is a key value pair attached to a log line. Fields with an empty value are omitted.
type Field struct {
	Key   string
	Value string
}

func (f Field) String() string {
	return f.Key + "=[" + f.Value + "]"
}

// Agent names the agent a command addressed.
func Agent(name string) Field {
	return Field{Key: "agent", Value: name}
}

// ThreadID names the exchange a command addressed.
func ThreadID(id string) Field {
	return Field{Key: "thread_id", Value: id}
}

// CommandLogger logs the actions of one controller command.
type CommandLogger struct {
	logger  *log.Log
	command string
}

// ForCommand returns a CommandLogger writing to logger.
func ForCommand(logger *log.Log, command string) *CommandLogger {
	return &CommandLogger{logger: logger, command: command}
}

// Error logs a failed action.
func (l *CommandLogger) Error(action, msg string, fields ...Field) {
	l.logger.Errorf("%s", l.line(action, "errMsg", msg, fields))
}

// Info logs an action rejected because of its arguments.
func (l *CommandLogger) Info(action, msg string, fields ...Field) {
	l.logger.Infof("%s", l.line(action, "msg", msg, fields))
}

// Debug logs the outcome of an action.
func (l *CommandLogger) Debug(action, msg string, fields ...Field) {
	l.logger.Debugf("%s", l.line(action, "msg", msg, fields))
}

func (l *CommandLogger) line(action, msgKey, msg string, fields []Field) string {
	var b strings.Builder

	b.WriteString(Field{Key: "command", Value: l.command}.String())
	b.WriteString(" ")
	b.WriteString(Field{Key: "action", Value: action}.String())

	for _, f := range fields {
		if f.Value == "" {
			continue
		}

		b.WriteString(" ")
		b.WriteString(f.String())
	}

	b.WriteString(" ")
	b.WriteString(Field{Key: msgKey, Value: msg}.String())

	return b.String()
}
