/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

// Type classifies a command error by who is at fault.
type Type int32

const (
	// ValidationError is for arguments the caller got wrong.
	ValidationError Type = iota
	// ExecuteError is for commands that failed while running.
	ExecuteError
	// NotFoundError is for commands addressing an unknown agent or exchange.
	NotFoundError
)

var typeNames = map[Type]string{
	ValidationError: "validation",
	ExecuteError:    "execute",
	NotFoundError:   "not_found",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return "unknown"
}

// Code is the error code of command errors.
type Code int32

// UnknownStatus is the code of errors raised outside of any command.
const UnknownStatus Code = 0

// Group is a range of error codes owned by one command.
// Each group starts at a multiple of 1000.
type Group int32

const (
	// Common error group for general command errors.
	Common Group = 1000
	// IssueCredential error group for issue credential command errors.
	IssueCredential Group = 8000
	// NotifierGroup error group for event notifier errors.
	NotifierGroup Group = 9000
)

// Error is a command failure carrying its code and type.
type Error interface {
	error
	Code() Code
	Type() Type
}

// NewValidationError returns new command validation error.
func NewValidationError(code Code, err error) Error {
	return &commandError{cause: err, code: code, errType: ValidationError}
}

// NewExecuteError returns new command execute error.
func NewExecuteError(code Code, err error) Error {
	return &commandError{cause: err, code: code, errType: ExecuteError}
}

// NewNotFoundError returns new command error for an unknown resource.
func NewNotFoundError(code Code, err error) Error {
	return &commandError{cause: err, code: code, errType: NotFoundError}
}

type commandError struct {
	cause   error
	code    Code
	errType Type
}

func (e *commandError) Error() string {
	return e.cause.Error()
}

func (e *commandError) Unwrap() error {
	return e.cause
}

func (e *commandError) Code() Code {
	return e.code
}

func (e *commandError) Type() Type {
	return e.errType
}
