package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable class of a core failure
type ErrorKind string

const (
	KindSyntax         ErrorKind = "SYNTAX"
	KindStructure      ErrorKind = "STRUCTURE"
	KindPayloadDecode  ErrorKind = "PAYLOAD_DECODE"
	KindStatusNotFound ErrorKind = "STATUS_NOT_FOUND"
	KindInvalidKey     ErrorKind = "INVALID_KEY"
	KindRejected       ErrorKind = "REJECTED"
)

// SyntaxError means the input bytes are not well-formed markup
type SyntaxError struct {
	Message string
	Cause   error
}

func (e *SyntaxError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", KindSyntax, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", KindSyntax, e.Message)
}

func (e *SyntaxError) Unwrap() error {
	return e.Cause
}

// Kind returns the error class
func (e *SyntaxError) Kind() ErrorKind { return KindSyntax }

// NewSyntaxError creates a new syntax error
func NewSyntaxError(message string, cause error) *SyntaxError {
	return &SyntaxError{Message: message, Cause: cause}
}

// StructureError means the markup is well-formed but a required node is absent
type StructureError struct {
	Element string
	Message string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", KindStructure, e.Element, e.Message)
}

// Kind returns the error class
func (e *StructureError) Kind() ErrorKind { return KindStructure }

// NewStructureError creates a new structure error
func NewStructureError(element, message string) *StructureError {
	return &StructureError{Element: element, Message: message}
}

// PayloadDecodeError means the base64 stage of a distribution payload failed
type PayloadDecodeError struct {
	Message string
	Cause   error
}

func (e *PayloadDecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", KindPayloadDecode, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", KindPayloadDecode, e.Message)
}

func (e *PayloadDecodeError) Unwrap() error {
	return e.Cause
}

// Kind returns the error class
func (e *PayloadDecodeError) Kind() ErrorKind { return KindPayloadDecode }

// NewPayloadDecodeError creates a new payload decode error
func NewPayloadDecodeError(message string, cause error) *PayloadDecodeError {
	return &PayloadDecodeError{Message: message, Cause: cause}
}

// StatusNotFoundError means no status code could be recovered from a response
type StatusNotFoundError struct {
	Message string
}

func (e *StatusNotFoundError) Error() string {
	return fmt.Sprintf("[%s] %s", KindStatusNotFound, e.Message)
}

// Kind returns the error class
func (e *StatusNotFoundError) Kind() ErrorKind { return KindStatusNotFound }

// NewStatusNotFoundError creates a new status-not-found error
func NewStatusNotFoundError(message string) *StatusNotFoundError {
	return &StatusNotFoundError{Message: message}
}

// InvalidKeyError reports an access key that cannot be used for a lookup
type InvalidKeyError struct {
	Digits  int
	Message string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("[%s] %s (%d digits)", KindInvalidKey, e.Message, e.Digits)
}

// Kind returns the error class
func (e *InvalidKeyError) Kind() ErrorKind { return KindInvalidKey }

// NewInvalidKeyError creates a new invalid key error
func NewInvalidKeyError(digits int, message string) *InvalidKeyError {
	return &InvalidKeyError{Digits: digits, Message: message}
}

// RejectedError carries a non-success authority outcome upward
type RejectedError struct {
	Operation string
	Status    AuthorityStatus
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("[%s] %s: status %s: %s", KindRejected, e.Operation, e.Status.Code, e.Status.Reason)
}

// Kind returns the error class
func (e *RejectedError) Kind() ErrorKind { return KindRejected }

// NewRejectedError creates a new rejected error
func NewRejectedError(operation string, status AuthorityStatus) *RejectedError {
	return &RejectedError{Operation: operation, Status: status}
}

// KindOf returns the kind of a core error anywhere in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var k interface{ Kind() ErrorKind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}
