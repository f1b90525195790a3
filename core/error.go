package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrBusy             = errors.New("operation already in progress")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
)

type ErrorKind uint8

const (
	_ ErrorKind = iota
	ErrorKindAuth
	ErrorKindValidation
	ErrorKindOperation
	ErrorKindFetch
	ErrorKindBusy
	ErrorKindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindAuth:
		return "AuthError"
	case ErrorKindValidation:
		return "ValidationError"
	case ErrorKindOperation:
		return "OperationError"
	case ErrorKindFetch:
		return "FetchError"
	case ErrorKindBusy:
		return "BusyError"
	case ErrorKindTimeout:
		return "TimeoutError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

func (k ErrorKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Error is the coordinator level error surfaced to the view as lastError.
type Error struct {
	Kind ErrorKind `json:"kind"`
	Op   string    `json:"op"`
	Err  error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) MarshalJSON() ([]byte, error) {
	type view struct {
		Kind    ErrorKind `json:"kind"`
		Op      string    `json:"op"`
		Message string    `json:"message"`
	}

	return json.Marshal(view{Kind: e.Kind, Op: e.Op, Message: e.Error()})
}

func IsErrorKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// RemoteError is returned by the wallet client when the remote service rejects a call.
type RemoteError struct {
	Method string
	Code   string
	Msg    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %s: %s", e.Method, e.Code, e.Msg)
}
