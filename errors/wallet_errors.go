package errors

import (
	stderrors "errors"

	"github.com/mezonai/simplewallet/jsonx"
)

// WalletErrorCode classifies failures across the client and the processor
type WalletErrorCode string

const (
	// Rejected requests, never mutate state
	ErrCodeMalformedRequest  WalletErrorCode = "malformed_request"
	ErrCodeInsufficientFunds WalletErrorCode = "insufficient_funds"

	// Client-side build failures
	ErrCodeCredential WalletErrorCode = "credential_error"
	ErrCodeNotFound   WalletErrorCode = "not_found"

	// Ledger endpoint failures, the only retryable class
	ErrCodeTransport WalletErrorCode = "transport_error"

	// State store failed to persist an accepted write
	ErrCodeInternal WalletErrorCode = "internal_error"
)

// Error message constants
const (
	ErrMsgMalformedPayload   = "Payload is malformed"
	ErrMsgUnknownAction      = "Action is not supported"
	ErrMsgInvalidAmount      = "Amount must be an integer greater than or equal to 1"
	ErrMsgInvalidCounterpart = "Transfer counterparty is missing or invalid"
	ErrMsgInsufficientFunds  = "Not enough balance in your wallet"
	ErrMsgKeyNotFound        = "Key material could not be found"
	ErrMsgStateNotPersisted  = "State store did not persist the update"
)

// WalletError is the error type returned by every package of the wallet
type WalletError struct {
	Code    WalletErrorCode `json:"code"`
	Message string          `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *WalletError) Error() string {
	out := WalletError{Code: e.Code, Message: e.Message}
	if e.cause != nil {
		out.Message = e.Message + ": " + e.cause.Error()
	}
	s, _ := jsonx.MarshalToString(out)
	return s
}

// Reason is the human readable part, without the JSON envelope
func (e *WalletError) Reason() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *WalletError) Unwrap() error {
	return e.cause
}

// NewError creates a new WalletError and returns it as error interface
func NewError(code WalletErrorCode, message string) error {
	return &WalletError{
		Code:    code,
		Message: message,
	}
}

// Wrap attaches a code and message to an underlying error
func Wrap(code WalletErrorCode, message string, err error) error {
	return &WalletError{
		Code:    code,
		Message: message,
		cause:   err,
	}
}

// CodeOf returns the code of the outermost WalletError in the chain, or "" if none
func CodeOf(err error) WalletErrorCode {
	var we *WalletError
	if stderrors.As(err, &we) {
		return we.Code
	}
	return ""
}

func HasCode(err error, code WalletErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether the caller may retry the same request
func IsRetryable(err error) bool {
	return HasCode(err, ErrCodeTransport)
}

// IsRejection reports whether err means the ledger should mark the transaction invalid
func IsRejection(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeMalformedRequest || code == ErrCodeInsufficientFunds
}

// ReasonOf returns a human readable reason for any error
func ReasonOf(err error) string {
	var we *WalletError
	if stderrors.As(err, &we) {
		return we.Reason()
	}
	return err.Error()
}
