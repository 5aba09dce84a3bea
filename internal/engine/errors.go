package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/remote"
)

// SyncError is a failed write or refresh.
//
// Every public engine operation reports failure through a SyncError inside
// its result value; nothing is thrown past the caller.
type SyncError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description. For ErrCodeRejected it is the
	// store's own message.
	Message string

	// Action is the write action, empty for refreshes.
	Action model.Action

	// RequestID correlates the failed write with its log lines.
	RequestID string

	Err error
}

// ErrorCode categorizes sync errors.
type ErrorCode string

const (
	// ErrCodeBusy indicates a write was attempted while another was in flight.
	ErrCodeBusy ErrorCode = "SYNC_BUSY"

	// ErrCodeTimeout indicates the remote call exceeded its deadline.
	ErrCodeTimeout ErrorCode = ErrorCode(remote.CodeTimeout)

	// ErrCodeTransport indicates a network failure or a non-2xx response.
	ErrCodeTransport ErrorCode = ErrorCode(remote.CodeTransport)

	// ErrCodeRejected indicates the store answered with an explicit error.
	ErrCodeRejected ErrorCode = ErrorCode(remote.CodeRejected)

	// ErrCodeMalformed indicates a 2xx response that could not be used.
	ErrCodeMalformed ErrorCode = ErrorCode(remote.CodeMalformed)

	// ErrCodeInvalidAction indicates an action outside the supported set.
	ErrCodeInvalidAction ErrorCode = "INVALID_ACTION"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	switch {
	case e.Action != "" && e.RequestID != "":
		return fmt.Sprintf("%s: %s (action=%s, request=%s)", e.Code, e.Message, e.Action, e.RequestID)
	case e.Action != "":
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.Action)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsBusy returns true if the write was rejected because another was in flight.
func IsBusy(err error) bool { return hasCode(err, ErrCodeBusy) }

// IsTimeout returns true if the remote call timed out.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsTransport returns true for network and HTTP status failures.
func IsTransport(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsRejected returns true if the store explicitly rejected the write.
func IsRejected(err error) bool { return hasCode(err, ErrCodeRejected) }

// IsMalformed returns true if the store's response could not be used.
func IsMalformed(err error) bool { return hasCode(err, ErrCodeMalformed) }

func newBusyError(action model.Action) *SyncError {
	return &SyncError{
		Code:    ErrCodeBusy,
		Message: "another write is in flight",
		Action:  action,
	}
}

func newMalformedError(action model.Action, requestID, message string, err error) *SyncError {
	return &SyncError{
		Code:      ErrCodeMalformed,
		Message:   message,
		Action:    action,
		RequestID: requestID,
		Err:       err,
	}
}

// fromRemote maps a remote failure onto a SyncError. Errors that are not
// *remote.Error count as transport failures.
func fromRemote(err error, action model.Action, requestID string) *SyncError {
	se := &SyncError{
		Code:      ErrCodeTransport,
		Message:   err.Error(),
		Action:    action,
		RequestID: requestID,
		Err:       err,
	}
	var re *remote.Error
	if errors.As(err, &re) {
		se.Code = ErrorCode(re.Code)
		se.Message = re.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		se.Code = ErrCodeTimeout
	}
	return se
}
