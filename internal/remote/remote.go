package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/emsync/internal/model"
)

// Remote is the authoritative store.
type Remote interface {
	// Fetch returns the full raw snapshot document.
	Fetch(ctx context.Context) (any, error)
	// Write transmits one action.
	Write(ctx context.Context, req WriteRequest) (WriteResponse, error)
}

// WriteRequest is one outgoing write.
type WriteRequest struct {
	Action  model.Action `json:"action"`
	Payload any          `json:"payload"`
	// RequestID correlates the write across logs. It is sent as a header,
	// never in the body.
	RequestID string `json:"-"`
}

// WriteResponse is a successful write outcome.
type WriteResponse struct {
	// Data is the canonical record returned for the write, nil when the
	// store returned none.
	Data map[string]any
	// Message is an optional informational message from the store.
	Message string
}

// ErrOffline is returned by Fetch when no store is configured. It is not a
// failure: the local snapshot simply stays as it is.
var ErrOffline = errors.New("remote store not configured")

// ErrorCode categorizes remote failures.
type ErrorCode string

const (
	// CodeTimeout indicates the call exceeded its deadline.
	CodeTimeout ErrorCode = "TRANSPORT_TIMEOUT"

	// CodeTransport indicates a network failure or a non-2xx status.
	CodeTransport ErrorCode = "TRANSPORT_ERROR"

	// CodeRejected indicates the store answered {status: "error"}.
	CodeRejected ErrorCode = "SERVER_REJECTED"

	// CodeMalformed indicates a 2xx response whose body could not be used.
	CodeMalformed ErrorCode = "MALFORMED_RESPONSE"
)

// Error is a failed remote call.
type Error struct {
	Code ErrorCode

	// Op is "fetch" or "write".
	Op string

	// Message is a human-readable description. For CodeRejected it is the
	// store's own message.
	Message string

	// Status is the HTTP status code, when there was one.
	Status int

	Err error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s: %s (status %d)", e.Code, e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code of a remote error, or "" if err is not one.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// envelope is the write response document.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ParseWriteResponse interprets a 2xx write response body.
func ParseWriteResponse(body []byte) (WriteResponse, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return WriteResponse{}, &Error{
			Code:    CodeMalformed,
			Op:      "write",
			Message: fmt.Sprintf("response is not a JSON object: %s", snippet(body)),
			Err:     err,
		}
	}

	if env.Status == "error" {
		msg := env.Message
		if msg == "" {
			msg = "store reported an error"
		}
		return WriteResponse{}, &Error{Code: CodeRejected, Op: "write", Message: msg}
	}

	resp := WriteResponse{Message: env.Message}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return resp, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&resp.Data); err != nil {
		return WriteResponse{}, &Error{
			Code:    CodeMalformed,
			Op:      "write",
			Message: "data is not a JSON object",
			Err:     err,
		}
	}
	return resp, nil
}

// toObject converts a payload into a decoded JSON object.
func toObject(payload any) (map[string]any, error) {
	if m, ok := payload.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return m, nil
}

func snippet(b []byte) string {
	const limit = 120
	s := string(bytes.TrimSpace(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
