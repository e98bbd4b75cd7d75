package desk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransportError means the call itself failed: network error, timeout, or a
// non-2xx status that is not a payload rejection.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: transport error: status=%d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError means the service desk rejected the payload.
type ValidationError struct {
	Op      string
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: rejected: status=%d: %s", e.Op, e.Status, e.Message)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Status
	}
	return 0
}

func isValidationStatus(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// classify turns a non-2xx response into a typed error.
func classify(op string, status int, body []byte) error {
	msg := errorMessage(body)
	if isValidationStatus(status) {
		return &ValidationError{Op: op, Status: status, Message: msg}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &TransportError{Op: op, Status: status, Err: errors.New(msg)}
}

// errorMessage extracts a human readable message from an error body. Both
// problem+json documents and plain {message} envelopes are understood.
func errorMessage(body []byte) string {
	var env struct {
		Message string              `json:"message"`
		Title   string              `json:"title"`
		Detail  string              `json:"detail"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		var parts []string
		for _, s := range []string{env.Message, env.Detail, env.Title} {
			if s != "" {
				parts = append(parts, s)
				break
			}
		}
		for field, msgs := range env.Errors {
			parts = append(parts, field+": "+strings.Join(msgs, ", "))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return strings.TrimSpace(string(body))
}
