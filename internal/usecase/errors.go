package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidModel    ErrorCode = "INVALID_MODEL"
	ErrorInvalidMessages ErrorCode = "INVALID_MESSAGES"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

const (
	MessageInvalidModel    = "Invalid model specified"
	MessageInvalidMessages = "Invalid messages format"
	MessageGeminiError     = "Gemini API error"
	MessageDeepseekError   = "Deepseek API error"
	MessageFallback        = "Failed to process request"
)

// Error is the only error type Dispatch returns. Message is safe to show to
// the caller; Details carries upstream body text or the full error chain.
type Error struct {
	Code           ErrorCode
	Reason         string
	Message        string
	UpstreamStatus int
	Details        string
	Err            error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

type upstreamStatusError interface {
	HTTPStatusCode() int
	UpstreamBody() string
}

// providerError classifies a client failure: non-2xx responses become
// ErrorUpstream with the provider's status and body, anything else is internal.
func providerError(provider, label string, err error) *Error {
	var statusErr upstreamStatusError
	if errors.As(err, &statusErr) {
		status := statusErr.HTTPStatusCode()
		if status < 100 || status > 599 {
			status = http.StatusBadGateway
		}
		return &Error{
			Code:           ErrorUpstream,
			Reason:         provider + "_error",
			Message:        label,
			UpstreamStatus: status,
			Details:        statusErr.UpstreamBody(),
			Err:            err,
		}
	}
	return internalError(provider+"_request_failed", err)
}

func internalError(reason string, err error) *Error {
	e := &Error{Code: ErrorInternal, Reason: reason, Message: MessageFallback, Err: err}
	if err != nil {
		if msg := rootMessage(err); msg != "" {
			e.Message = msg
		}
		e.Details = err.Error()
	}
	return e
}

// rootMessage returns the innermost error's text.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
