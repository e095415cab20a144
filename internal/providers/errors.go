package providers

import (
	"errors"
	"fmt"
	"strings"
)

// FailoverEligibility is the exact three-way classification spec.md §4.J
// requires for an error carrying an HTTP status code.
type FailoverEligibility string

const (
	// Eligible means the chain should try the next provider: network
	// errors (status 0), 400, 408, 429, and any 5xx.
	Eligible FailoverEligibility = "eligible"

	// HardStop means the chain must abort immediately and raise a
	// terminal error: 401, 403.
	HardStop FailoverEligibility = "hard_stop"

	// NotEligible means the chain aborts without trying further
	// providers, but the error isn't a hard-stop auth failure.
	NotEligible FailoverEligibility = "not_eligible"
)

// ClassifyStatusCode implements spec.md §4.J step c's exact status-bucket
// table.
func ClassifyStatusCode(status int) FailoverEligibility {
	switch {
	case status == 0:
		return Eligible
	case status == 400 || status == 408 || status == 429:
		return Eligible
	case status >= 500 && status <= 599:
		return Eligible
	case status == 401 || status == 403:
		return HardStop
	default:
		return NotEligible
	}
}

// ProviderError is the closed error type every adapter wraps transport
// failures in, carrying the HTTP status field the chain classifies on
// instead of string-matching error messages.
type ProviderError struct {
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *ProviderError) Error() string {
	var parts []string
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Eligibility classifies this error per spec.md §4.J.
func (e *ProviderError) Eligibility() FailoverEligibility {
	return ClassifyStatusCode(e.Status)
}

// NewProviderError wraps cause with provider/model context. Status defaults
// to 0 (network-error bucket, failover-eligible) until WithStatus narrows
// it.
func NewProviderError(provider, model string, cause error) *ProviderError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &ProviderError{Provider: provider, Model: model, Cause: cause, Message: msg}
}

func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	return e
}

func (e *ProviderError) WithCode(code string) *ProviderError {
	e.Code = code
	return e
}

func (e *ProviderError) WithRequestID(id string) *ProviderError {
	e.RequestID = id
	return e
}

func (e *ProviderError) WithMessage(msg string) *ProviderError {
	e.Message = msg
	return e
}

// AsProviderError extracts a *ProviderError from err, if any wraps one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
