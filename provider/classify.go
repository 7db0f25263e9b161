package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the closed taxonomy of upstream faults.
type Kind string

const (
	KindAuth            Kind = "auth_error"
	KindRateLimited     Kind = "rate_limited"
	KindModelNotFound   Kind = "model_not_found"
	KindRequestTooLarge Kind = "request_too_large"
	KindBilling         Kind = "billing_error"
	KindTimeout         Kind = "timeout"
	KindTransport       Kind = "transport_error"
	KindMalformedStream Kind = "malformed_stream"
	KindUnknown         Kind = "unknown"
)

// Fault is a classified upstream failure: taxonomy kind, HTTP status to
// surface, and a provider-attributed human-readable message. The message
// never includes credentials; it is built from the upstream error text.
type Fault struct {
	Kind     Kind   `json:"kind"`
	Provider string `json:"provider"`
	Status   int    `json:"status"`
	Message  string `json:"message"`
}

func (f *Fault) Error() string {
	return f.Message
}

// CredentialError reports a provider credential that was never
// configured. This is a deployment problem, not an upstream fault, so it
// bypasses classification and surfaces as a 500 at the API boundary.
type CredentialError struct {
	Provider string
	EnvVar   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s is not configured: set %s", e.Provider, e.EnvVar)
}

type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// WithStatus attaches an HTTP status recovered from an SDK error type so
// Classify can match on it. A zero status returns err unchanged.
func WithStatus(err error, status int) error {
	if err == nil || status == 0 {
		return err
	}
	return &statusError{status: status, err: err}
}

// Each rule is tried in order against the fault's message and status;
// the first match wins. The ordering is deliberate: upstream messages
// routinely match several patterns ("rate limit exceeded for api key"
// mentions both quota and key), and the earlier rule decides.
var classifyRules = []struct {
	kind    Kind
	status  int
	match   int
	phrases []string
}{
	{KindAuth, http.StatusUnauthorized, http.StatusUnauthorized, []string{
		"api key", "api-key", "unauthorized", "authentication", "invalid key", "permission denied",
	}},
	{KindRateLimited, http.StatusTooManyRequests, http.StatusTooManyRequests, []string{
		"rate limit", "quota", "too many requests", "resource exhausted", "overloaded",
	}},
	{KindModelNotFound, http.StatusNotFound, http.StatusNotFound, []string{
		"not found", "does not exist", "unknown model", "no such model",
	}},
	{KindRequestTooLarge, http.StatusBadRequest, 0, []string{
		"context length", "context window", "maximum context", "too long", "token limit", "request too large",
	}},
	{KindBilling, http.StatusPaymentRequired, http.StatusPaymentRequired, []string{
		"billing", "payment", "insufficient credit", "credit balance", "insufficient funds",
	}},
	{KindTimeout, http.StatusGatewayTimeout, http.StatusGatewayTimeout, []string{
		"timeout", "timed out", "deadline exceeded", "connection reset", "connection refused",
	}},
}

// Classify maps an arbitrary provider error onto the fault taxonomy.
// Already-classified faults pass through unchanged. Statuses attached
// with WithStatus participate in matching alongside message phrases.
func Classify(err error, providerName string) *Fault {
	if err == nil {
		return nil
	}

	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}

	status := 0
	var se *statusError
	if errors.As(err, &se) {
		status = se.status
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Fault{
			Kind:     KindTimeout,
			Provider: providerName,
			Status:   http.StatusGatewayTimeout,
			Message:  fmt.Sprintf("%s: request timed out: %s", providerName, err.Error()),
		}
	}

	// A deliberate cancellation is the caller giving up on the wait, so
	// it lands on the timeout kind instead of falling through to unknown.
	if errors.Is(err, context.Canceled) {
		return &Fault{
			Kind:     KindTimeout,
			Provider: providerName,
			Status:   http.StatusGatewayTimeout,
			Message:  fmt.Sprintf("%s: request canceled before completion", providerName),
		}
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		matched := rule.match != 0 && rule.match == status
		if !matched {
			for _, phrase := range rule.phrases {
				if strings.Contains(msg, phrase) {
					matched = true
					break
				}
			}
		}
		if matched {
			return &Fault{
				Kind:     rule.kind,
				Provider: providerName,
				Status:   rule.status,
				Message:  fmt.Sprintf("%s: %s", providerName, err.Error()),
			}
		}
	}

	unknownStatus := http.StatusInternalServerError
	if status >= 400 {
		unknownStatus = status
	}
	return &Fault{
		Kind:     KindUnknown,
		Provider: providerName,
		Status:   unknownStatus,
		Message:  fmt.Sprintf("%s: %s", providerName, err.Error()),
	}
}
