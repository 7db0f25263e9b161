package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNilError(t *testing.T) {
	assert.Nil(t, Classify(nil, "openai"))
}

func TestClassifyPassesThroughFaults(t *testing.T) {
	fault := &Fault{Kind: KindBilling, Provider: "openai", Status: http.StatusPaymentRequired, Message: "no credit"}
	got := Classify(fmt.Errorf("stream failed: %w", fault), "anthropic")
	assert.Same(t, fault, got)
}

func TestClassifyRateLimitByStatus(t *testing.T) {
	err := WithStatus(errors.New("rate limit exceeded"), http.StatusTooManyRequests)
	fault := Classify(err, "A")
	require.NotNil(t, fault)
	assert.Equal(t, KindRateLimited, fault.Kind)
	assert.Equal(t, http.StatusTooManyRequests, fault.Status)
	assert.Contains(t, fault.Message, "A")
	assert.Contains(t, fault.Message, "rate limit")
}

func TestClassifyAuthBeatsRateLimit(t *testing.T) {
	// ambiguous upstream text mentioning both concerns resolves to the
	// higher-priority rule
	fault := Classify(errors.New("invalid key while checking quota"), "openai")
	require.NotNil(t, fault)
	assert.Equal(t, KindAuth, fault.Kind)
	assert.Equal(t, http.StatusUnauthorized, fault.Status)
}

func TestClassifyContextLength(t *testing.T) {
	fault := Classify(errors.New("maximum context length is 128000 tokens"), "openai")
	require.NotNil(t, fault)
	assert.Equal(t, KindRequestTooLarge, fault.Kind)
	assert.Equal(t, http.StatusBadRequest, fault.Status)
}

func TestClassifyBilling(t *testing.T) {
	fault := Classify(errors.New("your credit balance is too low"), "anthropic")
	require.NotNil(t, fault)
	assert.Equal(t, KindBilling, fault.Kind)
	assert.Equal(t, http.StatusPaymentRequired, fault.Status)
}

func TestClassifyModelNotFoundByStatus(t *testing.T) {
	fault := Classify(WithStatus(errors.New("the model `gpt-42` does not exist"), http.StatusNotFound), "openai")
	require.NotNil(t, fault)
	assert.Equal(t, KindModelNotFound, fault.Kind)
	assert.Equal(t, http.StatusNotFound, fault.Status)
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	fault := Classify(fmt.Errorf("request: %w", context.DeadlineExceeded), "gemini")
	require.NotNil(t, fault)
	assert.Equal(t, KindTimeout, fault.Kind)
	assert.Equal(t, http.StatusGatewayTimeout, fault.Status)
	assert.Contains(t, fault.Message, "gemini")
}

func TestClassifyContextCanceled(t *testing.T) {
	fault := Classify(fmt.Errorf("stream read: %w", context.Canceled), "openai")
	require.NotNil(t, fault)
	assert.Equal(t, KindTimeout, fault.Kind)
	assert.Equal(t, http.StatusGatewayTimeout, fault.Status)
	assert.Contains(t, fault.Message, "canceled")
}

func TestClassifyUnknownKeepsUpstreamStatus(t *testing.T) {
	fault := Classify(WithStatus(errors.New("teapot fell over"), http.StatusTeapot), "openai")
	require.NotNil(t, fault)
	assert.Equal(t, KindUnknown, fault.Kind)
	assert.Equal(t, http.StatusTeapot, fault.Status)
}

func TestClassifyUnknownDefaultsTo500(t *testing.T) {
	fault := Classify(errors.New("something inexplicable"), "openai")
	require.NotNil(t, fault)
	assert.Equal(t, KindUnknown, fault.Kind)
	assert.Equal(t, http.StatusInternalServerError, fault.Status)
}

func TestWithStatusZeroIsIdentity(t *testing.T) {
	err := errors.New("plain")
	assert.Same(t, err, WithStatus(err, 0))
	assert.NoError(t, WithStatus(nil, http.StatusBadRequest))
}

func TestCredentialErrorMessage(t *testing.T) {
	err := &CredentialError{Provider: "openai", EnvVar: "OPENAI_API_KEY"}
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
