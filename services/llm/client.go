package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// CompletionClient defines the interface for any chat-completion backend.
type CompletionClient interface {
	// Complete sends a system instruction and a user payload to the
	// model and returns the assistant's reply text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// ConfigurationError reports an unusable client configuration: a missing
// base URL, model name, or API key, or an unresolved key placeholder.
// Configuration is validated on every call so a misconfigured deployment
// fails loudly instead of sending doomed requests.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("llm configuration error: %s", e.Reason)
}

// GenerationError reports a failed completion attempt: transport
// failures, non-200 statuses, undecodable bodies, or responses that do
// not carry a usable assistant message.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm generation error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("llm generation error: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsGenerationError reports whether err is a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// NewHTTPClient returns the http.Client used for completion calls.
// Construct it once at startup and share it across requests so the
// connection pool is actually reused.
//
// Timeouts: 10s to connect, 30s for the upstream to start responding,
// 45s for the whole call. Generations are slow but a hung upstream must
// not pin a request forever.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 45 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			MaxIdleConnsPerHost:   8,
		},
	}
}
