package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("csagent.llm.chatcompletion")

// snippetLimit caps how much of an upstream body is quoted in errors.
const snippetLimit = 800

// Config holds the settings for a ChatCompletionClient.
type Config struct {
	// BaseURL is the API root, e.g. "https://dashscope.aliyuncs.com/compatible-mode/v1".
	// A trailing slash is tolerated.
	BaseURL string

	// APIKey is the bearer token. A value still containing "${" is an
	// unresolved deployment placeholder and is rejected.
	APIKey string

	// Model is the model name sent with every request.
	Model string

	// Temperature is the sampling temperature.
	Temperature float64
}

// ChatCompletionClient implements CompletionClient against an
// OpenAI-compatible /chat/completions endpoint.
//
// The response contract is strict: only HTTP 200 with at least one
// choice carrying a non-empty textual message is accepted. Anything
// else becomes a GenerationError quoting a bounded snippet of the raw
// body, so upstream misbehavior is diagnosable from the log line alone.
type ChatCompletionClient struct {
	httpClient *http.Client
	config     Config
}

// NewChatCompletionClient creates a client with the given configuration.
// If httpClient is nil, NewHTTPClient() is used. Configuration is not
// validated here; each Complete call validates it so that operators can
// fix a bad deployment without restarting dependents.
func NewChatCompletionClient(config Config, httpClient *http.Client) *ChatCompletionClient {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &ChatCompletionClient{httpClient: httpClient, config: config}
}

type chatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatRequest `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatCompletionClient) validateConfig() error {
	cfg := c.config
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return &ConfigurationError{Reason: "base URL is not set"}
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return &ConfigurationError{Reason: "model is not set"}
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return &ConfigurationError{Reason: "API key is not set"}
	}
	if strings.Contains(key, "${") {
		return &ConfigurationError{Reason: "API key contains an unresolved placeholder"}
	}
	return nil
}

// Complete implements the CompletionClient interface.
func (c *ChatCompletionClient) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, span := tracer.Start(ctx, "ChatCompletionClient.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.config.Model))

	if err := c.validateConfig(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	payload := chatCompletionRequest{
		Model: c.config.Model,
		Messages: []chatRequest{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.config.Temperature,
	}

	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &GenerationError{Reason: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &GenerationError{Reason: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.config.APIKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("chat completion call failed", "error", err)
		return "", &GenerationError{Reason: "completion API call failed", Err: err}
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &GenerationError{Reason: "failed to read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		genErr := &GenerationError{Reason: fmt.Sprintf(
			"completion API returned status %d: %s", resp.StatusCode, bodySnippet(respBodyBytes))}
		span.RecordError(genErr)
		span.SetStatus(codes.Error, genErr.Error())
		slog.Error("chat completion returned non-200 status",
			"status", resp.StatusCode, "body", bodySnippet(respBodyBytes))
		return "", genErr
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBodyBytes, &parsed); err != nil {
		genErr := &GenerationError{
			Reason: fmt.Sprintf("failed to decode response body: %s", bodySnippet(respBodyBytes)),
			Err:    err,
		}
		span.RecordError(genErr)
		span.SetStatus(codes.Error, genErr.Error())
		return "", genErr
	}

	content, err := extractContent(parsed, respBodyBytes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return content, nil
}

// extractContent enforces the response shape: at least one choice, a
// non-null message, and textual non-empty content.
func extractContent(parsed chatCompletionResponse, raw []byte) (string, error) {
	if len(parsed.Choices) == 0 {
		return "", &GenerationError{Reason: fmt.Sprintf(
			"response contains no choices: %s", bodySnippet(raw))}
	}
	message := parsed.Choices[0].Message
	if message == nil {
		return "", &GenerationError{Reason: fmt.Sprintf(
			"first choice has no message: %s", bodySnippet(raw))}
	}

	// An empty string is still a valid textual content; only a missing,
	// null, or non-string content violates the contract.
	var text string
	if err := json.Unmarshal(message.Content, &text); err != nil {
		return "", &GenerationError{Reason: fmt.Sprintf(
			"message content is not text: %s", bodySnippet(raw))}
	}
	return text, nil
}

// bodySnippet returns up to snippetLimit bytes of body for error
// messages, marking truncation explicitly. The cut backs up to a rune
// boundary so the snippet never ends in a torn UTF-8 sequence.
func bodySnippet(body []byte) string {
	if len(body) <= snippetLimit {
		return string(body)
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "...(truncated)"
}

var _ CompletionClient = (*ChatCompletionClient)(nil)
