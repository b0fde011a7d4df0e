package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/makeasinger/moviegen/internal/config"
	"github.com/makeasinger/moviegen/internal/logging"
	"github.com/makeasinger/moviegen/internal/model"
	"github.com/makeasinger/moviegen/pkg/tracer"
)

const completionsPath = "/chat/completions"

// ErrNoCompletion is returned when a 2xx response lacks choices[0].message.content.
var ErrNoCompletion = errors.New("no completion content in response")

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openrouter API error (status %d): %s", e.StatusCode, e.Message)
}

// chatCompletionResponse is the subset of the envelope we read.
// Content is a pointer so an absent or null field is distinguishable from "".
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// OpenRouterClient handles communication with the OpenRouter chat completions API
type OpenRouterClient struct {
	http   *resty.Client
	apiKey string
}

// NewOpenRouterClient creates a client that issues exactly one request per call.
// Retries stay disabled and no timeout is set unless configured.
func NewOpenRouterClient(cfg *config.OpenRouterConfig) *OpenRouterClient {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}
	if cfg.HTTPReferer != "" {
		rc.SetHeader("HTTP-Referer", cfg.HTTPReferer)
	}
	if cfg.AppTitle != "" {
		rc.SetHeader("X-Title", cfg.AppTitle)
	}
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}

	return &OpenRouterClient{
		http:   rc,
		apiKey: cfg.APIKey,
	}
}

// ChatCompletion sends req and returns the first choice's message content.
// Every error returned here is a transport failure from the caller's point of view.
func (c *OpenRouterClient) ChatCompletion(ctx context.Context, req model.ChatCompletionRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "openrouter.chat_completion",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("llm.model", req.Model)))
	defer span.End()

	logger := logging.FromContext(ctx)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(completionsPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	logger.V(logging.DEBUG).Info("openrouter responded",
		"status", resp.StatusCode(), "bytes", len(resp.Body()), "latency", resp.Time())

	if !resp.IsSuccess() {
		statusErr := &StatusError{
			StatusCode: resp.StatusCode(),
			Message:    upstreamMessage(resp.StatusCode(), resp.Body()),
		}
		span.SetStatus(codes.Error, statusErr.Error())
		return "", statusErr
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &chatResp); err != nil {
		span.SetStatus(codes.Error, "malformed envelope")
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == nil {
		span.SetStatus(codes.Error, ErrNoCompletion.Error())
		return "", ErrNoCompletion
	}

	span.SetAttributes(
		attribute.String("llm.response_model", chatResp.Model),
		attribute.Int("llm.total_tokens", chatResp.Usage.TotalTokens),
	)

	return *chatResp.Choices[0].Message.Content, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *OpenRouterClient) IsConfigured() bool {
	return c.apiKey != ""
}

// upstreamMessage prefers the OpenAI-style error message over the raw body.
func upstreamMessage(status int, body []byte) string {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	if len(body) == 0 {
		return http.StatusText(status)
	}
	if len(body) > 512 {
		return string(body[:512])
	}
	return string(body)
}
