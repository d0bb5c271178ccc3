package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"

	"github.com/billybrichards/climate-parser/config"
)

// ErrMissingCredentials is returned by every call when no upstream API key is configured.
var ErrMissingCredentials = xerrors.New("upstream API key is not configured")

// UpstreamError is returned when the completion call itself fails: network errors,
// upstream error statuses, quota or authentication failures.
type UpstreamError struct {
	// StatusCode is the upstream HTTP status, or zero if no response was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream call failed with status %d: %s", e.StatusCode, e.Message)
	}
	return "upstream call failed: " + e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client represents a client to the upstream chat-completion service.
// Every interaction, including the connectivity probe, uses the chat
// completions call shape.
type Client struct {
	model     string
	maxTokens int64
	client    *openai.Client
}

// NewBackendClient creates a Client from the upstream configuration. A missing API key
// is not an error here; calls made through the client fail with ErrMissingCredentials.
func NewBackendClient(cfg config.UpstreamConfig) *Client {
	c := &Client{
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if cfg.APIKey == "" {
		return c
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{
			Timeout: cfg.Timeout,
		}),
		// Failures are reported to the caller on the same request.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	client := openai.NewClient(opts...)
	c.client = &client
	return c
}

// Model returns the fixed model identifier sent with every request.
func (c *Client) Model() string { return c.model }

// Complete sends a single, non-streamed completion made of a system instruction and a
// user message, and returns the text content of the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	completion, err := c.create(ctx, system, user, c.maxTokens)
	if err != nil {
		return "", err
	}
	return completion.Choices[0].Message.Content, nil
}

// ProbeResult is the outcome of a connectivity probe.
type ProbeResult struct {
	Model       string `json:"model"`
	Reply       string `json:"reply"`
	LatencyMS   int64  `json:"latency_ms"`
	TotalTokens int64  `json:"total_tokens"`
}

const probeMaxTokens = 20

// Probe checks that the upstream service accepts our credentials by asking for a tiny completion.
func (c *Client) Probe(ctx context.Context) (*ProbeResult, error) {
	start := time.Now()
	completion, err := c.create(ctx,
		"You are a connectivity check. Answer with a single word.",
		"Reply with the word OK.",
		probeMaxTokens,
	)
	if err != nil {
		return nil, err
	}
	return &ProbeResult{
		Model:       completion.Model,
		Reply:       strings.TrimSpace(completion.Choices[0].Message.Content),
		LatencyMS:   time.Since(start).Milliseconds(),
		TotalTokens: completion.Usage.TotalTokens,
	}, nil
}

func (c *Client) create(ctx context.Context, system, user string, maxTokens int64) (*openai.ChatCompletion, error) {
	if c.client == nil {
		return nil, ErrMissingCredentials
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		Messages:  messages,
		MaxTokens: openai.Int(maxTokens),
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			msg := apierr.Message
			if msg == "" {
				// Some providers only populate the wrapped {"error": {...}} form.
				msg = gjson.Get(apierr.RawJSON(), "error.message").String()
			}
			if msg == "" {
				msg = http.StatusText(apierr.StatusCode)
			}
			return nil, &UpstreamError{StatusCode: apierr.StatusCode, Message: msg, Err: err}
		}
		return nil, &UpstreamError{Message: err.Error(), Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &UpstreamError{Message: "completion contained no choices", Err: xerrors.New("no choices")}
	}
	return completion, nil
}
