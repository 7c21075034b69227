package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const (
	defaultOpenAIBase = "https://api.openai.com/v1"
	defaultNVIDIABase = "https://integrate.api.nvidia.com/v1"
)

// CompletionClient speaks the OpenAI-compatible chat completions protocol,
// which covers all three supported providers. A circuit breaker stops calls
// after five consecutive failures; its state belongs to the client, so it
// spans only the calls made through one CompletionClient.
type CompletionClient struct {
	opts    Options
	base    string
	key     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewCompletionClient validates provider options and resolves the endpoint.
func NewCompletionClient(opts Options) (*CompletionClient, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	opts.Provider = provider

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Timeout > MaxTimeout {
		return nil, fmt.Errorf("gateway: timeout %s exceeds hard maximum %s", opts.Timeout, MaxTimeout)
	}

	base := opts.APIBase
	key := opts.APIKey
	switch provider {
	case ProviderOpenAI:
		if base == "" {
			base = defaultOpenAIBase
		}
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
	case ProviderNVIDIA:
		if base == "" {
			base = os.Getenv("NVIDIA_API_BASE")
		}
		if base == "" {
			base = defaultNVIDIABase
		}
		if key == "" {
			key = os.Getenv("NVIDIA_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("gateway: NVIDIA_API_KEY is required when llm_provider=%q", ProviderNVIDIA)
		}
	case ProviderCustom:
		if base == "" {
			return nil, fmt.Errorf("gateway: llm_api_base is required when llm_provider=%q", ProviderCustom)
		}
	default:
		return nil, fmt.Errorf("gateway: unsupported provider %q (supported: custom, nvidia, openai)", opts.Provider)
	}

	return &CompletionClient{
		opts: opts,
		base: strings.TrimRight(base, "/"),
		key:  key,
		http: &http.Client{Timeout: opts.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "llm-gateway",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the governed messages and returns the raw completion text.
func (c *CompletionClient) Generate(ctx context.Context, messages []Message) (string, error) {
	body := map[string]any{
		"model":    c.opts.Model,
		"messages": messages,
	}
	if c.opts.MaxTokens > 0 {
		body["max_tokens"] = c.opts.MaxTokens
	}
	if c.opts.Temperature != nil {
		body["temperature"] = *c.opts.Temperature
	}
	if c.opts.TopP != nil {
		body["top_p"] = *c.opts.TopP
	}
	// NVIDIA's OpenAI-compatible endpoint may reject strict JSON formatting;
	// extraction falls back to fence parsing there.
	if c.opts.Provider != ProviderNVIDIA {
		body["response_format"] = map[string]any{"type": "json_object"}
	}
	for k, v := range c.opts.ExtraBody {
		body[k] = v
	}

	raw, err := c.breaker.Execute(func() (any, error) {
		return c.complete(ctx, body)
	})
	if err != nil {
		var gw *GatewayError
		if errors.As(err, &gw) {
			return "", err
		}
		// Breaker-originated errors (open state, half-open overflow).
		return "", &GatewayError{Op: "circuit breaker", Err: err}
	}
	return raw.(string), nil
}

func (c *CompletionClient) complete(ctx context.Context, body map[string]any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &GatewayError{Op: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &GatewayError{Op: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &GatewayError{Op: "send request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &GatewayError{
			Op:  "provider response",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &GatewayError{Op: "decode response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &GatewayError{Op: "decode response", Err: fmt.Errorf("empty choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}
