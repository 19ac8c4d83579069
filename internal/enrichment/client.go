package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/accioai/accio/internal/inference"
	"github.com/accioai/accio/internal/retry"
)

// Completer sends a single prompt to a text-completion model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider errors. All of them match ErrProvider with errors.Is.
var (
	ErrProvider          = errors.New("llm provider error")
	ErrProviderAuth      = fmt.Errorf("%w: authentication failed", ErrProvider)
	ErrProviderRateLimit = fmt.Errorf("%w: rate limited", ErrProvider)
	ErrProviderServer    = fmt.Errorf("%w: server error", ErrProvider)
	ErrProviderEmpty     = fmt.Errorf("%w: empty response", ErrProvider)
)

// SummaryOperation labels card summary calls in the inference log.
const SummaryOperation = "card_summary"

// LLMConfig holds settings for an OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Provider          string
	Model             string
	MaxTokens         int
	Temperature       float32
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	MaxResponseChars  int
}

// DefaultLLMConfig targets Groq's OpenAI-compatible API.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:           "https://api.groq.com/openai/v1",
		Provider:          "groq",
		Model:             "llama-3.1-8b-instant",
		MaxTokens:         1000,
		Temperature:       0.3,
		Timeout:           30 * time.Second,
		MaxRetries:        2,
		RequestsPerSecond: 2,
		MaxResponseChars:  10000,
	}
}

// ConfigFromEnv overlays LLM_* variables on the defaults. Unparseable values
// are ignored.
func ConfigFromEnv() LLMConfig {
	cfg := DefaultLLMConfig()

	cfg.APIKey = os.Getenv("GROQ_API_KEY")
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("LLM_API_KEY")
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Temperature = float32(t)
		}
	}
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			cfg.Timeout = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("LLM_REQUESTS_PER_SECOND"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r >= 0 {
			cfg.RequestsPerSecond = r
		}
	}
	return cfg
}

// OpenAICompleter implements Completer over any OpenAI-compatible API.
type OpenAICompleter struct {
	client      *openai.Client
	cfg         LLMConfig
	limiter     *rate.Limiter
	retryPolicy retry.Policy
	inference   *inference.Logger
	logger      *slog.Logger
}

// NewOpenAICompleter creates a completer. inferenceLogger may be nil.
func NewOpenAICompleter(cfg LLMConfig, inferenceLogger *inference.Logger, logger *slog.Logger) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	policy.InitialBackoff = time.Second

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		cfg:         cfg,
		limiter:     rate.NewLimiter(limit, 1),
		retryPolicy: policy,
		inference:   inferenceLogger,
		logger:      logger,
	}, nil
}

// Complete sends prompt as a single user message. Rate limit and server
// errors are retried inside the overall call timeout.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var out string
	attempt := 0

	err := retry.Do(ctx, c.retryPolicy, func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrProvider, err)
		}

		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: c.cfg.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})

		c.inference.Record(inference.Call{
			Provider:     c.cfg.Provider,
			Model:        c.cfg.Model,
			Operation:    SummaryOperation,
			PromptTokens: resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			Latency:      time.Since(start),
			Err:          err,
			Metadata:     map[string]interface{}{"attempt": attempt},
		})

		if err != nil {
			classified := classifyProviderError(err)
			c.logger.Warn("llm call failed", "attempt", attempt, "model", c.cfg.Model, "error", classified)
			return classified
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return ErrProviderEmpty
		}

		out = capRunes(resp.Choices[0].Message.Content, c.cfg.MaxResponseChars)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func classifyProviderError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrProviderAuth, err)
	case status == http.StatusTooManyRequests:
		return retry.Transient(fmt.Errorf("%w: %v", ErrProviderRateLimit, err))
	case status >= 500:
		return retry.Transient(fmt.Errorf("%w: %v", ErrProviderServer, err))
	default:
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
}

func capRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
