package insights

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/joelkehle/conference-insight/internal/logger"
)

var tracer = otel.Tracer("github.com/joelkehle/conference-insight/internal/insights")

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	DefaultAnthropicModel = string(anthropic.ModelClaudeSonnet4_20250514)
	DefaultOpenAIModel    = openai.GPT4o
)

type llmFailureClass int

const (
	failureNone llmFailureClass = iota
	failureEmpty
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

// Caller sends one system+user exchange to a chat model.
type Caller interface {
	Complete(ctx context.Context, system, user string) (string, error)
	ModelName() string
}

// LLMSettings selects and configures a Caller.
type LLMSettings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// NewCaller builds the Caller for s.Provider.
func NewCaller(s LLMSettings) (Caller, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("%s api key not configured", s.Provider)
	}
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case ProviderAnthropic:
		return NewAnthropicCaller(s), nil
	case ProviderOpenAI, "":
		return NewOpenAICaller(s), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", s.Provider)
	}
}

// --- Anthropic ---

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey, baseURL string) AnthropicMessager

func defaultAnthropicCreator(apiKey, baseURL string) AnthropicMessager {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	c := anthropic.NewClient(opts...)
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

type AnthropicCaller struct {
	messages    AnthropicMessager
	model       string
	maxTokens   int64
	temperature float64
}

func NewAnthropicCaller(s LLMSettings) *AnthropicCaller {
	model := strings.TrimSpace(s.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := int64(s.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicCaller{
		messages:    newAnthropicClient(s.APIKey, s.BaseURL),
		model:       model,
		maxTokens:   maxTokens,
		temperature: s.Temperature,
	}
}

func (a *AnthropicCaller) ModelName() string { return a.model }

func (a *AnthropicCaller) Complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
		Temperature: anthropic.Float(a.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	resp, err := a.messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// --- OpenAI-compatible (OpenAI, OpenRouter) ---

type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type OpenAIClientCreator func(apiKey, baseURL string) ChatCompleter

func defaultOpenAICreator(apiKey, baseURL string) ChatCompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

var newOpenAIClient OpenAIClientCreator = defaultOpenAICreator

type OpenAICaller struct {
	client      ChatCompleter
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAICaller(s LLMSettings) *OpenAICaller {
	model := strings.TrimSpace(s.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAICaller{
		client:      newOpenAIClient(s.APIKey, s.BaseURL),
		model:       model,
		maxTokens:   s.MaxTokens,
		temperature: float32(s.Temperature),
	}
}

func (o *OpenAICaller) ModelName() string { return o.model }

func (o *OpenAICaller) Complete(ctx context.Context, system, user string) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// --- executor ---

// AttemptMetrics counts calls made for one stage.
type AttemptMetrics struct {
	Attempts       int `json:"attempts"`
	ContentRetries int `json:"content_retries"`
}

// StageError names the stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Executor runs prompts with retries. Transport timeouts, rate limits and
// server errors back off and retry; empty answers are retried with feedback.
type Executor struct {
	caller      Caller
	log         *logger.Logger
	maxAttempts int
	callTimeout time.Duration
	wait        func(ctx context.Context, d time.Duration) error
}

func NewExecutor(caller Caller, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{caller: caller, log: log, maxAttempts: 3, wait: sleepCtx}
}

// WithCallTimeout bounds each model call; zero leaves calls unbounded.
func (e *Executor) WithCallTimeout(d time.Duration) *Executor {
	e.callTimeout = d
	return e
}

func (e *Executor) ModelName() string { return e.caller.ModelName() }

func (e *Executor) complete(ctx context.Context, system, user string) (string, error) {
	if e.callTimeout <= 0 {
		return e.caller.Complete(ctx, system, user)
	}
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.caller.Complete(ctx, system, user)
}

func (e *Executor) Run(ctx context.Context, stage, system, user string) (string, AttemptMetrics, error) {
	ctx, span := tracer.Start(ctx, "insights."+stage)
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", e.caller.ModelName()))

	metrics := AttemptMetrics{}
	prompt := user
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		metrics.Attempts = attempt
		raw, err := e.complete(ctx, system, prompt)
		if err != nil {
			class := classifyTransportError(err)
			if retryable(class) && attempt < e.maxAttempts {
				e.log.Warn("llm call failed, retrying", "stage", stage, "attempt", attempt, "error", err)
				if werr := e.wait(ctx, backoffDelay(attempt)); werr != nil {
					return "", metrics, &StageError{Stage: stage, Err: werr}
				}
				continue
			}
			span.RecordError(err)
			return "", metrics, &StageError{Stage: stage, Err: fmt.Errorf("transport failure: %w", err)}
		}

		clean := cleanResponse(raw)
		if clean == "" {
			if attempt < e.maxAttempts {
				metrics.ContentRetries++
				prompt = user + "\n\nYour previous response was empty. Respond with the requested content only."
				continue
			}
			return "", metrics, &StageError{Stage: stage, Err: errors.New("empty response")}
		}
		span.SetAttributes(attribute.Int("llm.attempts", attempt))
		return clean, metrics, nil
	}
	return "", metrics, &StageError{Stage: stage, Err: errors.New("failed after retries")}
}

func retryable(c llmFailureClass) bool {
	return c == failureTimeout || c == failureRateLimit || c == failureServer
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cleanResponse trims code fences and one layer of wrapping quotes.
func cleanResponse(s string) string {
	s = stripCodeFences(s)
	if len(s) >= 2 {
		for _, q := range []string{`"`, "'", "“"} {
			closing := q
			if q == "“" {
				closing = "”"
			}
			if strings.HasPrefix(s, q) && strings.HasSuffix(s, closing) && len(s) > len(q)+len(closing) {
				s = strings.TrimSpace(s[len(q) : len(s)-len(closing)])
				break
			}
		}
	}
	return s
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}

var statusCodeRe = regexp.MustCompile(`(?:status(?: code)?[:=]?\s*)([1-5]\d\d)\b`)

func classifyTransportError(err error) llmFailureClass {
	if err == nil {
		return failureNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	if code := statusCode(err); code != 0 {
		switch {
		case code == 429:
			return failureRateLimit
		case code >= 500:
			return failureServer
		case code >= 400:
			return failureClient
		}
	}
	return failureServer
}

func statusCode(err error) int {
	var anthErr *anthropic.Error
	if errors.As(err, &anthErr) {
		return anthErr.StatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	if m := statusCodeRe.FindStringSubmatch(strings.ToLower(err.Error())); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}
