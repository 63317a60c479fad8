package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrGenerationFailed marks any provider-level failure: timeouts, transport
// errors, empty responses. Retryable by the caller re-issuing the request.
var ErrGenerationFailed = errors.New("completion provider failed to generate text")

// GenerationParams are per-request tuning knobs. Pointers distinguish
// zero values from "not set".
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// Usage reports token consumption of a single provider call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionClient is the external text-completion collaborator.
type CompletionClient interface {
	// Complete generates a full completion for a system/user prompt pair.
	Complete(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, Usage, error)
	// CompleteStream generates a completion, invoking chunkHandler for every
	// fragment as it arrives, and returns the assembled full text.
	CompleteStream(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams, chunkHandler func(string) error) (string, Usage, error)
}

// ClientConfig holds the static provider settings fixed at construction.
type ClientConfig struct {
	ClientType string // "openai" or "ollama"
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
}

// NewCompletionClient builds a provider client from config.
func NewCompletionClient(cfg ClientConfig, logger *zap.Logger) (CompletionClient, error) {
	switch strings.ToLower(cfg.ClientType) {
	case "openai":
		openaiCfg := openaigo.DefaultConfig(cfg.APIKey)
		openaiCfg.BaseURL = cfg.BaseURL
		openaiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		logger.Info("Using OpenAI-compatible completion client",
			zap.String("baseURL", cfg.BaseURL), zap.String("model", cfg.Model))
		return &openAIClient{
			client: openaigo.NewClientWithConfig(openaiCfg),
			model:  cfg.Model,
			logger: logger.Named("OpenAIClient"),
		}, nil
	case "ollama":
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type: '%s'", cfg.ClientType)
	}
}

// --- OpenAI-compatible client ---

type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func (c *openAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: system prompt is empty", ErrGenerationFailed)
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildOpenAIMessages(systemPrompt, userPrompt),
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("Completion request failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.CompletionTokens))
	}

	return resp.Choices[0].Message.Content, usage, nil
}

func (c *openAIClient) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams, chunkHandler func(string) error) (string, Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" {
		return "", usage, fmt.Errorf("%w: system prompt is empty", ErrGenerationFailed)
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildOpenAIMessages(systemPrompt, userPrompt),
		Stream:      true,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream_init"}).Inc()
		return "", usage, fmt.Errorf("%w: failed to open stream: %v", ErrGenerationFailed, err)
	}
	defer stream.Close()

	start := time.Now()
	var builder strings.Builder
	var finalUsage openaigo.Usage

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream_read"}).Inc()
			return "", usage, fmt.Errorf("%w: stream read failed: %v", ErrGenerationFailed, err)
		}

		// Some providers attach usage to the final stream event.
		if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
			finalUsage = *resp.Usage
		}

		if len(resp.Choices) > 0 {
			chunk := resp.Choices[0].Delta.Content
			if chunk == "" {
				continue
			}
			builder.WriteString(chunk)
			if chunkHandler != nil {
				if err := chunkHandler(chunk); err != nil {
					return "", usage, fmt.Errorf("%w: chunk handler: %v", ErrGenerationFailed, err)
				}
			}
		}
	}

	duration := time.Since(start)
	fullText := builder.String()
	if strings.TrimSpace(fullText) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: empty streamed response", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	if finalUsage.TotalTokens > 0 {
		usage.PromptTokens = finalUsage.PromptTokens
		usage.CompletionTokens = finalUsage.CompletionTokens
		usage.TotalTokens = finalUsage.TotalTokens
	} else {
		// No usage block; estimate with tiktoken.
		usage = estimateUsage(c.model, systemPrompt, userPrompt, fullText)
	}
	if usage.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.CompletionTokens))
	}

	return fullText, usage, nil
}

func buildOpenAIMessages(systemPrompt, userPrompt string) []openaigo.ChatCompletionMessage {
	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userPrompt != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role: openaigo.ChatMessageRoleUser, Content: userPrompt,
		})
	}
	return messages
}

func estimateUsage(model, systemPrompt, userPrompt, completion string) Usage {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return Usage{}
		}
	}
	prompt := len(enc.Encode(systemPrompt, nil, nil)) + len(enc.Encode(userPrompt, nil, nil))
	compl := len(enc.Encode(completion, nil, nil))
	return Usage{PromptTokens: prompt, CompletionTokens: compl, TotalTokens: prompt + compl}
}

// --- Ollama client ---

type ollamaClient struct {
	client  *ollamaapi.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg ClientConfig, logger *zap.Logger) (CompletionClient, error) {
	// api.NewClient expects the bare host URL, without the /v1 suffix.
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/v1"), "/")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL '%s': %w", baseURL, err)
	}

	logger.Info("Using Ollama completion client",
		zap.String("baseURL", baseURL), zap.String("model", cfg.Model))
	return &ollamaClient{
		client:  ollamaapi.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout}),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.Named("OllamaClient"),
	}, nil
}

func (c *ollamaClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: system prompt is empty", ErrGenerationFailed)
	}

	req := &ollamaapi.ChatRequest{
		Model:    c.model,
		Messages: buildOllamaMessages(systemPrompt, userPrompt),
		Stream:   boolPtr(false),
		Options:  ollamaOptions(params),
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var resp ollamaapi.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r ollamaapi.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("Ollama request failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	if usage.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.CompletionTokens))
	}

	return resp.Message.Content, usage, nil
}

func (c *ollamaClient) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams, chunkHandler func(string) error) (string, Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" {
		return "", usage, fmt.Errorf("%w: system prompt is empty", ErrGenerationFailed)
	}

	req := &ollamaapi.ChatRequest{
		Model:    c.model,
		Messages: buildOllamaMessages(systemPrompt, userPrompt),
		Stream:   boolPtr(true),
		Options:  ollamaOptions(params),
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var builder strings.Builder
	var promptTokens, completionTokens int

	err := c.client.Chat(requestCtx, req, func(resp ollamaapi.ChatResponse) error {
		if resp.Message.Content != "" {
			builder.WriteString(resp.Message.Content)
			if chunkHandler != nil {
				if err := chunkHandler(resp.Message.Content); err != nil {
					return fmt.Errorf("chunk handler: %w", err)
				}
			}
		}
		if resp.Done {
			promptTokens = resp.PromptEvalCount
			completionTokens = resp.EvalCount
		}
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	fullText := builder.String()
	if strings.TrimSpace(fullText) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: empty streamed response", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usage.PromptTokens = promptTokens
	usage.CompletionTokens = completionTokens
	usage.TotalTokens = promptTokens + completionTokens
	if usage.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.CompletionTokens))
	}

	return fullText, usage, nil
}

func buildOllamaMessages(systemPrompt, userPrompt string) []ollamaapi.Message {
	messages := []ollamaapi.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userPrompt != "" {
		messages = append(messages, ollamaapi.Message{Role: "user", Content: userPrompt})
	}
	return messages
}

func ollamaOptions(params GenerationParams) map[string]any {
	return map[string]any{
		"temperature": params.Temperature,
		"top_p":       params.TopP,
		"num_predict": intVal(params.MaxTokens),
	}
}

// --- helpers ---

func float32Val(f *float64) float32 {
	if f == nil {
		return 1.0
	}
	return float32(*f)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func boolPtr(b bool) *bool { return &b }
