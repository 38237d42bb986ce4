package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/andlab/doctas/internal/logging"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// LLMConfig configures extraction through an OpenAI-compatible chat model.
type LLMConfig struct {
	Provider string // "openai" or "groq"
	APIKey   string
	Model    string
	BaseURL  string // overrides the provider default
	Timeout  time.Duration
	Keywords []string
}

// LLM asks a chat model to return the vitals as a JSON object.
type LLM struct {
	client *openai.Client
	cfg    LLMConfig
	logger zerolog.Logger
}

func NewLLM(cfg LLMConfig) *LLM {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Provider == "groq" {
		clientConfig.BaseURL = groqBaseURL
	}
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &LLM{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		logger: logging.WithComponent("gateway.llm").With().Str("provider", cfg.Provider).Logger(),
	}
}

func (a *LLM) model() string {
	if a.cfg.Model != "" {
		return a.cfg.Model
	}
	if a.cfg.Provider == "groq" {
		return "llama-3.3-70b-versatile"
	}
	return "gpt-4o-mini"
}

func (a *LLM) Submit(ctx context.Context, text string) (Record, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: BuildExtractionPrompt(a.cfg.Keywords)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		a.logger.Warn().Err(err).Dur("after", since(start)).Msg("chat completion failed")
		return Record{}, failure("chat completion: %v", err)
	}
	if len(resp.Choices) == 0 {
		return Record{}, failure("chat completion: no response choices")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	rec, err := decodeRecord(strings.NewReader(content))
	if err != nil {
		a.logger.Warn().Err(err).Str("content", content).Msg("undecodable completion")
		return Record{}, failure("%v", err)
	}

	a.logger.Info().Dur("took", since(start)).Bool("empty", rec.Empty()).Msg("extraction complete")
	return rec, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
