package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel                = "gpt-4o-mini"
	DefaultSummaryTemperature   = 0.7
	DefaultSentimentTemperature = 0.2
	DefaultTopP                 = 0.95
	DefaultMaxTokens            = 5000
)

// ErrNoContent is returned when there is no article text to analyze.
var ErrNoContent = errors.New("no content to analyze")

type Config struct {
	APIKey               string
	BaseURL              string
	Model                string
	SummaryTemperature   float64
	SentimentTemperature float64
	MaxTokens            int64
	MaxRetries           int
}

// Analyzer turns retrieved article text into summaries and sentiment calls
// through a chat completion API.
type Analyzer struct {
	client *openai.Client
	model  openai.ChatModel
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Analyzer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SummaryTemperature == 0 {
		cfg.SummaryTemperature = DefaultSummaryTemperature
	}
	if cfg.SentimentTemperature == 0 {
		cfg.SentimentTemperature = DefaultSentimentTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	client := openai.NewClient(opts...)
	return &Analyzer{
		client: &client,
		model:  openai.ChatModel(cfg.Model),
		cfg:    cfg,
		logger: logger.With("component", "analyzer", "model", cfg.Model),
	}
}

// Summarize produces a sectioned trading summary of text focused on focus.
func (a *Analyzer) Summarize(ctx context.Context, focus, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrNoContent
	}
	return a.complete(ctx, a.cfg.SummaryTemperature, openai.UserMessage(summaryPrompt(focus, text)))
}

// Sentiment classifies text on a five step scale with reasoning.
func (a *Analyzer) Sentiment(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrNoContent
	}
	return a.complete(ctx, a.cfg.SentimentTemperature, openai.UserMessage(sentimentPrompt(text)))
}

func (a *Analyzer) complete(ctx context.Context, temperature float64, messages ...openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       a.model,
		Messages:    messages,
		Temperature: openai.Float(temperature),
		TopP:        openai.Float(DefaultTopP),
		MaxTokens:   openai.Int(a.cfg.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}

	a.logger.Debug("completion received",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// Conversation keeps a running chat history behind a fixed system prompt.
type Conversation struct {
	analyzer *Analyzer

	mu      sync.Mutex
	history []openai.ChatCompletionMessageParamUnion
}

func (a *Analyzer) NewConversation() *Conversation {
	return &Conversation{analyzer: a}
}

// Ask sends input with the prior turns. A failed call leaves the history
// without the unanswered question.
func (c *Conversation) Ask(ctx context.Context, input string) (string, error) {
	return c.AskAbout(ctx, input, "")
}

// AskAbout is Ask with news text attached to this turn's question.
func (c *Conversation) AskAbout(ctx context.Context, question, text string) (string, error) {
	input := questionPrompt(question, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(c.history)+2)
	messages = append(messages, openai.SystemMessage(assistantSystemPrompt))
	messages = append(messages, c.history...)
	messages = append(messages, openai.UserMessage(input))

	answer, err := c.analyzer.complete(ctx, c.analyzer.cfg.SummaryTemperature, messages...)
	if err != nil {
		return "", err
	}

	c.history = append(c.history, openai.UserMessage(input), openai.AssistantMessage(answer))
	return answer, nil
}

// Turns reports how many question and answer pairs are stored.
func (c *Conversation) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history) / 2
}
