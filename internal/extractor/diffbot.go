package extractor

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"stock_news/internal/httpclient"
)

const DefaultDiffbotURL = "https://api.diffbot.com/v3/article"

// DiffbotConfig holds content-extraction API configuration.
type DiffbotConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type diffbotResponse struct {
	Objects []map[string]any `json:"objects"`
}

// Diffbot extracts article text through the Diffbot article API.
type Diffbot struct {
	client  *httpclient.Client
	baseURL string
	token   string
	logger  *slog.Logger
}

func NewDiffbot(cfg DiffbotConfig, logger *slog.Logger) *Diffbot {
	return NewDiffbotWithClient(cfg, httpclient.New(cfg.Timeout), logger)
}

func NewDiffbotWithClient(cfg DiffbotConfig, client *httpclient.Client, logger *slog.Logger) *Diffbot {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDiffbotURL
	}
	return &Diffbot{
		client:  client,
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		logger:  logger.With("extractor", "diffbot"),
	}
}

// Extract returns the first extracted object. Missing title or text fall back
// to "No title" and "No content".
func (d *Diffbot) Extract(ctx context.Context, articleURL string) (Extraction, error) {
	var resp diffbotResponse
	err := d.client.GetJSON(ctx, httpclient.Request{
		URL:   d.baseURL,
		Query: url.Values{"token": {d.token}, "url": {articleURL}},
	}, &resp)
	if err != nil {
		return Extraction{}, err
	}

	if len(resp.Objects) == 0 || len(resp.Objects[0]) == 0 {
		d.logger.Debug("no article object", "url", articleURL)
		return Extraction{}, nil
	}

	obj := resp.Objects[0]
	return Extraction{
		Found: true,
		Title: stringField(obj, "title", "No title"),
		Text:  stringField(obj, "text", "No content"),
	}, nil
}

func stringField(obj map[string]any, key, fallback string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return fallback
}
