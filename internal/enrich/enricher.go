package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"stock_news/internal/domain"
	"stock_news/internal/extractor"
	"stock_news/internal/httpclient"
	"stock_news/internal/normalizer"
)

const (
	NoContentFound     = "No article content found"
	DefaultConcurrency = 1
)

// RateLimitedContent marks a row whose extraction hit the provider rate limit.
var RateLimitedContent = StatusContent(http.StatusTooManyRequests)

// StatusContent is the content placeholder written for a non-200 extraction.
func StatusContent(code int) string {
	return fmt.Sprintf("Error: %d", code)
}

// Enricher replaces listing snippets with full article text. A failed
// extraction never fails the batch; the failure is recorded in Content.
type Enricher struct {
	extractor   extractor.Extractor
	concurrency int
	logger      *slog.Logger
}

func New(ext extractor.Extractor, concurrency int, logger *slog.Logger) *Enricher {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Enricher{
		extractor:   ext,
		concurrency: concurrency,
		logger:      logger.With("component", "enricher"),
	}
}

// Enrich extracts every article, drops rate-limited rows and reindexes the
// rest. It returns the kept articles and how many rows were dropped.
func (e *Enricher) Enrich(ctx context.Context, articles []domain.Article) ([]domain.Article, int) {
	out := make([]domain.Article, len(articles))
	copy(out, articles)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range out {
		i := i
		g.Go(func() error {
			e.enrichOne(gctx, &out[i])
			return nil
		})
	}
	_ = g.Wait()

	kept := out[:0]
	for _, a := range out {
		if a.Content == RateLimitedContent {
			continue
		}
		kept = append(kept, a)
	}
	dropped := len(out) - len(kept)
	if dropped > 0 {
		e.logger.Warn("dropped rate-limited articles", "dropped", dropped)
	}

	return normalizer.Reindex(kept), dropped
}

func (e *Enricher) enrichOne(ctx context.Context, a *domain.Article) {
	ext, err := e.extractor.Extract(ctx, a.URL)
	if err != nil {
		a.Content = failureContent(err)
		e.logger.Warn("extraction failed", "url", a.URL, "error", err)
		return
	}

	if !ext.Found {
		a.Content = NoContentFound
		return
	}

	a.Title = ext.Title
	a.Content = strings.TrimSpace(ext.Text)
}

func failureContent(err error) string {
	if httpclient.IsStatus(err) {
		return StatusContent(httpclient.StatusOf(err))
	}
	return err.Error()
}
