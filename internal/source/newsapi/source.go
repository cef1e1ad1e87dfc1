package newsapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stock_news/internal/domain"
	"stock_news/internal/httpclient"
	"stock_news/internal/retry"
)

const (
	SourceID   = "newsapi"
	SourceName = "NewsAPI"

	DefaultBaseURL = "https://newsapi.org/v2/everything"
	MaxPageSize    = 100

	dateLayout = "2006-01-02"
)

// Config holds NewsAPI source configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Language       string
	SortBy         string
	PageSize       int
	MaxPages       int
	Timeout        time.Duration
	FilterRelevant bool
	Retry          retry.Policy
}

// Source fetches listing pages from NewsAPI.
type Source struct {
	client         *httpclient.Client
	baseURL        string
	apiKey         string
	language       string
	sortBy         string
	pageSize       int
	maxPages       int
	filterRelevant bool
	retry          retry.Policy
	logger         *slog.Logger
}

// New creates a new NewsAPI source.
func New(cfg Config, logger *slog.Logger) *Source {
	return NewWithClient(cfg, httpclient.New(cfg.Timeout), logger)
}

func NewWithClient(cfg Config, client *httpclient.Client, logger *slog.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.SortBy == "" {
		cfg.SortBy = "relevancy"
	}

	s := &Source{
		client:         client,
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		language:       cfg.Language,
		sortBy:         cfg.SortBy,
		pageSize:       cfg.PageSize,
		maxPages:       cfg.MaxPages,
		filterRelevant: cfg.FilterRelevant,
		logger:         logger.With("source", SourceID),
	}

	s.retry = cfg.Retry
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = func(a retry.Attempt) {
			s.logger.Warn("request failed, retrying",
				"attempt", a.Number,
				"backoff", a.Delay,
				"error", a.Err,
			)
		}
	}

	return s
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchArticles collects up to maxPages pages for the query. If a later page
// fails, the articles gathered so far are returned together with the error.
func (s *Source) FetchArticles(ctx context.Context, q domain.Query) ([]domain.RawArticle, error) {
	var all []domain.RawArticle

	for page := 1; page <= s.maxPages; page++ {
		resp, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*APIResponse, error) {
			return s.fetchPage(ctx, q, page)
		})
		if err != nil {
			return s.filter(q, all), fmt.Errorf("fetch page %d: %w", page, err)
		}

		all = append(all, resp.Articles...)

		s.logger.Debug("fetched page",
			"page", page,
			"articles", len(resp.Articles),
			"total", len(all),
			"total_results", resp.TotalResults,
		)

		if len(resp.Articles) < s.pageSize || len(all) >= resp.TotalResults {
			break
		}
	}

	return s.filter(q, all), nil
}

func (s *Source) fetchPage(ctx context.Context, q domain.Query, page int) (*APIResponse, error) {
	var resp APIResponse
	err := s.client.GetJSON(ctx, httpclient.Request{
		URL:    s.baseURL,
		Query:  s.params(q, page),
		Header: http.Header{"Authorization": {"Bearer " + s.apiKey}},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Status == "error" {
		return nil, &httpclient.Error{
			Kind: httpclient.KindClient,
			Err:  errors.New(resp.Code + ": " + resp.Message),
		}
	}

	return &resp, nil
}

func (s *Source) params(q domain.Query, page int) url.Values {
	v := url.Values{}
	v.Set("q", strconv.Quote(q.Text))
	v.Set("language", s.language)
	v.Set("sortBy", s.sortBy)
	v.Set("pageSize", strconv.Itoa(s.pageSize))
	v.Set("page", strconv.Itoa(page))
	if !q.From.IsZero() {
		v.Set("from", q.From.Format(dateLayout))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.Format(dateLayout))
	}
	return v
}

// filter keeps articles that mention the query in title or description when
// relevance filtering is enabled.
func (s *Source) filter(q domain.Query, articles []domain.RawArticle) []domain.RawArticle {
	if !s.filterRelevant || len(articles) == 0 {
		return articles
	}

	needle := strings.ToLower(q.Text)
	filtered := make([]domain.RawArticle, 0, len(articles))
	for _, a := range articles {
		if strings.Contains(strings.ToLower(a.Title), needle) ||
			strings.Contains(strings.ToLower(a.Description), needle) {
			filtered = append(filtered, a)
		}
	}

	s.logger.Debug("relevance filter applied", "before", len(articles), "after", len(filtered))
	return filtered
}
