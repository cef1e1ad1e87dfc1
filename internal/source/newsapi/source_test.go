package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"stock_news/internal/domain"
	"stock_news/internal/httpclient"
	"stock_news/internal/retry"
)

type SourceTestSuite struct {
	suite.Suite

	srv     *httptest.Server
	handler http.HandlerFunc
	calls   atomic.Int32
	logger  *slog.Logger
}

func TestSourceTestSuite(t *testing.T) {
	suite.Run(t, new(SourceTestSuite))
}

func (s *SourceTestSuite) SetupTest() {
	s.calls.Store(0)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.handler(w, r)
	}))
}

func (s *SourceTestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *SourceTestSuite) newSource(mutate func(*Config)) *Source {
	cfg := Config{
		BaseURL:  s.srv.URL,
		APIKey:   "key-123",
		PageSize: 2,
		MaxPages: 1,
		Timeout:  time.Second,
		Retry: retry.Policy{
			MaxAttempts: 3,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, s.logger)
}

func writeArticles(w http.ResponseWriter, total int, articles ...domain.RawArticle) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(APIResponse{Status: "ok", TotalResults: total, Articles: articles})
}

func article(i int) domain.RawArticle {
	return domain.RawArticle{
		Title:       fmt.Sprintf("Tesla headline %d", i),
		Description: fmt.Sprintf("description %d", i),
		URL:         fmt.Sprintf("https://news.example/%d", i),
		PublishedAt: "2025-01-07T10:00:00Z",
		Source:      json.RawMessage(`{"name":"Reuters"}`),
	}
}

func (s *SourceTestSuite) TestFetchArticles_SendsQueryAndAuth() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.Equal("Bearer key-123", r.Header.Get("Authorization"))
		s.Equal(`"Tesla"`, q.Get("q"))
		s.Equal("en", q.Get("language"))
		s.Equal("relevancy", q.Get("sortBy"))
		s.Equal("2", q.Get("pageSize"))
		s.Equal("1", q.Get("page"))
		s.Equal("2025-01-01", q.Get("from"))
		s.Equal("2025-01-31", q.Get("to"))
		writeArticles(w, 1, article(1))
	}

	from, _ := time.Parse("2006-01-02", "2025-01-01")
	to, _ := time.Parse("2006-01-02", "2025-01-31")
	articles, err := s.newSource(nil).FetchArticles(context.Background(), domain.Query{Text: "Tesla", From: from, To: to})

	s.Require().NoError(err)
	s.Len(articles, 1)
	s.Equal("https://news.example/1", articles[0].URL)
}

func (s *SourceTestSuite) TestFetchArticles_PageSizeClamped() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("100", r.URL.Query().Get("pageSize"))
		writeArticles(w, 0)
	}

	src := s.newSource(func(c *Config) { c.PageSize = 500 })
	articles, err := src.FetchArticles(context.Background(), domain.Query{Text: "Tesla"})

	s.Require().NoError(err)
	s.Empty(articles)
}

func (s *SourceTestSuite) TestFetchArticles_Paginates() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			writeArticles(w, 3, article(1), article(2))
		case "2":
			writeArticles(w, 3, article(3))
		default:
			s.Fail("unexpected page")
		}
	}

	src := s.newSource(func(c *Config) { c.MaxPages = 5 })
	articles, err := src.FetchArticles(context.Background(), domain.Query{Text: "Tesla"})

	s.Require().NoError(err)
	s.Len(articles, 3)
	s.Equal(int32(2), s.calls.Load())
}

func (s *SourceTestSuite) TestFetchArticles_RetriesTransientFailures() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		if s.calls.Load() < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeArticles(w, 1, article(1))
	}

	articles, err := s.newSource(nil).FetchArticles(context.Background(), domain.Query{Text: "Tesla"})

	s.Require().NoError(err)
	s.Len(articles, 1)
	s.Equal(int32(3), s.calls.Load())
}

func (s *SourceTestSuite) TestFetchArticles_ExhaustsRetries() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}

	articles, err := s.newSource(nil).FetchArticles(context.Background(), domain.Query{Text: "Tesla"})

	s.Require().Error(err)
	s.ErrorIs(err, retry.ErrExhausted)
	s.Empty(articles)
	s.Equal(int32(3), s.calls.Load())
}

func (s *SourceTestSuite) TestFetchArticles_AuthFailureFailsFast() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"bad key"}`))
	}

	_, err := s.newSource(nil).FetchArticles(context.Background(), domain.Query{Text: "Tesla"})

	s.Require().Error(err)
	s.NotErrorIs(err, retry.ErrExhausted)
	s.Equal(httpclient.KindClient, httpclient.KindOf(err))
	s.Equal(int32(1), s.calls.Load())
}

func (s *SourceTestSuite) TestFetchArticles_ErrorStatusInBody() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","code":"parameterInvalid","message":"bad from"}`))
	}

	_, err := s.newSource(nil).FetchArticles(context.Background(), domain.Query{Text: "Tesla"})

	s.Require().Error(err)
	s.Contains(err.Error(), "parameterInvalid")
	s.Equal(int32(1), s.calls.Load())
}

func (s *SourceTestSuite) TestFetchArticles_RelevanceFilter() {
	offTopic := article(2)
	offTopic.Title = "Ford earnings"
	offTopic.Description = "unrelated"

	s.handler = func(w http.ResponseWriter, r *http.Request) {
		writeArticles(w, 2, article(1), offTopic)
	}

	src := s.newSource(func(c *Config) { c.FilterRelevant = true })
	articles, err := src.FetchArticles(context.Background(), domain.Query{Text: "tesla"})

	s.Require().NoError(err)
	s.Len(articles, 1)
	s.Equal("Tesla headline 1", articles[0].Title)
}
