package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_news/internal/domain"
	"stock_news/internal/extractor"
	"stock_news/internal/httpclient"
)

type stubExtractor struct {
	mu      sync.Mutex
	results map[string]extractor.Extraction
	errs    map[string]error
	calls   []string
}

func (s *stubExtractor) Extract(_ context.Context, url string) (extractor.Extraction, error) {
	s.mu.Lock()
	s.calls = append(s.calls, url)
	s.mu.Unlock()

	if err, ok := s.errs[url]; ok {
		return extractor.Extraction{}, err
	}
	return s.results[url], nil
}

func articles(n int) []domain.Article {
	out := make([]domain.Article, n)
	for i := range out {
		out[i] = domain.Article{
			ID:          i,
			Title:       fmt.Sprintf("snippet title %d", i),
			URL:         fmt.Sprintf("https://news.example/%d", i),
			Description: fmt.Sprintf("description %d", i),
			Date:        time.Date(2025, 1, 10-i, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnrich_Success(t *testing.T) {
	ext := &stubExtractor{results: map[string]extractor.Extraction{
		"https://news.example/0": {Found: true, Title: "Full title", Text: "  full body \n"},
	}}

	out, dropped := New(ext, 1, logger()).Enrich(context.Background(), articles(1))

	require.Len(t, out, 1)
	assert.Zero(t, dropped)
	assert.Equal(t, "Full title", out[0].Title)
	assert.Equal(t, "full body", out[0].Content)
	assert.Equal(t, "description 0", out[0].Description)
}

func TestEnrich_FailureSentinels(t *testing.T) {
	ext := &stubExtractor{
		results: map[string]extractor.Extraction{
			"https://news.example/0": {Found: false},
		},
		errs: map[string]error{
			"https://news.example/1": &httpclient.Error{Kind: httpclient.KindNotFound, StatusCode: 404, Err: errors.New("gone")},
			"https://news.example/2": errors.New("dial tcp: connection refused"),
		},
	}

	out, dropped := New(ext, 1, logger()).Enrich(context.Background(), articles(3))

	require.Len(t, out, 3)
	assert.Zero(t, dropped)
	assert.Equal(t, NoContentFound, out[0].Content)
	assert.Equal(t, "snippet title 0", out[0].Title)
	assert.Equal(t, "Error: 404", out[1].Content)
	assert.Equal(t, "dial tcp: connection refused", out[2].Content)
}

func TestEnrich_UndecodableBodyRecordsErrorText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	ext := extractor.NewDiffbotWithClient(
		extractor.DiffbotConfig{BaseURL: srv.URL, Token: "t"},
		httpclient.NewWithHTTPClient(srv.Client()),
		logger(),
	)

	out, dropped := New(ext, 1, logger()).Enrich(context.Background(), articles(1))

	require.Len(t, out, 1)
	assert.Zero(t, dropped)
	assert.NotEqual(t, StatusContent(http.StatusOK), out[0].Content)
	assert.Contains(t, out[0].Content, "decode response")
	assert.Equal(t, "snippet title 0", out[0].Title)
}

func TestEnrich_DropsRateLimitedAndReindexes(t *testing.T) {
	ext := &stubExtractor{
		results: map[string]extractor.Extraction{
			"https://news.example/0": {Found: true, Title: "a", Text: "A"},
			"https://news.example/2": {Found: true, Title: "c", Text: "C"},
		},
		errs: map[string]error{
			"https://news.example/1": &httpclient.Error{Kind: httpclient.KindRateLimited, StatusCode: 429, Err: errors.New("slow down")},
		},
	}

	out, dropped := New(ext, 1, logger()).Enrich(context.Background(), articles(3))

	require.Len(t, out, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 0, out[0].ID)
	assert.Equal(t, 1, out[1].ID)
	assert.Equal(t, "A", out[0].Content)
	assert.Equal(t, "C", out[1].Content)
	for _, a := range out {
		assert.NotEqual(t, RateLimitedContent, a.Content)
	}
}

func TestEnrich_SequentialByDefault(t *testing.T) {
	ext := &stubExtractor{results: map[string]extractor.Extraction{}}

	_, _ = New(ext, 0, logger()).Enrich(context.Background(), articles(4))

	assert.Equal(t, []string{
		"https://news.example/0",
		"https://news.example/1",
		"https://news.example/2",
		"https://news.example/3",
	}, ext.calls)
}

type concurrencyGauge struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (p *concurrencyGauge) Extract(_ context.Context, url string) (extractor.Extraction, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return extractor.Extraction{Found: true, Title: url, Text: url}, nil
}

func TestEnrich_BoundedFanOutPreservesOrder(t *testing.T) {
	gauge := &concurrencyGauge{}

	out, dropped := New(gauge, 3, logger()).Enrich(context.Background(), articles(10))

	require.Len(t, out, 10)
	assert.Zero(t, dropped)
	assert.LessOrEqual(t, gauge.peak.Load(), int32(3))
	for i, a := range out {
		assert.Equal(t, i, a.ID)
		assert.Equal(t, fmt.Sprintf("https://news.example/%d", i), a.Content)
	}
}

func TestEnrich_Empty(t *testing.T) {
	out, dropped := New(&stubExtractor{}, 1, logger()).Enrich(context.Background(), nil)

	assert.Empty(t, out)
	assert.Zero(t, dropped)
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	in := articles(1)
	ext := &stubExtractor{results: map[string]extractor.Extraction{
		"https://news.example/0": {Found: true, Title: "new", Text: "body"},
	}}

	_, _ = New(ext, 1, logger()).Enrich(context.Background(), in)

	assert.Equal(t, "snippet title 0", in[0].Title)
	assert.Empty(t, in[0].Content)
}
