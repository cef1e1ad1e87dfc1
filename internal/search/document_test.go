package search

import (
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"stock_news/internal/domain"
)

func TestDocumentID_StablePerURL(t *testing.T) {
	a := DocumentID("https://news.example/a")

	assert.Equal(t, a, DocumentID("https://news.example/a"))
	assert.NotEqual(t, a, DocumentID("https://news.example/b"))

	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestDocumentRoundTrip(t *testing.T) {
	run := &domain.RunResult{RunID: "run-1", Query: "Nvidia"}
	article := domain.Article{
		ID:          4,
		Date:        time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		Source:      "CNBC",
		Author:      "Sam Lee",
		Title:       "Nvidia rallies",
		URL:         "https://news.example/nvda",
		Description: "Shares jump",
		Content:     "Full story",
	}

	doc := toDocument(run, article)

	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, "Nvidia", doc.Query)
	assert.Equal(t, DocumentID(article.URL), doc.ID)
	assert.False(t, doc.IndexedAt.IsZero())
	assert.Equal(t, article, doc.toDomain())
}

func TestConcatContent(t *testing.T) {
	articles := []domain.Article{
		{Content: "first"},
		{Content: ""},
		{Content: "second"},
	}

	assert.Equal(t, "first\n\nsecond", ConcatContent(articles))
	assert.Empty(t, ConcatContent(nil))
}

func TestBuildMapping_ContentIsText(t *testing.T) {
	m := buildMapping()

	_, ok := m.Properties["content"].(*types.TextProperty)
	assert.True(t, ok)
	_, ok = m.Properties["url"].(*types.KeywordProperty)
	assert.True(t, ok)
}
