package search

import (
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/google/uuid"

	"stock_news/internal/domain"
)

// ArticleDocument is the indexed form of one table row. Content is the
// searched field; the rest are returned as attributes.
type ArticleDocument struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Query       string    `json:"query"`
	RowID       int       `json:"row_id"`
	Date        time.Time `json:"date"`
	Source      string    `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// DocumentID is stable per URL so re-running a query overwrites.
func DocumentID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

func toDocument(run *domain.RunResult, a domain.Article) ArticleDocument {
	return ArticleDocument{
		ID:          DocumentID(a.URL),
		RunID:       run.RunID,
		Query:       run.Query,
		RowID:       a.ID,
		Date:        a.Date,
		Source:      a.Source,
		Author:      a.Author,
		Title:       a.Title,
		URL:         a.URL,
		Description: a.Description,
		Content:     a.Content,
		IndexedAt:   time.Now().UTC(),
	}
}

func (d ArticleDocument) toDomain() domain.Article {
	return domain.Article{
		ID:          d.RowID,
		Date:        d.Date.UTC(),
		Source:      d.Source,
		Author:      d.Author,
		Title:       d.Title,
		URL:         d.URL,
		Description: d.Description,
		Content:     d.Content,
	}
}

func buildMapping() types.TypeMapping {
	return types.TypeMapping{
		Properties: map[string]types.Property{
			"id":          types.NewKeywordProperty(),
			"run_id":      types.NewKeywordProperty(),
			"query":       types.NewKeywordProperty(),
			"row_id":      types.NewIntegerNumberProperty(),
			"date":        types.NewDateProperty(),
			"source":      textWithKeyword(),
			"author":      textWithKeyword(),
			"title":       types.NewTextProperty(),
			"url":         types.NewKeywordProperty(),
			"description": types.NewTextProperty(),
			"content":     types.NewTextProperty(),
			"indexed_at":  types.NewDateProperty(),
		},
	}
}

func textWithKeyword() types.Property {
	p := types.NewTextProperty()
	p.Fields = map[string]types.Property{
		"keyword": types.NewKeywordProperty(),
	}
	return p
}

// ConcatContent joins the non-empty contents of the articles, in order, into
// one context block for a completion prompt.
func ConcatContent(articles []domain.Article) string {
	parts := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.Content != "" {
			parts = append(parts, a.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
