package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"stock_news/internal/domain"
)

const articleColumns = 9

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// SaveBatch upserts the articles of one run keyed by URL and returns their
// database ids in input order. Later rows for a repeated URL win.
func (s *ArticleStore) SaveBatch(ctx context.Context, runID string, articles []domain.Article) ([]int64, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	unique := uniqueByURL(articles)

	var sb strings.Builder
	sb.WriteString(`INSERT INTO news_articles (
			run_id, row_id, source, author, published_date, title, url, description, content
		) VALUES `)
	args := make([]any, 0, len(unique)*articleColumns)

	for i, a := range unique {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 0; c < articleColumns; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*articleColumns + c + 1))
		}
		sb.WriteString(")")
		args = append(args, runID, a.ID, a.Source, a.Author, a.Date, a.Title, a.URL, a.Description, a.Content)
	}
	sb.WriteString(`
		ON CONFLICT (url) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			row_id = EXCLUDED.row_id,
			source = EXCLUDED.source,
			author = EXCLUDED.author,
			published_date = EXCLUDED.published_date,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			updated_at = NOW()
		RETURNING id, url`)

	rows, err := GetExecutor(ctx, s.db).QueryxContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("insert articles: %w", err)
	}
	defer rows.Close()

	byURL := make(map[string]int64, len(unique))
	for rows.Next() {
		var (
			id  int64
			url string
		)
		if err := rows.Scan(&id, &url); err != nil {
			return nil, err
		}
		byURL[url] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(articles))
	for i, a := range articles {
		ids[i] = byURL[a.URL]
	}
	return ids, nil
}

// ListByRun returns the stored rows of one run ordered by row id.
func (s *ArticleStore) ListByRun(ctx context.Context, runID string) ([]domain.Article, error) {
	query := `
		SELECT row_id, source, author, published_date, title, url, description, content
		FROM news_articles
		WHERE run_id = $1
		ORDER BY row_id`

	var rows []articleRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, runID); err != nil {
		return nil, err
	}

	out := make([]domain.Article, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

type articleRow struct {
	RowID       int       `db:"row_id"`
	Source      string    `db:"source"`
	Author      string    `db:"author"`
	Date        time.Time `db:"published_date"`
	Title       string    `db:"title"`
	URL         string    `db:"url"`
	Description string    `db:"description"`
	Content     string    `db:"content"`
}

func (r articleRow) toDomain() domain.Article {
	return domain.Article{
		ID:          r.RowID,
		Date:        r.Date.UTC(),
		Source:      r.Source,
		Author:      r.Author,
		Title:       r.Title,
		URL:         r.URL,
		Description: r.Description,
		Content:     r.Content,
	}
}

func uniqueByURL(articles []domain.Article) []domain.Article {
	index := make(map[string]int, len(articles))
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if i, ok := index[a.URL]; ok {
			out[i] = a
			continue
		}
		index[a.URL] = len(out)
		out = append(out, a)
	}
	return out
}
