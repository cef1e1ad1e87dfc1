package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// QueryTagStore records which watchlist queries surfaced an article. One
// article can be linked to many queries.
type QueryTagStore struct {
	db *sqlx.DB
}

func NewQueryTagStore(db *sqlx.DB) *QueryTagStore {
	return &QueryTagStore{db: db}
}

// Upsert returns the id of the tag for query, creating it if needed.
func (s *QueryTagStore) Upsert(ctx context.Context, query string) (int64, error) {
	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, `
		INSERT INTO query_tags (label) VALUES ($1)
		ON CONFLICT (label) DO UPDATE SET label = EXCLUDED.label
		RETURNING id`, query).Scan(&id)
	return id, err
}

func (s *QueryTagStore) LinkArticles(ctx context.Context, tagID int64, articleIDs []int64) error {
	if len(articleIDs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO article_query_tags (tag_id, article_id) VALUES ")
	args := make([]any, 0, len(articleIDs)+1)
	args = append(args, tagID)

	for i, articleID := range articleIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($1, $")
		sb.WriteString(strconv.Itoa(i + 2))
		sb.WriteString(")")
		args = append(args, articleID)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), args...)
	return err
}

// QueriesForArticles returns the labels linked to each article id.
func (s *QueryTagStore) QueriesForArticles(ctx context.Context, articleIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string)
	if len(articleIDs) == 0 {
		return result, nil
	}

	rows, err := GetExecutor(ctx, s.db).QueryxContext(ctx, `
		SELECT aqt.article_id, qt.label
		FROM query_tags qt
		INNER JOIN article_query_tags aqt ON aqt.tag_id = qt.id
		WHERE aqt.article_id = ANY($1)
		ORDER BY qt.label`, pq.Array(articleIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			articleID int64
			label     string
		)
		if err := rows.Scan(&articleID, &label); err != nil {
			return nil, err
		}
		result[articleID] = append(result[articleID], label)
	}

	return result, rows.Err()
}
