package normalizer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"stock_news/internal/domain"
)

// DefaultMaxArticles is how many of the most recent articles survive.
const DefaultMaxArticles = 15

const dayLayout = "2006-01-02"

type Normalizer struct {
	maxArticles int
	logger      *slog.Logger
}

func New(maxArticles int, logger *slog.Logger) *Normalizer {
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}
	return &Normalizer{
		maxArticles: maxArticles,
		logger:      logger.With("component", "normalizer"),
	}
}

// Normalize turns raw listing records into a deduplicated, date-sorted,
// truncated batch with dense IDs.
func (n *Normalizer) Normalize(raw []domain.RawArticle) []domain.Article {
	return n.Process(n.FromRaw(raw))
}

// FromRaw maps raw records to articles. Image and content-preview fields
// are not carried over. Records with an unparseable timestamp are dropped.
func (n *Normalizer) FromRaw(raw []domain.RawArticle) []domain.Article {
	articles := make([]domain.Article, 0, len(raw))

	for _, r := range raw {
		date, err := ParseDate(r.PublishedAt)
		if err != nil {
			n.logger.Warn("failed to parse date",
				"url", r.URL,
				"published_at", r.PublishedAt,
			)
			continue
		}

		a := domain.Article{
			Date:        date,
			Source:      SourceName(r.Source),
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
		}
		if r.Author != nil {
			a.Author = *r.Author
		}

		articles = append(articles, a)
	}

	return articles
}

// Process deduplicates by description, sorts by date descending, keeps the
// most recent maxArticles and reindexes. Applying it twice changes nothing.
func (n *Normalizer) Process(articles []domain.Article) []domain.Article {
	before := len(articles)

	out := Dedup(articles)
	n.logger.Debug("removed duplicate descriptions", "removed", before-len(out))

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})

	if len(out) > n.maxArticles {
		out = out[:n.maxArticles]
	}

	return Reindex(out)
}

// Dedup keeps the first article for every distinct description.
func Dedup(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]domain.Article, 0, len(articles))

	for _, a := range articles {
		if _, ok := seen[a.Description]; ok {
			continue
		}
		seen[a.Description] = struct{}{}
		out = append(out, a)
	}

	return out
}

// Reindex assigns IDs 0..len-1 in slice order.
func Reindex(articles []domain.Article) []domain.Article {
	for i := range articles {
		articles[i].ID = i
	}
	return articles
}

// ParseDate keeps the calendar date of an ISO-8601 timestamp, e.g.
// "2025-01-07T14:03:00Z" -> 2025-01-07 00:00 UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if i := strings.IndexAny(value, "T "); i > 0 {
		value = value[:i]
	}
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	t, err := time.Parse(dayLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// SourceName flattens the listing's source field. It accepts {"name": "..."}
// or a bare string; anything else yields domain.UnknownSource.
func SourceName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return domain.UnknownSource
	}

	var obj struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Name != nil && strings.TrimSpace(*obj.Name) != "" {
			return *obj.Name
		}
		return domain.UnknownSource
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil && strings.TrimSpace(name) != "" {
		return name
	}

	return domain.UnknownSource
}
