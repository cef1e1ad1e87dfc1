package domain

import (
	"encoding/json"
	"time"
)

// UnknownSource replaces a missing or malformed source name.
const UnknownSource = "Unknown"

// RawArticle is a record as returned by the listing API.
type RawArticle struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	Author      *string         `json:"author"`
	PublishedAt string          `json:"publishedAt"`
	Source      json.RawMessage `json:"source"`
	URLToImage  *string         `json:"urlToImage,omitempty"`
	Content     *string         `json:"content,omitempty"`
}

// Article is a normalized record. ID is the dense position within its batch.
type Article struct {
	ID          int       `json:"id"`
	Date        time.Time `json:"date"`
	Source      string    `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
}
