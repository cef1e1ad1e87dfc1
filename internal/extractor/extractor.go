package extractor

import "context"

// Extraction is the full text extracted for one URL. Found is false when the
// API answered successfully but had no article object.
type Extraction struct {
	Found bool   `json:"found"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Extractor fetches full article text for a URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (Extraction, error)
}
