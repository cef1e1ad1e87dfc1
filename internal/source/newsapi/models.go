package newsapi

import "stock_news/internal/domain"

// APIResponse is the /v2/everything response body.
type APIResponse struct {
	Status       string              `json:"status"`
	TotalResults int                 `json:"totalResults"`
	Articles     []domain.RawArticle `json:"articles"`
	Code         string              `json:"code,omitempty"`
	Message      string              `json:"message,omitempty"`
}
