package handler

import (
	"carnet/internal/contact/models"
	"carnet/internal/contact/service"
)

// ListResponse is the paged envelope for list and search. Data is always a
// JSON array, never null.
type ListResponse struct {
	Data  []*models.Contact `json:"data"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// FromPage builds the envelope from a service page and the echoed paging
// parameters.
func FromPage(p *service.Page, page, limit int) ListResponse {
	return ListResponse{Data: p.Items, Total: p.Total, Page: page, Limit: limit}
}

// ImportResponse reports the outcome of a CSV import.
type ImportResponse struct {
	Message  string `json:"message"`
	Imported int    `json:"imported"`
	Ignored  int    `json:"ignored"`
}

// DeleteAllResponse reports a bulk delete.
type DeleteAllResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deletedCount"`
}
