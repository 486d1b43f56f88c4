package contact

import (
	"log/slog"

	"carnet/internal/contact/handler"
	"carnet/internal/contact/service"
)

// Service exposes contact lifecycle, search and CSV import/export.
type Service = service.Service

// Handler wires HTTP endpoints to the contact service.
type Handler = handler.Handler

// NewService constructs the contact service on top of a store.
func NewService(contacts service.ContactStore, opts ...service.Option) *Service {
	return service.New(contacts, opts...)
}

// NewHandler constructs the HTTP handler for contact routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
