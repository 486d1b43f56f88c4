package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"carnet/internal/contact/models"
	"carnet/internal/contact/service"
	dErrors "carnet/pkg/domain-errors"
	"carnet/pkg/platform/httputil"
)

// maxImportBytes caps the multipart form kept in memory during a CSV import.
const maxImportBytes = 10 << 20

// Service defines the contact operations the HTTP layer depends on.
type Service interface {
	List(ctx context.Context, page, limit int) (*service.Page, error)
	Search(ctx context.Context, q string, page, limit int) (*service.Page, error)
	Create(ctx context.Context, req service.CreateContact) (*models.Contact, error)
	Update(ctx context.Context, id uuid.UUID, upd models.UpdateContact) (*models.Contact, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int, error)
	ImportCSV(ctx context.Context, r io.Reader) (*service.ImportSummary, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

// Handler wires contact endpoints to the contact service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a contact handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts contact endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/search", h.HandleSearch)
		r.Get("/export-csv", h.HandleExport)
		r.Post("/", h.HandleCreate)
		r.Post("/import-csv", h.HandleImport)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Delete("/", h.HandleDeleteAll)
	})
}

// HandleList handles GET /contacts requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, limit := pageParams(r)

	result, err := h.service.List(ctx, page, limit)
	if err != nil {
		h.logError(ctx, "contact list failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPage(result, page, limit))
}

// HandleSearch handles GET /contacts/search requests. An empty q yields an
// empty page, not the full list.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, limit := pageParams(r)
	q := r.URL.Query().Get("q")

	result, err := h.service.Search(ctx, q, page, limit)
	if err != nil {
		h.logError(ctx, "contact search failed", err, "query", q)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPage(result, page, limit))
}

// HandleCreate handles POST /contacts requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[CreateContactRequest](w, r, h.logger)
	if !ok {
		return
	}

	contact, err := h.service.Create(ctx, req.ToInput())
	if err != nil {
		h.logError(ctx, "contact creation failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "contact created",
		"request_id", chimw.GetReqID(ctx),
		"contact_id", contact.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, contact)
}

// HandleUpdate handles PUT /contacts/{id} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid contact id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateContactRequest](w, r, h.logger)
	if !ok {
		return
	}

	contact, err := h.service.Update(ctx, id, req.ToUpdate())
	if err != nil {
		h.logError(ctx, "contact update failed", err, "contact_id", id)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

// HandleDelete handles DELETE /contacts/{id} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid contact id"))
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		h.logError(ctx, "contact deletion failed", err, "contact_id", id)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteAll handles DELETE /contacts requests.
func (h *Handler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.service.DeleteAll(ctx)
	if err != nil {
		h.logError(ctx, "bulk contact deletion failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeleteAllResponse{
		Message:      "all contacts deleted",
		DeletedCount: n,
	})
}

// HandleImport handles POST /contacts/import-csv requests. The CSV comes as
// the "file" part of a multipart form.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no file uploaded"))
		return
	}
	defer file.Close()

	summary, err := h.service.ImportCSV(ctx, file)
	if err != nil {
		h.logError(ctx, "csv import failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "csv import finished",
		"request_id", chimw.GetReqID(ctx),
		"imported", summary.Imported,
		"ignored", summary.Ignored,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, ImportResponse{
		Message:  fmt.Sprintf("%d contacts imported, %d ignored (duplicates or invalid)", summary.Imported, summary.Ignored),
		Imported: summary.Imported,
		Ignored:  summary.Ignored,
	})
}

// HandleExport handles GET /contacts/export-csv requests. The CSV is
// rendered to a buffer first so a storage failure still yields a proper
// error response instead of a truncated 200.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var buf bytes.Buffer
	if err := h.service.ExportCSV(ctx, &buf); err != nil {
		h.logError(ctx, "csv export failed", err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="contacts.csv"`)
	_, _ = buf.WriteTo(w)
}

func pageParams(r *http.Request) (page, limit int) {
	page, limit = service.DefaultPage, service.DefaultLimit
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return page, limit
}

func (h *Handler) logError(ctx context.Context, msg string, err error, args ...any) {
	all := append([]any{"request_id", chimw.GetReqID(ctx), "error", err}, args...)
	h.logger.ErrorContext(ctx, msg, all...)
}
