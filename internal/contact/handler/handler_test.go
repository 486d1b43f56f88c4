package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carnet/internal/contact/service"
	"carnet/internal/contact/store"
	dErrors "carnet/pkg/domain-errors"
)

// failingExportService fails every export while delegating everything else.
type failingExportService struct {
	Service
}

func (failingExportService) ExportCSV(context.Context, io.Writer) error {
	return dErrors.New(dErrors.CodeInternal, "failed to list contacts for export")
}

func newContactRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(store.NewMemory())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createContact(t *testing.T, router http.Handler, name, email, phone string) uuid.UUID {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/contacts", map[string]string{
		"name": name, "email": email, "phone": phone,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "create %s: %s", name, rec.Body.String())

	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEqual(t, uuid.Nil, resp.ID)
	return resp.ID
}

func TestCreateContact(t *testing.T) {
	router := newContactRouter(t)

	t.Run("valid body returns 201 with the contact", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/contacts", map[string]string{
			"name": "Émile Zola", "email": "emile@x.com", "phone": "0611111111",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Émile Zola", resp["name"])
		assert.Equal(t, "emile@x.com", resp["email"])
		assert.NotContains(t, resp, "nameNormalized")
		assert.NotContains(t, resp, "emailNormalized")
	})

	t.Run("duplicate email returns 409", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/contacts", map[string]string{
			"name": "Imposter", "email": "EMILE@X.COM", "phone": "0622222222",
		})
		require.Equal(t, http.StatusConflict, rec.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "conflict", resp["error"])
		assert.Contains(t, resp["error_description"], "email")
	})

	t.Run("invalid email returns 400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/contacts", map[string]string{
			"name": "Bad", "email": "not-an-email", "phone": "0633333333",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "validation_error", resp["error"])
	})

	t.Run("missing name returns 400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/contacts", map[string]string{
			"email": "ok@x.com", "phone": "0644444444",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListContacts(t *testing.T) {
	router := newContactRouter(t)
	createContact(t, router, "Zoé", "zoe@x.com", "0611111111")
	createContact(t, router, "Anna", "anna@x.com", "0622222222")
	createContact(t, router, "Bob", "bob@x.com", "0633333333")

	t.Run("sorted page with envelope", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/contacts?page=1&limit=2", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data  []map[string]any `json:"data"`
			Total int              `json:"total"`
			Page  int              `json:"page"`
			Limit int              `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Data, 2)
		assert.Equal(t, "Anna", resp.Data[0]["name"])
		assert.Equal(t, "Bob", resp.Data[1]["name"])
		assert.Equal(t, 3, resp.Total)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 2, resp.Limit)
	})

	t.Run("junk paging params fall back to defaults", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/contacts?page=zero&limit=-4", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, service.DefaultPage, resp.Page)
		assert.Equal(t, service.DefaultLimit, resp.Limit)
	})

	t.Run("page past the end renders an empty array", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/contacts?page=50&limit=5", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"data":[]`)
	})
}

func TestSearchContacts(t *testing.T) {
	router := newContactRouter(t)
	createContact(t, router, "Émile Zola", "zola@x.com", "0611111111")
	createContact(t, router, "Anna", "anna@x.com", "0622222222")

	t.Run("folded query matches accented name", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/contacts/search?q=EMILE", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data  []map[string]any `json:"data"`
			Total int              `json:"total"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "Émile Zola", resp.Data[0]["name"])
		assert.Equal(t, 1, resp.Total)
	})

	t.Run("missing q yields an empty array, not the full list", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/contacts/search", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"data":[]`)
		assert.Contains(t, rec.Body.String(), `"total":0`)
	})
}

func TestUpdateContact(t *testing.T) {
	router := newContactRouter(t)
	id := createContact(t, router, "Original", "orig@x.com", "0611111111")
	createContact(t, router, "Other", "other@x.com", "0622222222")

	t.Run("partial update returns the new state", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/contacts/"+id.String(), map[string]string{
			"name": "Renamed",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Renamed", resp["name"])
		assert.Equal(t, "orig@x.com", resp["email"])
	})

	t.Run("stealing another contact's phone returns 409", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/contacts/"+id.String(), map[string]string{
			"phone": "0622222222",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/contacts/"+uuid.New().String(), map[string]string{
			"name": "Ghost",
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/contacts/not-a-uuid", map[string]string{
			"name": "X",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteContact(t *testing.T) {
	router := newContactRouter(t)
	id := createContact(t, router, "Victim", "victim@x.com", "0611111111")

	t.Run("delete returns 204 and removes the contact", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/contacts/"+id.String(), nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())

		again := doJSON(t, router, http.MethodDelete, "/contacts/"+id.String(), nil)
		require.Equal(t, http.StatusNotFound, again.Code)
	})

	t.Run("delete all reports the count", func(t *testing.T) {
		createContact(t, router, "A", "a@x.com", "0622222222")
		createContact(t, router, "B", "b@x.com", "0633333333")

		rec := doJSON(t, router, http.MethodDelete, "/contacts", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DeleteAllResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 2, resp.DeletedCount)
		assert.NotEmpty(t, resp.Message)
	})
}

func TestImportExportCSV(t *testing.T) {
	router := newContactRouter(t)

	importCSV := func(t *testing.T, csv string) *httptest.ResponseRecorder {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "contacts.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(csv))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/contacts/import-csv", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("import counts valid and rejected rows", func(t *testing.T) {
		rec := importCSV(t, "name;email;phone;avatar\n"+
			"Émile;emile@x.com;0611111111;\n"+
			"Broken;nope;0622222222;\n"+
			"Dup;emile2@x.com;0611111111;\n")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ImportResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 1, resp.Imported)
		assert.Equal(t, 2, resp.Ignored)
		assert.NotEmpty(t, resp.Message)
	})

	t.Run("missing file part returns 400", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("other", "value"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/contacts/import-csv", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "bad_request", resp["error"])
	})

	t.Run("unreadable csv returns 400", func(t *testing.T) {
		rec := importCSV(t, "name;email;phone;avatar\n\"broken;b@x.com;0633333333;\n")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("export failure returns 500 with a generic body", func(t *testing.T) {
		svc := service.New(store.NewMemory())
		h := New(failingExportService{svc}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		r := chi.NewRouter()
		h.Register(r)

		rec := doJSON(t, r, http.MethodGet, "/contacts/export-csv", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "internal_error", resp["error"])
		assert.NotContains(t, resp, "error_description")
		assert.NotEqual(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Empty(t, rec.Header().Get("Content-Disposition"))
	})

	t.Run("export is an attachment in csv format", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/contacts/export-csv", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "contacts.csv")
		assert.Contains(t, rec.Body.String(), "name;email;phone;avatar")
		assert.Contains(t, rec.Body.String(), "emile@x.com")
	})
}
