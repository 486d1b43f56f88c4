package service

import (
	"sort"
	"strings"

	"carnet/internal/contact/models"
	"carnet/pkg/normalize"
)

// Pagination defaults applied when the caller omits or mangles page/limit.
const (
	DefaultPage  = 1
	DefaultLimit = 5
)

// sortContacts orders by folded name ascending. Equal keys tie-break on the
// raw name and then the ID string so pagination stays deterministic across
// pages and backends.
func sortContacts(cs []*models.Contact) {
	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.NameNormalized != b.NameNormalized {
			return a.NameNormalized < b.NameNormalized
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.String() < b.ID.String()
	})
}

// matchesQuery reports whether the already-folded query is a substring of the
// contact's folded name, email or phone.
func matchesQuery(c *models.Contact, foldedQuery string) bool {
	return strings.Contains(c.NameNormalized, foldedQuery) ||
		strings.Contains(c.EmailNormalized, foldedQuery) ||
		strings.Contains(normalize.Fold(c.Phone), foldedQuery)
}

// clampPage substitutes defaults for non-positive values. No upper bound on
// limit; that belongs to the boundary if ever needed.
func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return page, limit
}

// paginate slices [(page-1)*limit, page*limit), clamped to the set. The
// result is never nil so JSON renders an empty array past the last page.
func paginate(cs []*models.Contact, page, limit int) []*models.Contact {
	skip := (page - 1) * limit
	if skip >= len(cs) {
		return []*models.Contact{}
	}
	end := skip + limit
	if end > len(cs) {
		end = len(cs)
	}
	return cs[skip:end]
}
