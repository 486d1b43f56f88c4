package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"carnet/internal/contact/csvio"
	"carnet/internal/contact/models"
	dErrors "carnet/pkg/domain-errors"
	"carnet/pkg/normalize"
	"carnet/pkg/platform/sentinel"
	"carnet/pkg/validate"
)

// ImportSummary reports the outcome of a CSV import. Imported + Ignored
// always equals the number of parsed rows.
type ImportSummary struct {
	Imported int
	Ignored  int
}

// ImportCSV parses the uploaded stream and inserts the valid, non-duplicate
// rows in one bulk write. Row-level problems are counted, never fatal; only
// an unreadable stream aborts the import, and it aborts it atomically since
// parsing happens before any write.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveImport(start)
		}
	}()

	rows, err := csvio.DecodeRows(r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable csv file")
	}

	toInsert, err := s.reconcile(ctx, rows)
	if err != nil {
		return nil, err
	}

	inserted, err := s.contacts.InsertMany(ctx, toInsert)
	if err != nil {
		// A lost race on the unique index is handled inside InsertMany;
		// anything surfacing here is a real storage failure.
		if errors.Is(err, sentinel.ErrConflict) {
			inserted = 0
		} else {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert imported contacts")
		}
	}

	summary := &ImportSummary{Imported: inserted, Ignored: len(rows) - inserted}
	s.logInfo(ctx, "csv import finished", "imported", summary.Imported, "ignored", summary.Ignored)
	if s.metrics != nil {
		s.metrics.RowsImported.Add(float64(summary.Imported))
		s.metrics.RowsIgnored.Add(float64(summary.Ignored))
		s.metrics.ContactsCreated.Add(float64(summary.Imported))
	}
	return summary, nil
}

// reconcile turns raw rows into the insert set: syntactically valid rows that
// collide neither with persisted contacts nor with earlier rows of the same
// batch (first occurrence wins).
func (s *Service) reconcile(ctx context.Context, rows []models.ImportRow) ([]*models.Contact, error) {
	type candidate struct {
		row             models.ImportRow
		emailNormalized string
	}

	var candidates []candidate
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		if !validate.Email(row.Email) || !validate.Phone(row.Phone, s.phonePolicy) {
			continue
		}
		candidates = append(candidates, candidate{row: row, emailNormalized: normalize.Fold(row.Email)})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	emails := make([]string, 0, len(candidates))
	phones := make([]string, 0, len(candidates))
	for _, c := range candidates {
		emails = append(emails, c.emailNormalized)
		phones = append(phones, c.row.Phone)
	}

	existing, err := s.contacts.FindByKeys(ctx, emails, phones)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load existing contacts")
	}
	takenEmails := make(map[string]struct{}, len(existing))
	takenPhones := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		takenEmails[c.EmailNormalized] = struct{}{}
		takenPhones[c.Phone] = struct{}{}
	}

	now := s.now()
	var toInsert []*models.Contact
	for _, c := range candidates {
		if _, taken := takenEmails[c.emailNormalized]; taken {
			continue
		}
		if _, taken := takenPhones[c.row.Phone]; taken {
			continue
		}

		contact, err := models.NewContact(uuid.New(), c.row.Name, c.row.Email, c.row.Phone, c.row.Avatar, now)
		if err != nil {
			// Already filtered above; a constructor failure here means the
			// row was blank in a way validation missed. Treat as ignored.
			continue
		}
		toInsert = append(toInsert, contact)

		// Claim the keys so later duplicates within the batch lose.
		takenEmails[c.emailNormalized] = struct{}{}
		takenPhones[c.row.Phone] = struct{}{}
	}
	return toInsert, nil
}

// ExportCSV writes every contact in normalized name order as semicolon CSV.
// Derived fields are never exported.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	all, err := s.contacts.List(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contacts for export")
	}
	sortContacts(all)

	if err := csvio.Encode(w, all, csvio.Options{BOM: s.exportBOM}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode contacts csv")
	}
	return nil
}
