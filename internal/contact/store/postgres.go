package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"carnet/internal/contact/models"
	"carnet/pkg/platform/sentinel"
)

// uniqueViolation is the postgres error code raised when a unique index
// rejects a write.
const uniqueViolation = "23505"

// Postgres stores contacts in a single table. The unique indexes on
// email_normalized and phone are the source of truth for uniqueness; the
// service pre-check only exists for friendlier conflict responses.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id               UUID PRIMARY KEY,
	name             TEXT NOT NULL,
	name_normalized  TEXT NOT NULL,
	email            TEXT NOT NULL,
	email_normalized TEXT NOT NULL,
	phone            TEXT NOT NULL,
	avatar           TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS contacts_email_normalized_key ON contacts (email_normalized);
CREATE UNIQUE INDEX IF NOT EXISTS contacts_phone_key ON contacts (phone);
CREATE INDEX IF NOT EXISTS contacts_name_normalized_idx ON contacts (name_normalized);
`

// EnsureSchema creates the contacts table and its indexes if missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure contacts schema: %w", err)
	}
	return nil
}

func (s *Postgres) Insert(ctx context.Context, c *models.Contact) error {
	query := `
		INSERT INTO contacts (id, name, name_normalized, email, email_normalized, phone, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.NameNormalized, c.Email, c.EmailNormalized, c.Phone, c.Avatar, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if field, ok := conflictField(err); ok {
			return fmt.Errorf("%s already in use: %w", field, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// InsertMany bulk-inserts the batch, silently skipping rows a unique index
// rejects, and reports the number of rows actually written. A concurrent
// writer racing the reconciler therefore shows up as a lower count, never as
// a failed import.
func (s *Postgres) InsertMany(ctx context.Context, cs []*models.Contact) (int, error) {
	if len(cs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO contacts (id, name, name_normalized, email, email_normalized, phone, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`
	inserted := 0
	for _, c := range cs {
		res, err := tx.ExecContext(ctx, query,
			c.ID, c.Name, c.NameNormalized, c.Email, c.EmailNormalized, c.Phone, c.Avatar, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("bulk insert contact: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("bulk insert rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk insert: %w", err)
	}
	return inserted, nil
}

func (s *Postgres) Update(ctx context.Context, c *models.Contact) error {
	query := `
		UPDATE contacts
		SET name = $2, name_normalized = $3, email = $4, email_normalized = $5,
		    phone = $6, avatar = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.NameNormalized, c.Email, c.EmailNormalized, c.Phone, c.Avatar, c.UpdatedAt,
	)
	if err != nil {
		if field, ok := conflictField(err); ok {
			return fmt.Errorf("%s already in use: %w", field, sentinel.ErrConflict)
		}
		return fmt.Errorf("update contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const contactColumns = `id, name, name_normalized, email, email_normalized, phone, avatar, created_at, updated_at`

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	c, err := scanContact(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find contact by id: %w", err)
	}
	return c, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

func (s *Postgres) FindConflict(ctx context.Context, emailNormalized, phone string, excludeID uuid.UUID) (*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE (email_normalized = $1 OR phone = $2) AND id <> $3
		ORDER BY (email_normalized = $1) DESC
		LIMIT 1
	`
	c, err := scanContact(s.db.QueryRowContext(ctx, query, emailNormalized, phone, excludeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find conflict: %w", err)
	}
	return c, nil
}

func (s *Postgres) FindByKeys(ctx context.Context, emails, phones []string) ([]*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE email_normalized = ANY($1) OR phone = ANY($2)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(emails), pq.Array(phones))
	if err != nil {
		return nil, fmt.Errorf("find contacts by keys: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts`)
	if err != nil {
		return 0, fmt.Errorf("delete all contacts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all rows affected: %w", err)
	}
	return int(n), nil
}

// conflictField maps a unique-violation error to the conflicting column.
func conflictField(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return "", false
	}
	switch pqErr.Constraint {
	case "contacts_email_normalized_key":
		return "email", true
	case "contacts_phone_key":
		return "phone", true
	default:
		return "email or phone", true
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(
		&c.ID, &c.Name, &c.NameNormalized, &c.Email, &c.EmailNormalized,
		&c.Phone, &c.Avatar, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanContacts(rows *sql.Rows) ([]*models.Contact, error) {
	var out []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}
