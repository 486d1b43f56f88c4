package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "carnet/pkg/domain-errors"
	"carnet/pkg/normalize"
)

// Contact is the persisted address-book entry.
//
// Invariants:
//   - Name, Email and Phone are non-empty
//   - NameNormalized is always normalize.Fold(Name)
//   - EmailNormalized is always normalize.Fold(Email)
//   - no two persisted contacts share EmailNormalized
//   - no two persisted contacts share Phone (exact match, not normalized)
//
// The derived fields are recomputed only by NewContact and ApplyUpdate.
// Stores persist them verbatim and never touch them, so there is no hidden
// pre-save hook to keep in sync. The per-field uniqueness is enforced twice:
// a service-level pre-check for a friendly conflict response, and the store's
// own unique constraint as the source of truth under concurrent writers.
type Contact struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	NameNormalized  string    `json:"-"`
	Email           string    `json:"email"`
	EmailNormalized string    `json:"-"`
	Phone           string    `json:"phone"`
	Avatar          string    `json:"avatar,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewContact constructs a contact and computes its derived fields. Callers
// are expected to have validated email/phone syntax already; this constructor
// guards the structural invariants only.
func NewContact(id uuid.UUID, name, email, phone, avatar string, now time.Time) (*Contact, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact name cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact email cannot be empty")
	}
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact phone cannot be empty")
	}
	return &Contact{
		ID:              id,
		Name:            name,
		NameNormalized:  normalize.Fold(name),
		Email:           email,
		EmailNormalized: normalize.Fold(email),
		Phone:           phone,
		Avatar:          avatar,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// UpdateContact is the partial-update payload. Nil fields are left untouched;
// a non-nil Avatar may be the empty string to clear it.
type UpdateContact struct {
	Name   *string
	Email  *string
	Phone  *string
	Avatar *string
}

// ApplyUpdate mutates the contact in place, re-deriving normalized fields for
// any source field that changed. This is the only mutation entry point.
// Validation happens before any field is touched, so a failed update leaves
// the contact unchanged.
func (c *Contact) ApplyUpdate(upd UpdateContact, now time.Time) error {
	var name, email, phone string
	if upd.Name != nil {
		name = strings.TrimSpace(*upd.Name)
		if name == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "contact name cannot be empty")
		}
	}
	if upd.Email != nil {
		email = strings.TrimSpace(*upd.Email)
		if email == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "contact email cannot be empty")
		}
	}
	if upd.Phone != nil {
		phone = strings.TrimSpace(*upd.Phone)
		if phone == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "contact phone cannot be empty")
		}
	}

	if upd.Name != nil {
		c.Name = name
		c.NameNormalized = normalize.Fold(name)
	}
	if upd.Email != nil {
		c.Email = email
		c.EmailNormalized = normalize.Fold(email)
	}
	if upd.Phone != nil {
		c.Phone = phone
	}
	if upd.Avatar != nil {
		c.Avatar = *upd.Avatar
	}
	c.UpdatedAt = now
	return nil
}

// Clone returns a deep copy; the memory store hands out clones so callers
// cannot mutate persisted state behind its back.
func (c *Contact) Clone() *Contact {
	cp := *c
	return &cp
}

// ImportRow is one raw CSV line awaiting reconciliation. It is never stored;
// it either gets promoted to a Contact or discarded.
type ImportRow struct {
	Name   string
	Email  string
	Phone  string
	Avatar string
}
