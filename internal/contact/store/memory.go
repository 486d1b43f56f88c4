// Package store provides the contact persistence implementations. Both
// backends enforce the same unique constraints on the normalized email and
// the exact phone, and both report outcomes through sentinel errors.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"carnet/internal/contact/models"
	"carnet/pkg/platform/sentinel"
)

// Memory is the in-memory contact store. The secondary maps mirror the
// unique indexes the postgres store declares, so uniqueness behaves the same
// against either backend.
type Memory struct {
	mu       sync.RWMutex
	contacts map[uuid.UUID]*models.Contact
	byEmail  map[string]uuid.UUID // keyed on EmailNormalized
	byPhone  map[string]uuid.UUID // keyed on exact Phone
}

func NewMemory() *Memory {
	return &Memory{
		contacts: make(map[uuid.UUID]*models.Contact),
		byEmail:  make(map[string]uuid.UUID),
		byPhone:  make(map[string]uuid.UUID),
	}
}

// Insert adds a contact, failing with sentinel.ErrConflict if either unique
// key is already taken.
func (s *Memory) Insert(_ context.Context, c *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(c)
}

func (s *Memory) insertLocked(c *models.Contact) error {
	if _, ok := s.byEmail[c.EmailNormalized]; ok {
		return fmt.Errorf("email already in use: %w", sentinel.ErrConflict)
	}
	if _, ok := s.byPhone[c.Phone]; ok {
		return fmt.Errorf("phone already in use: %w", sentinel.ErrConflict)
	}
	cp := c.Clone()
	s.contacts[cp.ID] = cp
	s.byEmail[cp.EmailNormalized] = cp.ID
	s.byPhone[cp.Phone] = cp.ID
	return nil
}

// InsertMany adds the batch in one locked pass, skipping contacts whose keys
// are taken, and reports how many were actually inserted. Mirrors the
// postgres ON CONFLICT DO NOTHING bulk insert.
func (s *Memory) InsertMany(_ context.Context, cs []*models.Contact) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, c := range cs {
		if err := s.insertLocked(c); err != nil {
			continue
		}
		inserted++
	}
	return inserted, nil
}

// Update replaces the stored contact, re-keying the unique maps. Fails with
// sentinel.ErrConflict when another contact owns the new email/phone.
func (s *Memory) Update(_ context.Context, c *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.contacts[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, ok := s.byEmail[c.EmailNormalized]; ok && owner != c.ID {
		return fmt.Errorf("email already in use: %w", sentinel.ErrConflict)
	}
	if owner, ok := s.byPhone[c.Phone]; ok && owner != c.ID {
		return fmt.Errorf("phone already in use: %w", sentinel.ErrConflict)
	}

	delete(s.byEmail, prev.EmailNormalized)
	delete(s.byPhone, prev.Phone)
	cp := c.Clone()
	s.contacts[cp.ID] = cp
	s.byEmail[cp.EmailNormalized] = cp.ID
	s.byPhone[cp.Phone] = cp.ID
	return nil
}

func (s *Memory) FindByID(_ context.Context, id uuid.UUID) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// List returns a snapshot of every contact, in no particular order. Sorting
// and pagination belong to the query engine, not the store.
func (s *Memory) List(_ context.Context) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c.Clone())
	}
	return out, nil
}

// FindConflict returns a contact (other than excludeID) holding the given
// normalized email or exact phone, or sentinel.ErrNotFound when neither key
// is taken.
func (s *Memory) FindConflict(_ context.Context, emailNormalized, phone string, excludeID uuid.UUID) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if owner, ok := s.byEmail[emailNormalized]; ok && owner != excludeID {
		return s.contacts[owner].Clone(), nil
	}
	if owner, ok := s.byPhone[phone]; ok && owner != excludeID {
		return s.contacts[owner].Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByKeys returns every contact whose normalized email is in emails or
// whose phone is in phones. Used by the import reconciler to fetch the
// candidate conflict set in one query.
func (s *Memory) FindByKeys(_ context.Context, emails, phones []string) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	var out []*models.Contact
	for _, e := range emails {
		if owner, ok := s.byEmail[e]; ok {
			if _, dup := seen[owner]; !dup {
				seen[owner] = struct{}{}
				out = append(out, s.contacts[owner].Clone())
			}
		}
	}
	for _, p := range phones {
		if owner, ok := s.byPhone[p]; ok {
			if _, dup := seen[owner]; !dup {
				seen[owner] = struct{}{}
				out = append(out, s.contacts[owner].Clone())
			}
		}
	}
	return out, nil
}

func (s *Memory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.contacts, id)
	delete(s.byEmail, c.EmailNormalized)
	delete(s.byPhone, c.Phone)
	return nil
}

// DeleteAll removes every contact and reports how many were removed.
func (s *Memory) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.contacts)
	s.contacts = make(map[uuid.UUID]*models.Contact)
	s.byEmail = make(map[string]uuid.UUID)
	s.byPhone = make(map[string]uuid.UUID)
	return n, nil
}
