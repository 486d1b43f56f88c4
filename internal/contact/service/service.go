package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	contactmetrics "carnet/internal/contact/metrics"
	"carnet/internal/contact/models"
	dErrors "carnet/pkg/domain-errors"
	"carnet/pkg/normalize"
	"carnet/pkg/platform/sentinel"
	"carnet/pkg/validate"
)

// ContactStore is the persistence collaborator. Implementations own storage
// and the unique constraints; the service owns derivation and the
// conflict pre-check logic around every write.
type ContactStore interface {
	Insert(ctx context.Context, c *models.Contact) error
	InsertMany(ctx context.Context, cs []*models.Contact) (int, error)
	Update(ctx context.Context, c *models.Contact) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	List(ctx context.Context) ([]*models.Contact, error)
	FindConflict(ctx context.Context, emailNormalized, phone string, excludeID uuid.UUID) (*models.Contact, error)
	FindByKeys(ctx context.Context, emails, phones []string) ([]*models.Contact, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int, error)
}

// CreateContact is the validated input for Create. Handlers build it from a
// parsed request; the service re-validates syntax so direct callers get the
// same guarantees.
type CreateContact struct {
	Name   string
	Email  string
	Phone  string
	Avatar string
}

// Page is one slice of the sorted contact set plus the full set size.
type Page struct {
	Items []*models.Contact
	Total int
}

// Service orchestrates contact lifecycle, search and import/export.
type Service struct {
	contacts    ContactStore
	logger      *slog.Logger
	metrics     *contactmetrics.Metrics
	phonePolicy validate.PhonePolicy
	now         func() time.Time
	exportBOM   bool
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *contactmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPhonePolicy selects the phone numbering rule (default international).
func WithPhonePolicy(p validate.PhonePolicy) Option {
	return func(s *Service) { s.phonePolicy = p }
}

// WithClock injects a time source for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithExportBOM controls the UTF-8 BOM prefix on CSV exports.
func WithExportBOM(enabled bool) Option {
	return func(s *Service) { s.exportBOM = enabled }
}

// New constructs a Service.
func New(contacts ContactStore, opts ...Option) *Service {
	s := &Service{
		contacts:    contacts,
		phonePolicy: validate.PhoneInternational,
		now:         time.Now,
		exportBOM:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PhonePolicy exposes the active numbering rule so the handler layer
// validates with the same one.
func (s *Service) PhonePolicy() validate.PhonePolicy {
	return s.phonePolicy
}

// List returns one page of all contacts in normalized name order plus the
// true total count. Non-positive page/limit fall back to the defaults.
func (s *Service) List(ctx context.Context, page, limit int) (*Page, error) {
	start := time.Now()
	defer s.observeList(start)

	all, err := s.contacts.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contacts")
	}
	sortContacts(all)
	page, limit = clampPage(page, limit)
	return &Page{Items: paginate(all, page, limit), Total: len(all)}, nil
}

// Search returns one page of the contacts matching q on folded name, email
// or phone. An empty query is a deliberate no-match, not "list all": the
// caller asked to filter and filtered out everything.
func (s *Service) Search(ctx context.Context, q string, page, limit int) (*Page, error) {
	start := time.Now()
	defer s.observeList(start)

	page, limit = clampPage(page, limit)
	if q == "" {
		return &Page{Items: []*models.Contact{}, Total: 0}, nil
	}

	all, err := s.contacts.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search contacts")
	}

	folded := normalize.Fold(q)
	matched := all[:0]
	for _, c := range all {
		if matchesQuery(c, folded) {
			matched = append(matched, c)
		}
	}
	sortContacts(matched)
	return &Page{Items: paginate(matched, page, limit), Total: len(matched)}, nil
}

// Get returns one contact by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	c, err := s.contacts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contact")
	}
	return c, nil
}

// Create validates the candidate, checks uniqueness, and persists. The store
// unique index backstops the pre-check: a conflicting write racing past the
// check still comes back as a conflict, never a storage fault.
func (s *Service) Create(ctx context.Context, req CreateContact) (*models.Contact, error) {
	c, err := models.NewContact(uuid.New(), req.Name, req.Email, req.Phone, req.Avatar, s.now())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.validateSyntax(c.Email, c.Phone); err != nil {
		return nil, err
	}

	if conflict, err := s.findConflict(ctx, c.EmailNormalized, c.Phone, uuid.Nil); err != nil {
		return nil, err
	} else if conflict != nil {
		return nil, conflictError(conflict, c.EmailNormalized, c.Phone)
	}

	if err := s.contacts.Insert(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email or phone already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create contact")
	}

	s.logInfo(ctx, "contact created", "contact_id", c.ID)
	if s.metrics != nil {
		s.metrics.ContactsCreated.Inc()
	}
	return c, nil
}

// Update applies a partial update, re-deriving normalized fields and
// re-checking uniqueness with the contact itself excluded.
func (s *Service) Update(ctx context.Context, id uuid.UUID, upd models.UpdateContact) (*models.Contact, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.ApplyUpdate(upd, s.now()); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.validateSyntax(c.Email, c.Phone); err != nil {
		return nil, err
	}

	if conflict, err := s.findConflict(ctx, c.EmailNormalized, c.Phone, c.ID); err != nil {
		return nil, err
	} else if conflict != nil {
		return nil, conflictError(conflict, c.EmailNormalized, c.Phone)
	}

	if err := s.contacts.Update(ctx, c); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "email or phone already in use")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update contact")
		}
	}

	s.logInfo(ctx, "contact updated", "contact_id", c.ID)
	return c, nil
}

// Delete removes one contact.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.contacts.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete contact")
	}
	s.logInfo(ctx, "contact deleted", "contact_id", id)
	if s.metrics != nil {
		s.metrics.ContactsDeleted.Inc()
	}
	return nil
}

// DeleteAll removes every contact and reports the count.
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	n, err := s.contacts.DeleteAll(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete contacts")
	}
	s.logInfo(ctx, "all contacts deleted", "count", n)
	if s.metrics != nil {
		s.metrics.ContactsDeleted.Add(float64(n))
	}
	return n, nil
}

func (s *Service) validateSyntax(email, phone string) error {
	if !validate.Email(email) {
		return dErrors.New(dErrors.CodeValidation, "invalid email format")
	}
	if !validate.Phone(phone, s.phonePolicy) {
		return dErrors.New(dErrors.CodeValidation, "invalid phone format")
	}
	return nil
}

// findConflict runs the uniqueness pre-check. A nil contact with nil error
// means no conflict.
func (s *Service) findConflict(ctx context.Context, emailNormalized, phone string, excludeID uuid.UUID) (*models.Contact, error) {
	conflict, err := s.contacts.FindConflict(ctx, emailNormalized, phone, excludeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check uniqueness")
	}
	return conflict, nil
}

// conflictError names the conflicting field when the pre-check identified it.
func conflictError(conflict *models.Contact, emailNormalized, phone string) error {
	switch {
	case conflict.EmailNormalized == emailNormalized:
		return dErrors.New(dErrors.CodeConflict, "email already in use")
	case conflict.Phone == phone:
		return dErrors.New(dErrors.CodeConflict, "phone already in use")
	default:
		return dErrors.New(dErrors.CodeConflict, "email or phone already in use")
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) observeList(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveList(start)
	}
}
