package handler

import (
	"strings"

	"carnet/internal/contact/models"
	"carnet/internal/contact/service"
	dErrors "carnet/pkg/domain-errors"
	"carnet/pkg/platform/validation"
)

// CreateContactRequest is the HTTP request body for POST /contacts.
type CreateContactRequest struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,contact_email"`
	Phone  string `json:"phone" validate:"required"`
	Avatar string `json:"avatar"`
}

// Normalize trims surrounding whitespace from every field.
func (r *CreateContactRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Avatar = strings.TrimSpace(r.Avatar)
}

// Validate enforces size limits first, then the field rules. Phone syntax is
// policy-dependent and stays with the service.
func (r *CreateContactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := checkLengths(r.Name, r.Email, r.Phone, r.Avatar); err != nil {
		return err
	}
	if fields := validation.Struct(r); fields != nil {
		return validationError(fields)
	}
	return nil
}

// ToInput converts the request into the service's create input.
func (r *CreateContactRequest) ToInput() service.CreateContact {
	return service.CreateContact{Name: r.Name, Email: r.Email, Phone: r.Phone, Avatar: r.Avatar}
}

// UpdateContactRequest is the HTTP request body for PUT /contacts/{id}.
// Absent fields keep their stored values.
type UpdateContactRequest struct {
	Name   *string `json:"name" validate:"omitempty"`
	Email  *string `json:"email" validate:"omitempty,contact_email"`
	Phone  *string `json:"phone" validate:"omitempty"`
	Avatar *string `json:"avatar"`
}

// Normalize trims surrounding whitespace from every set field.
func (r *UpdateContactRequest) Normalize() {
	if r == nil {
		return
	}
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(r.Name)
	trim(r.Email)
	trim(r.Phone)
	trim(r.Avatar)
}

// Validate enforces size limits and field rules on the set fields. An empty
// request is valid and leaves the contact untouched.
func (r *UpdateContactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	if err := checkLengths(deref(r.Name), deref(r.Email), deref(r.Phone), deref(r.Avatar)); err != nil {
		return err
	}
	if fields := validation.Struct(r); fields != nil {
		return validationError(fields)
	}
	return nil
}

// ToUpdate converts the request into the domain's partial update.
func (r *UpdateContactRequest) ToUpdate() models.UpdateContact {
	return models.UpdateContact{Name: r.Name, Email: r.Email, Phone: r.Phone, Avatar: r.Avatar}
}

func checkLengths(name, email, phone, avatar string) error {
	switch {
	case len(name) > validation.MaxNameLength:
		return dErrors.New(dErrors.CodeValidation, "name exceeds max length")
	case len(email) > validation.MaxEmailLength:
		return dErrors.New(dErrors.CodeValidation, "email exceeds max length")
	case len(phone) > validation.MaxPhoneLength:
		return dErrors.New(dErrors.CodeValidation, "phone exceeds max length")
	case len(avatar) > validation.MaxAvatarLength:
		return dErrors.New(dErrors.CodeValidation, "avatar exceeds max length")
	}
	return nil
}

// validationError picks one stable message out of the field -> failed tag map.
func validationError(fields map[string]string) error {
	for _, f := range []string{"Name", "Email", "Phone", "Avatar"} {
		tag, ok := fields[f]
		if !ok {
			continue
		}
		name := strings.ToLower(f)
		if tag == "required" {
			return dErrors.Newf(dErrors.CodeValidation, "%s is required", name)
		}
		return dErrors.Newf(dErrors.CodeValidation, "invalid %s format", name)
	}
	return dErrors.New(dErrors.CodeValidation, "invalid request")
}
