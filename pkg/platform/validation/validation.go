// Package validation wraps go-playground/validator for request structs and
// centralizes input size limits.
package validation

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"carnet/pkg/validate"
)

// Input size limits enforced at the HTTP boundary. The core never sees
// oversized fields.
const (
	MaxNameLength  = 128
	MaxEmailLength = 254
	MaxPhoneLength = 32
	// MaxAvatarLength bounds the base64-encoded avatar payload (~1.5 MiB of
	// image data). Format validation beyond size stays in the UI.
	MaxAvatarLength = 2 << 20
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Instance returns the shared validator with the contact_email rule
// registered. The phone rule is policy-dependent and checked explicitly by
// request Validate methods instead of via a tag.
func Instance() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		_ = instance.RegisterValidation("contact_email", func(fl validator.FieldLevel) bool {
			return validate.Email(fl.Field().String())
		})
	})
	return instance
}

// Struct validates v and returns a field name -> failed tag map, or nil when
// valid.
func Struct(v any) map[string]string {
	err := Instance().Struct(v)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_error": "validation_failed"}
	}
	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
