// Package validate holds the syntactic predicates for contact fields.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// PhonePolicy selects which phone numbering shape is accepted. Exactly one
// policy is active per deployment; it is configuration, not a per-request
// choice.
type PhonePolicy string

const (
	// PhoneInternational accepts an optional leading + followed by 7 to 15
	// digits, whitespace ignored. This is the default.
	PhoneInternational PhonePolicy = "international"
	// PhoneFrench accepts French national/international numbers only:
	// +33 or a leading 0, then a digit 1-9 and 8 more digits.
	PhoneFrench PhonePolicy = "fr"
)

var (
	emailRe       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneIntlRe   = regexp.MustCompile(`^\+?\d{7,15}$`)
	phoneFrenchRe = regexp.MustCompile(`^(\+33|0)[1-9]\d{8}$`)
)

// Email reports whether s has the local@domain.tld shape: a single @,
// non-empty local part, a dot somewhere in the domain, and no whitespace.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Phone reports whether s is a well-formed phone number under the given
// policy. Internal whitespace is stripped before matching.
func Phone(s string, policy PhonePolicy) bool {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	switch policy {
	case PhoneFrench:
		return phoneFrenchRe.MatchString(s)
	default:
		return phoneIntlRe.MatchString(s)
	}
}

// ParsePhonePolicy maps a configuration value to a policy.
// An empty value selects the default international policy.
func ParsePhonePolicy(s string) (PhonePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PhoneInternational):
		return PhoneInternational, nil
	case string(PhoneFrench), "french":
		return PhoneFrench, nil
	default:
		return "", fmt.Errorf("unknown phone policy %q", s)
	}
}
