package auth

import (
	"strings"

	"github.com/go-playground/validator/v10"

	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

var phoneValidate = validator.New()

// NormalizePhone trims whitespace, prefixes bare national numbers with the
// configured default prefix (Norwegian numbers are entered without +47 on
// the portal), and validates the result as E.164. Fails fast with
// ErrInvalidPhone; no network round trip happens for malformed input.
func NormalizePhone(raw, defaultPrefix string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return "", domerrors.ErrInvalidPhone
	}
	if !strings.HasPrefix(s, "+") && defaultPrefix != "" {
		s = defaultPrefix + s
	}
	if err := phoneValidate.Var(s, "e164"); err != nil {
		return "", domerrors.ErrInvalidPhone
	}
	return s, nil
}
