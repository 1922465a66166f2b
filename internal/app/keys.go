/**
 * @description
 * This file implements PIX key handling for the transaction engine:
 * normalization, per-type validation, and resolution of RANDOM keys that
 * embed a charge payload reference.
 *
 * Key behaviors:
 * - Each key type carries its own validation func, dispatched through a
 *   lookup table. The set of types is closed.
 * - Documents and phone numbers are normalized to digits only, emails to
 *   lowercased trimmed form, before validation or lookup.
 * - RANDOM keys long enough to carry a copy-and-paste payload are scanned
 *   for the BR.GOV.BCB.PIX payload marker; the 36 characters that follow it
 *   are the embedded charge reference.
 */

package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
)

// chargeRefMarker precedes the 36-char charge reference inside a
// copy-and-paste payload. The "0136" field length pins the reference size.
const chargeRefMarker = "BR.GOV.BCB.PIX0136"

var ErrInvalidKey = errors.New("invalid destination key")

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validateCPF(key string) error {
	if len(key) != 11 {
		return fmt.Errorf("%w: CPF must have 11 digits", ErrInvalidKey)
	}
	return nil
}

func validateCNPJ(key string) error {
	if len(key) != 14 {
		return fmt.Errorf("%w: CNPJ must have 14 digits", ErrInvalidKey)
	}
	return nil
}

func validateEmail(key string) error {
	at := strings.Index(key, "@")
	if at <= 0 || at == len(key)-1 || strings.Count(key, "@") != 1 {
		return fmt.Errorf("%w: malformed email address", ErrInvalidKey)
	}
	return nil
}

func validatePhone(key string) error {
	if len(key) < 10 || len(key) > 13 {
		return fmt.Errorf("%w: phone must have 10 to 13 digits", ErrInvalidKey)
	}
	return nil
}

func validateRandom(key string) error {
	if len(key) < 8 {
		return fmt.Errorf("%w: random key too short", ErrInvalidKey)
	}
	return nil
}

// keyValidators is the closed dispatch table for key validation. An unknown
// key type is a validation failure, not a fallthrough.
var keyValidators = map[domain.KeyType]func(string) error{
	domain.KeyTypeCPF:    validateCPF,
	domain.KeyTypeCNPJ:   validateCNPJ,
	domain.KeyTypeEmail:  validateEmail,
	domain.KeyTypePhone:  validatePhone,
	domain.KeyTypeRandom: validateRandom,
}

// NormalizeKey rewrites a destination key into its canonical lookup form.
func NormalizeKey(keyType domain.KeyType, key string) string {
	switch keyType {
	case domain.KeyTypeCPF, domain.KeyTypeCNPJ, domain.KeyTypePhone:
		return digitsOnly(key)
	case domain.KeyTypeEmail:
		return strings.ToLower(strings.TrimSpace(key))
	default:
		return strings.TrimSpace(key)
	}
}

// ValidateKey checks a normalized key against its type's rules.
func ValidateKey(keyType domain.KeyType, key string) error {
	validate, ok := keyValidators[keyType]
	if !ok {
		return fmt.Errorf("%w: unknown key type %q", ErrInvalidKey, keyType)
	}
	return validate(key)
}

// ExtractChargeReference recovers the charge reference embedded in a
// copy-and-paste payload. The second return is false when the key carries no
// marker or the 36 characters after it do not parse as a UUID.
func ExtractChargeReference(key string) (uuid.UUID, bool) {
	idx := strings.Index(key, chargeRefMarker)
	if idx < 0 {
		return uuid.Nil, false
	}
	start := idx + len(chargeRefMarker)
	if len(key) < start+36 {
		return uuid.Nil, false
	}
	ref, err := uuid.Parse(key[start : start+36])
	if err != nil {
		return uuid.Nil, false
	}
	return ref, true
}
