package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhone is returned for numbers that cannot be parsed or are not dialable.
var ErrInvalidPhone = errors.New("invalid phone number")

// ErrPhoneNotDialable is returned for well-formed numbers that no carrier
// plan assigns. It wraps ErrInvalidPhone.
var ErrPhoneNotDialable = fmt.Errorf("%w: not assigned in any numbering plan", ErrInvalidPhone)

// NormalizePhone parses raw and formats it as E.164. Numbers without a
// leading + are interpreted in defaultRegion.
func NormalizePhone(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrPhoneNotDialable
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
