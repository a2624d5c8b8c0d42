package domain

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateEmail rejects anything that is not a single bare address.
func ValidateEmail(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != strings.TrimSpace(addr) {
		return fmt.Errorf("%w: invalid email address %q", ErrValidation, addr)
	}
	return nil
}

// ValidateAmount requires a strictly positive amount.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}

// Require returns a validation error naming the first empty field.
// Pairs are given as name, value, name, value...
func Require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, pairs[i])
		}
	}
	return nil
}
