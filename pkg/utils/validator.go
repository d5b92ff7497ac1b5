package utils

import (
	"fmt"
	"regexp"
)

// ValidateTier validates a review tier number
func ValidateTier(tier int) error {
	if tier < 1 || tier > 3 {
		return fmt.Errorf("tier must be between 1 and 3: %d", tier)
	}
	return nil
}

// ValidateQuantity validates a line item quantity
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive: %d", quantity)
	}
	return nil
}

// ValidateCents validates a monetary amount in integer cents
func ValidateCents(cents int64) error {
	if cents < 0 {
		return fmt.Errorf("amount must not be negative: %d", cents)
	}
	return nil
}

// SanitizeString removes control characters from free-text input
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
