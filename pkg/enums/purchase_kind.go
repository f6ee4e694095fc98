package enums

import (
	"fmt"
	"strings"
)

// PurchaseKind distinguishes a rental from a permanent purchase.
type PurchaseKind string

const (
	PurchaseKindRent PurchaseKind = "rent"
	PurchaseKindBuy  PurchaseKind = "buy"
)

var validPurchaseKinds = []PurchaseKind{
	PurchaseKindRent,
	PurchaseKindBuy,
}

// String implements fmt.Stringer.
func (p PurchaseKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PurchaseKind.
func (p PurchaseKind) IsValid() bool {
	for _, candidate := range validPurchaseKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePurchaseKind converts raw input into a PurchaseKind.
func ParsePurchaseKind(value string) (PurchaseKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPurchaseKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase kind %q", value)
}
