package enums

import "fmt"

// MonetizationType is the catalog's monetization class for a video.
type MonetizationType string

const (
	MonetizationFree    MonetizationType = "free"
	MonetizationPremium MonetizationType = "premium"
)

var validMonetizationTypes = []MonetizationType{
	MonetizationFree,
	MonetizationPremium,
}

func (m MonetizationType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MonetizationType.
func (m MonetizationType) IsValid() bool {
	for _, candidate := range validMonetizationTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMonetizationType converts raw input into a MonetizationType.
func ParseMonetizationType(value string) (MonetizationType, error) {
	for _, candidate := range validMonetizationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid monetization type %q", value)
}
