package enums

import "fmt"

// PackageStatus tracks the lifecycle of one purchased credit lot.
//
// active -> consumed when creditsRemaining reaches zero, active -> expired when
// the expiry passes. A refund may flip consumed back to active; expired is
// terminal.
type PackageStatus string

const (
	PackageStatusActive   PackageStatus = "active"
	PackageStatusExpired  PackageStatus = "expired"
	PackageStatusConsumed PackageStatus = "consumed"
)

var validPackageStatuses = []PackageStatus{
	PackageStatusActive,
	PackageStatusExpired,
	PackageStatusConsumed,
}

// String implements fmt.Stringer.
func (p PackageStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PackageStatus.
func (p PackageStatus) IsValid() bool {
	for _, candidate := range validPackageStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePackageStatus converts raw input into a PackageStatus.
func ParsePackageStatus(value string) (PackageStatus, error) {
	for _, candidate := range validPackageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid package status %q", value)
}
