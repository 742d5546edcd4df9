package enums

import "fmt"

// CheckoutStatus tracks one terminal payment attempt.
type CheckoutStatus string

const (
	CheckoutStatusPending    CheckoutStatus = "pending"
	CheckoutStatusInProgress CheckoutStatus = "in_progress"
	CheckoutStatusCompleted  CheckoutStatus = "completed"
	CheckoutStatusCanceled   CheckoutStatus = "canceled"
	CheckoutStatusFailed     CheckoutStatus = "failed"
)

var validCheckoutStatuses = []CheckoutStatus{
	CheckoutStatusPending,
	CheckoutStatusInProgress,
	CheckoutStatusCompleted,
	CheckoutStatusCanceled,
	CheckoutStatusFailed,
}

// String implements fmt.Stringer.
func (s CheckoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutStatus.
func (s CheckoutStatus) IsValid() bool {
	for _, candidate := range validCheckoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the checkout can no longer change state.
func (s CheckoutStatus) IsTerminal() bool {
	switch s {
	case CheckoutStatusCompleted, CheckoutStatusCanceled, CheckoutStatusFailed:
		return true
	default:
		return false
	}
}

// IsActive reports whether the checkout still occupies the order's single
// in-flight payment slot.
func (s CheckoutStatus) IsActive() bool {
	return s == CheckoutStatusPending || s == CheckoutStatusInProgress
}

// CanTransitionTo reports whether the edge (s -> target) is allowed.
func (s CheckoutStatus) CanTransitionTo(target CheckoutStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch target {
	case CheckoutStatusInProgress:
		return s == CheckoutStatusPending
	case CheckoutStatusCompleted, CheckoutStatusCanceled, CheckoutStatusFailed:
		return s.IsActive()
	default:
		return false
	}
}

// ParseCheckoutStatus converts raw input into a CheckoutStatus.
func ParseCheckoutStatus(value string) (CheckoutStatus, error) {
	for _, candidate := range validCheckoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout status %q", value)
}
