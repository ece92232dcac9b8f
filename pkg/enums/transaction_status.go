package enums

import "fmt"

// TransactionStatus tracks the lifecycle of a ledger transaction. Transitions
// are monotonic: once a transaction reaches a terminal status it never moves
// back to pending or processing.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
	TransactionStatusDisputed   TransactionStatus = "disputed"
	TransactionStatusRefunded   TransactionStatus = "refunded"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusProcessing,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusCancelled,
	TransactionStatusDisputed,
	TransactionStatusRefunded,
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted out of the
// status, except the completed→disputed/refunded audit paths.
func (t TransactionStatus) IsTerminal() bool {
	switch t {
	case TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusDisputed, TransactionStatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from t to next keeps the status
// history monotonic.
func (t TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if t == next {
		return false
	}
	switch t {
	case TransactionStatusPending:
		return next == TransactionStatusProcessing || next == TransactionStatusCompleted ||
			next == TransactionStatusFailed || next == TransactionStatusCancelled
	case TransactionStatusProcessing:
		return next == TransactionStatusCompleted || next == TransactionStatusFailed ||
			next == TransactionStatusCancelled
	case TransactionStatusCompleted:
		return next == TransactionStatusDisputed || next == TransactionStatusRefunded
	default:
		return false
	}
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
