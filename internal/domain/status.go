package domain

// LoanStatus is the lifecycle state of a loan
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusCurrent   LoanStatus = "current"
	LoanStatusOverdue   LoanStatus = "overdue"
	LoanStatusDefault   LoanStatus = "default"
	LoanStatusPaidOff   LoanStatus = "paid_off"
	LoanStatusCancelled LoanStatus = "cancelled"
)

var allStatuses = []LoanStatus{
	LoanStatusPending,
	LoanStatusCurrent,
	LoanStatusOverdue,
	LoanStatusDefault,
	LoanStatusPaidOff,
	LoanStatusCancelled,
}

// Valid reports whether s is a known status.
func (s LoanStatus) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further payments or transitions are accepted.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusPaidOff || s == LoanStatusCancelled
}

// CanTransition reports whether a loan may move from one status to another.
// Any non-terminal status may move to any other status; terminal statuses are final.
func CanTransition(from, to LoanStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.IsTerminal() || from == to {
		return false
	}
	return true
}
