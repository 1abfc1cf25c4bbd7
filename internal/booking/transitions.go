package booking

// transitions is the whitelist of legal status edges. Any write that would
// move a booking along an edge not listed here must be refused; the store
// implementations enforce this on every conditional update.
var transitions = map[Status][]Status{
	StatusPendingApproval:     {StatusConfirmed, StatusRejected},
	StatusConfirmed:           {StatusPendingCancellation, StatusCompleted},
	StatusPendingCancellation: {StatusCancelled, StatusConfirmed},
}

// CanTransition reports whether from -> to is a legal edge. A status is never
// an edge to itself; same-status writes are field updates, not transitions,
// and the stores admit them separately.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
