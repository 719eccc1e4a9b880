package order

// State is the lifecycle state of an order
type State string

const (
	// StateUnset means no state has been derived from the payload
	StateUnset State = ""
	// StateProcessing is the default state of a live order
	StateProcessing State = "processing"
	// StateCancelled marks an order cancelled on the platform
	StateCancelled State = "cancelled"
)

// IsSet returns true if the state carries a value
func (s State) IsSet() bool {
	return s != StateUnset
}

// IsValid returns true for unset and every known state
func (s State) IsValid() bool {
	switch s {
	case StateUnset, StateProcessing, StateCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of State
func (s State) String() string {
	return string(s)
}

// StateFromSignals derives the desired state from the platform's
// cancelled_at / closed_at markers. Cancellation wins over closing;
// no marker leaves the state unset so the stored state is kept.
func StateFromSignals(cancelled, closed bool) State {
	switch {
	case cancelled:
		return StateCancelled
	case closed:
		return StateProcessing
	default:
		return StateUnset
	}
}
