package paycom

// Event is a requested state change on a transaction.
type Event int

const (
	EventPerform Event = iota
	EventCancel
	EventTimeout
)

// Transition returns the state a transaction moves to when the event is
// applied, or the protocol error that forbids it. The table is the whole
// lifecycle: Created -> Completed -> CancelledAfterComplete, or
// Created -> Cancelled. Idempotent replays never reach this function;
// callers short-circuit them on the stored snapshot.
func Transition(s State, ev Event) (State, *Error) {
	switch ev {
	case EventPerform:
		if s == StateCreated {
			return StateCompleted, nil
		}
		return s, ErrUnableToPerform
	case EventCancel:
		switch s {
		case StateCreated:
			return StateCancelled, nil
		case StateCompleted:
			return StateCancelledAfterComplete, nil
		}
		return s, ErrUnableToCancel
	case EventTimeout:
		// Only a still-pending transaction can expire.
		if s == StateCreated {
			return StateCancelled, nil
		}
		return s, ErrUnableToPerform
	}
	return s, ErrInternal
}
