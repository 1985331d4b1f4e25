package state

// State identifies a conversation step.
type State string

// StateIdle means no conversation is in progress.
const StateIdle State = "idle"

// Manager stores the conversation state of each user.
type Manager interface {
	GetState(userID int64) State
	SetState(userID int64, st State)
	// ClearState resets the user to StateIdle.
	ClearState(userID int64)
	// InProgress reports whether the user is in any state other than StateIdle.
	InProgress(userID int64) bool
	// Len returns the number of users with an active state.
	Len() int
}
