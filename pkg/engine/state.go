package engine

// State is a conversation's position in the turn lifecycle. Transitions:
//
//	Idle -> AwaitingThread -> ThreadReady -> Submitting -> Running
//	Running -> Completed | Failed | TimedOut
//
// Completed, Failed and TimedOut all return to ThreadReady on the next
// submission; a failed or timed-out turn never blocks resubmission.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingThread State = "awaiting_thread"
	StateThreadReady    State = "thread_ready"
	StateSubmitting     State = "submitting"
	StateRunning        State = "running"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
	StateTimedOut       State = "timed_out"
)
