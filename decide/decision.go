package decide

import "time"

// Decision is the single next action derived from an execution history.
// It is a closed sum: ScheduleActivityTask or CompleteWorkflowExecution.
type Decision interface {
	isDecision()
}

// ScheduleActivityTask schedules the activity of one pipeline stage.
type ScheduleActivityTask struct {
	// ActivityID carries the stage id in decimal. Encoding the position
	// into the scheduled task's identifier is what makes "which stage
	// comes next" recoverable from the event log alone.
	ActivityID string

	ActivityName    string
	ActivityVersion string
	TaskList        string
	Input           *string

	// Timeouts are carried through unchanged; zero means the default
	// registered for the activity type.
	HeartbeatTimeout       time.Duration
	ScheduleToStartTimeout time.Duration
	StartToCloseTimeout    time.Duration
	ScheduleToCloseTimeout time.Duration
}

func (ScheduleActivityTask) isDecision() {}

// CompleteWorkflowExecution closes the execution. Result is the final
// stage's result, or the workflow input when the pipeline has no stages.
type CompleteWorkflowExecution struct {
	Result *string
}

func (CompleteWorkflowExecution) isDecision() {}
