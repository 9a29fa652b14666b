// Package history defines the read-only execution event log that the
// orchestration service supplies with each decision task.
//
// Event lists are ordered most-recent-first (reverse chronological).
// The decide package's replay depends on that ordering: the events after
// an ActivityTaskCompleted head are exactly the events at or before its
// scheduled event in chronological order.
package history

// EventType names a kind of history event. The set is open: the service
// may deliver kinds this package does not model, and replay skips them.
type EventType string

const (
	TypeWorkflowExecutionStarted EventType = "WorkflowExecutionStarted"
	TypeDecisionTaskScheduled    EventType = "DecisionTaskScheduled"
	TypeDecisionTaskStarted      EventType = "DecisionTaskStarted"
	TypeDecisionTaskCompleted    EventType = "DecisionTaskCompleted"
	TypeActivityTaskScheduled    EventType = "ActivityTaskScheduled"
	TypeActivityTaskStarted      EventType = "ActivityTaskStarted"
	TypeActivityTaskCompleted    EventType = "ActivityTaskCompleted"
	TypeActivityTaskFailed       EventType = "ActivityTaskFailed"
	TypeActivityTaskTimedOut     EventType = "ActivityTaskTimedOut"
	TypeWorkflowExecutionClosed  EventType = "WorkflowExecutionCompleted"
)

// Event is one entry in an execution history. At most one attribute
// pointer is set, and it matches Type; events of unmodeled kinds carry
// no attributes at all.
type Event struct {
	// ID is the event's position in chronological order, assigned by
	// the service. Completion events reference scheduled events by it.
	ID   int64     `json:"id"`
	Type EventType `json:"type"`

	WorkflowExecutionStarted *WorkflowExecutionStartedAttributes `json:"workflow_execution_started,omitempty"`
	ActivityTaskScheduled    *ActivityTaskScheduledAttributes    `json:"activity_task_scheduled,omitempty"`
	ActivityTaskCompleted    *ActivityTaskCompletedAttributes    `json:"activity_task_completed,omitempty"`
}

// WorkflowExecutionStartedAttributes records how an execution began.
type WorkflowExecutionStartedAttributes struct {
	Input *string `json:"input,omitempty"`
}

// ActivityTaskScheduledAttributes records a scheduled activity task.
// ActivityID carries the pipeline stage id in decimal, which is what
// lets replay recover the pipeline position from the log alone.
type ActivityTaskScheduledAttributes struct {
	ActivityID      string  `json:"activity_id"`
	ActivityName    string  `json:"activity_name"`
	ActivityVersion string  `json:"activity_version"`
	TaskList        string  `json:"task_list"`
	Input           *string `json:"input,omitempty"`
}

// ActivityTaskCompletedAttributes records a finished activity task.
type ActivityTaskCompletedAttributes struct {
	ScheduledEventID int64   `json:"scheduled_event_id"`
	StartedEventID   int64   `json:"started_event_id"`
	Result           *string `json:"result,omitempty"`
}

// Input returns the workflow input recorded on the execution's
// WorkflowExecutionStarted event, or nil when the history holds none.
// It scans the whole list and does not depend on event ordering.
func Input(events []Event) *string {
	for _, e := range events {
		if e.Type == TypeWorkflowExecutionStarted && e.WorkflowExecutionStarted != nil {
			return e.WorkflowExecutionStarted.Input
		}
	}
	return nil
}
