package history_test

import (
	"testing"

	"github.com/xraph/conveyor/history"
)

func strptr(s string) *string { return &s }

func TestInput_FindsStartedEvent(t *testing.T) {
	events := []history.Event{
		{ID: 3, Type: history.TypeDecisionTaskStarted},
		{ID: 2, Type: history.TypeDecisionTaskScheduled},
		{ID: 1, Type: history.TypeWorkflowExecutionStarted,
			WorkflowExecutionStarted: &history.WorkflowExecutionStartedAttributes{Input: strptr("order-42")}},
	}

	got := history.Input(events)
	if got == nil || *got != "order-42" {
		t.Errorf("Input() = %v, want %q", got, "order-42")
	}
}

func TestInput_NilWhenStartedEventAbsent(t *testing.T) {
	events := []history.Event{
		{ID: 2, Type: history.TypeDecisionTaskScheduled},
		{ID: 1, Type: history.TypeActivityTaskStarted},
	}

	if got := history.Input(events); got != nil {
		t.Errorf("Input() = %v, want nil", got)
	}
}

func TestInput_NilInputPassedThrough(t *testing.T) {
	events := []history.Event{
		{ID: 1, Type: history.TypeWorkflowExecutionStarted,
			WorkflowExecutionStarted: &history.WorkflowExecutionStartedAttributes{}},
	}

	if got := history.Input(events); got != nil {
		t.Errorf("Input() = %v, want nil for execution started without input", got)
	}
}

func TestInput_EmptyHistory(t *testing.T) {
	if got := history.Input(nil); got != nil {
		t.Errorf("Input(nil) = %v, want nil", got)
	}
}
