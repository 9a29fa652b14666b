// Package decide derives the next pipeline decision from an execution's
// event history.
//
// Deciding is pure: the same definition and history always produce the
// same decision, no state is kept between calls, and nothing blocks.
// That determinism is what makes at-least-once redelivery of decision
// tasks safe — recomputing an already-decided point yields the decision
// the service already has.
package decide

import (
	"fmt"
	"strconv"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/history"
)

// Decider replays execution histories for one pipeline definition.
// It holds only the immutable stage sequence and is safe for concurrent
// use across independent histories.
type Decider struct {
	stages []conveyor.Stage
}

// New creates a decider for the pipeline definition. The stage sequence
// is materialized once, here.
func New(def *conveyor.Definition) *Decider {
	return &Decider{stages: def.Stages()}
}

// Decide maps an event history, ordered most-recent-first, to the next
// decision.
//
// An empty history is the execution's first decision: stage zero is
// scheduled with the workflow input. Otherwise the scan walks from the
// most recent event towards the oldest, skipping kinds it does not care
// about, until it hits an ActivityTaskCompleted. The remainder of the
// list is then searched for the ActivityTaskScheduled event the
// completion references; its activity id is the stage that just
// finished, and the stage after it is scheduled with the completion
// result. Past the last stage, the execution completes with that result.
//
// A completion whose scheduled event is missing from the remainder, or
// whose activity id is not a stage index, means the history is corrupt
// or truncated; Decide reports conveyor.ErrHistoryCorrupt rather than
// guessing a position.
func (d *Decider) Decide(events []history.Event) (Decision, error) {
	input := history.Input(events)

	for i, e := range events {
		if e.Type != history.TypeActivityTaskCompleted {
			continue
		}
		completed := e.ActivityTaskCompleted
		if completed == nil {
			return nil, fmt.Errorf("%w: completion event %d has no attributes",
				conveyor.ErrHistoryCorrupt, e.ID)
		}

		scheduled := findScheduled(events[i+1:], completed.ScheduledEventID)
		if scheduled == nil {
			return nil, fmt.Errorf("%w: completion event %d references scheduled event %d",
				conveyor.ErrHistoryCorrupt, e.ID, completed.ScheduledEventID)
		}

		stageID, err := strconv.Atoi(scheduled.ActivityID)
		if err != nil || stageID < 0 {
			return nil, fmt.Errorf("%w: scheduled event %d carries activity id %q",
				conveyor.ErrHistoryCorrupt, completed.ScheduledEventID, scheduled.ActivityID)
		}

		return d.scheduleStage(stageID+1, completed.Result), nil
	}

	return d.scheduleStage(0, input), nil
}

// findScheduled searches the remainder of a most-recent-first history
// for the ActivityTaskScheduled event with the given event id.
func findScheduled(rest []history.Event, scheduledEventID int64) *history.ActivityTaskScheduledAttributes {
	for _, e := range rest {
		if e.Type == history.TypeActivityTaskScheduled && e.ID == scheduledEventID {
			return e.ActivityTaskScheduled
		}
	}
	return nil
}

// scheduleStage builds the decision for stage n, or completes the
// execution when n is past the last stage.
func (d *Decider) scheduleStage(n int, input *string) Decision {
	if n >= len(d.stages) {
		return CompleteWorkflowExecution{Result: input}
	}

	s := d.stages[n]
	a := s.Activity
	return ScheduleActivityTask{
		ActivityID:             strconv.Itoa(s.ID),
		ActivityName:           a.Name,
		ActivityVersion:        s.Version,
		TaskList:               a.TaskList,
		Input:                  input,
		HeartbeatTimeout:       a.HeartbeatTimeout,
		ScheduleToStartTimeout: a.ScheduleToStartTimeout,
		StartToCloseTimeout:    a.StartToCloseTimeout,
		ScheduleToCloseTimeout: a.ScheduleToCloseTimeout,
	}
}
