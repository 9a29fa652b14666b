// Package local provides a fully in-process implementation of
// client.Client. Safe for concurrent access. Intended for unit testing
// and development: it keeps type catalogues, execution histories, and
// task queues in memory, assigns event ids chronologically, and serves
// histories most-recent-first the way the real service would.
//
// A failed activity task appends a bare ActivityTaskFailed event and
// schedules a new decision task; replay then skips the failure and
// re-schedules the same stage, so failing tasks are retried until they
// succeed or the caller gives up.
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/client"
	"github.com/xraph/conveyor/decide"
	"github.com/xraph/conveyor/history"
	"github.com/xraph/conveyor/id"
)

// Ensure Service implements the full client contract at compile time.
var _ client.Client = (*Service)(nil)

// ExecutionState is the lifecycle state of a workflow execution.
type ExecutionState string

const (
	// ExecutionRunning means the execution has undecided work left.
	ExecutionRunning ExecutionState = "running"
	// ExecutionCompleted means a CompleteWorkflowExecution decision closed it.
	ExecutionCompleted ExecutionState = "completed"
)

// Execution is a point-in-time copy of one workflow execution.
type Execution struct {
	RunID           string
	Domain          string
	WorkflowName    string
	WorkflowVersion string
	State           ExecutionState
	Result          *string

	// History is chronological, oldest first.
	History []history.Event
}

// run is the mutable execution record behind Execution copies.
type run struct {
	runID       string
	domain      string
	name        string
	version     string
	taskList    string
	state       ExecutionState
	result      *string
	events      []history.Event
	nextEventID int64
}

// appendEvent assigns the next chronological event id and records the event.
func (r *run) appendEvent(e history.Event) int64 {
	r.nextEventID++
	e.ID = r.nextEventID
	r.events = append(r.events, e)
	return e.ID
}

type decisionTask struct {
	token    string
	runID    string
	domain   string
	taskList string
}

type activityTask struct {
	token            string
	runID            string
	domain           string
	taskList         string
	activityID       string
	activityType     client.ActivityType
	input            *string
	scheduledEventID int64
	startedEventID   int64
}

// Service is the in-memory orchestration service.
type Service struct {
	mu sync.Mutex

	activityTypes map[string]map[client.ActivityType]client.RegisterActivityTypeInput
	workflowTypes map[string][]client.RegisterWorkflowTypeInput

	runs map[string]*run

	decisionQueue []*decisionTask
	activityQueue []*activityTask

	// Claimed tasks awaiting their response, by task token.
	openDecisions  map[string]*decisionTask
	openActivities map[string]*activityTask

	heartbeats map[string]int
}

// New returns a new empty Service.
func New() *Service {
	return &Service{
		activityTypes:  make(map[string]map[client.ActivityType]client.RegisterActivityTypeInput),
		workflowTypes:  make(map[string][]client.RegisterWorkflowTypeInput),
		runs:           make(map[string]*run),
		openDecisions:  make(map[string]*decisionTask),
		openActivities: make(map[string]*activityTask),
		heartbeats:     make(map[string]int),
	}
}

// ──────────────────────────────────────────────────
// Type registry
// ──────────────────────────────────────────────────

// ListActivityTypes returns the activity types registered in the domain.
func (s *Service) ListActivityTypes(_ context.Context, domain string) ([]client.ActivityType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]client.ActivityType, 0, len(s.activityTypes[domain]))
	for t := range s.activityTypes[domain] {
		types = append(types, t)
	}
	return types, nil
}

// RegisterActivityType registers an activity type, failing with
// conveyor.ErrTypeAlreadyExists on a duplicate (name, version) pair.
func (s *Service) RegisterActivityType(_ context.Context, input client.RegisterActivityTypeInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain := s.activityTypes[input.Domain]
	if domain == nil {
		domain = make(map[client.ActivityType]client.RegisterActivityTypeInput)
		s.activityTypes[input.Domain] = domain
	}
	if _, exists := domain[input.Type]; exists {
		return fmt.Errorf("activity type %s/%s: %w",
			input.Type.Name, input.Type.Version, conveyor.ErrTypeAlreadyExists)
	}

	domain[input.Type] = input
	return nil
}

// CountWorkflowTypes returns how many registered workflow types in the
// domain carry the given name.
func (s *Service) CountWorkflowTypes(_ context.Context, domain, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, wt := range s.workflowTypes[domain] {
		if wt.Name == name {
			count++
		}
	}
	return count, nil
}

// RegisterWorkflowType registers a workflow type, failing with
// conveyor.ErrTypeAlreadyExists on a duplicate (name, version) pair.
func (s *Service) RegisterWorkflowType(_ context.Context, input client.RegisterWorkflowTypeInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, wt := range s.workflowTypes[input.Domain] {
		if wt.Name == input.Name && wt.Version == input.Version {
			return fmt.Errorf("workflow type %s/%s: %w",
				input.Name, input.Version, conveyor.ErrTypeAlreadyExists)
		}
	}

	s.workflowTypes[input.Domain] = append(s.workflowTypes[input.Domain], input)
	return nil
}

// ──────────────────────────────────────────────────
// Executions
// ──────────────────────────────────────────────────

// StartWorkflowExecution opens a new execution of a registered workflow
// type, records its WorkflowExecutionStarted event, and schedules the
// first decision task. Returns the run id.
func (s *Service) StartWorkflowExecution(_ context.Context, domain, name, version string, input *string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var registered *client.RegisterWorkflowTypeInput
	for i := range s.workflowTypes[domain] {
		wt := &s.workflowTypes[domain][i]
		if wt.Name == name && wt.Version == version {
			registered = wt
			break
		}
	}
	if registered == nil {
		return "", fmt.Errorf("local: workflow type %s/%s not registered in %q", name, version, domain)
	}

	r := &run{
		runID:    id.NewRunID().String(),
		domain:   domain,
		name:     name,
		version:  version,
		taskList: registered.TaskList,
		state:    ExecutionRunning,
	}
	r.appendEvent(history.Event{
		Type:                     history.TypeWorkflowExecutionStarted,
		WorkflowExecutionStarted: &history.WorkflowExecutionStartedAttributes{Input: input},
	})
	s.runs[r.runID] = r

	s.enqueueDecisionTask(r)
	return r.runID, nil
}

// GetExecution returns a copy of the execution's current state and
// chronological history.
func (s *Service) GetExecution(_ context.Context, runID string) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("local: run %q not found", runID)
	}

	events := make([]history.Event, len(r.events))
	copy(events, r.events)

	return &Execution{
		RunID:           r.runID,
		Domain:          r.domain,
		WorkflowName:    r.name,
		WorkflowVersion: r.version,
		State:           r.state,
		Result:          r.result,
		History:         events,
	}, nil
}

// enqueueDecisionTask schedules a decision task for the run.
// Caller holds s.mu.
func (s *Service) enqueueDecisionTask(r *run) {
	r.appendEvent(history.Event{Type: history.TypeDecisionTaskScheduled})
	s.decisionQueue = append(s.decisionQueue, &decisionTask{
		token:    id.NewDecisionTaskID().String(),
		runID:    r.runID,
		domain:   r.domain,
		taskList: r.taskList,
	})
}

// ──────────────────────────────────────────────────
// Decision tasks
// ──────────────────────────────────────────────────

// PollDecisionTask claims the next decision task on the task list, or
// returns nil when none is queued. The task's events are a copy of the
// run's history, most-recent-first.
func (s *Service) PollDecisionTask(_ context.Context, domain, taskList string) (*client.DecisionTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, dt := range s.decisionQueue {
		if dt.domain != domain || dt.taskList != taskList {
			continue
		}
		s.decisionQueue = append(s.decisionQueue[:i], s.decisionQueue[i+1:]...)
		s.openDecisions[dt.token] = dt

		r := s.runs[dt.runID]
		return &client.DecisionTask{
			TaskToken: dt.token,
			RunID:     dt.runID,
			Events:    reversed(r.events),
		}, nil
	}

	return nil, nil //nolint:nilnil // nil task is the "no work" signal
}

// CompleteDecisionTask applies a submitted decision to the run's history.
func (s *Service) CompleteDecisionTask(_ context.Context, taskToken string, decision decide.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt, ok := s.openDecisions[taskToken]
	if !ok {
		return fmt.Errorf("local: unknown decision task token %q", taskToken)
	}
	delete(s.openDecisions, taskToken)

	r := s.runs[dt.runID]
	r.appendEvent(history.Event{Type: history.TypeDecisionTaskCompleted})

	switch d := decision.(type) {
	case decide.ScheduleActivityTask:
		scheduledID := r.appendEvent(history.Event{
			Type: history.TypeActivityTaskScheduled,
			ActivityTaskScheduled: &history.ActivityTaskScheduledAttributes{
				ActivityID:      d.ActivityID,
				ActivityName:    d.ActivityName,
				ActivityVersion: d.ActivityVersion,
				TaskList:        d.TaskList,
				Input:           d.Input,
			},
		})
		s.activityQueue = append(s.activityQueue, &activityTask{
			token:            id.NewActivityTaskID().String(),
			runID:            r.runID,
			domain:           r.domain,
			taskList:         d.TaskList,
			activityID:       d.ActivityID,
			activityType:     client.ActivityType{Name: d.ActivityName, Version: d.ActivityVersion},
			input:            d.Input,
			scheduledEventID: scheduledID,
		})

	case decide.CompleteWorkflowExecution:
		r.appendEvent(history.Event{Type: history.TypeWorkflowExecutionClosed})
		r.state = ExecutionCompleted
		r.result = d.Result

	default:
		return fmt.Errorf("local: unsupported decision %T", decision)
	}

	return nil
}

// ──────────────────────────────────────────────────
// Activity tasks
// ──────────────────────────────────────────────────

// PollActivityTask claims the next activity task on the task list, or
// returns nil when none is queued.
func (s *Service) PollActivityTask(_ context.Context, domain, taskList string) (*client.ActivityTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, at := range s.activityQueue {
		if at.domain != domain || at.taskList != taskList {
			continue
		}
		s.activityQueue = append(s.activityQueue[:i], s.activityQueue[i+1:]...)

		r := s.runs[at.runID]
		at.startedEventID = r.appendEvent(history.Event{Type: history.TypeActivityTaskStarted})
		s.openActivities[at.token] = at

		return &client.ActivityTask{
			TaskToken:    at.token,
			RunID:        at.runID,
			ActivityID:   at.activityID,
			ActivityType: at.activityType,
			Input:        at.input,
		}, nil
	}

	return nil, nil //nolint:nilnil // nil task is the "no work" signal
}

// CompleteActivityTask records a successful task and schedules the next
// decision task.
func (s *Service) CompleteActivityTask(_ context.Context, taskToken, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.openActivities[taskToken]
	if !ok {
		return fmt.Errorf("local: unknown activity task token %q", taskToken)
	}
	delete(s.openActivities, taskToken)

	r := s.runs[at.runID]
	res := result
	r.appendEvent(history.Event{
		Type: history.TypeActivityTaskCompleted,
		ActivityTaskCompleted: &history.ActivityTaskCompletedAttributes{
			ScheduledEventID: at.scheduledEventID,
			StartedEventID:   at.startedEventID,
			Result:           &res,
		},
	})

	s.enqueueDecisionTask(r)
	return nil
}

// FailActivityTask records a failed task and schedules the next
// decision task. The failure event carries no attributes; replay skips
// it and re-schedules the failed stage.
func (s *Service) FailActivityTask(_ context.Context, taskToken, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.openActivities[taskToken]
	if !ok {
		return fmt.Errorf("local: unknown activity task token %q", taskToken)
	}
	delete(s.openActivities, taskToken)

	r := s.runs[at.runID]
	r.appendEvent(history.Event{Type: history.TypeActivityTaskFailed})

	s.enqueueDecisionTask(r)
	return nil
}

// RecordHeartbeat records liveness for a claimed activity task.
func (s *Service) RecordHeartbeat(_ context.Context, taskToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.openActivities[taskToken]; !ok {
		return fmt.Errorf("local: unknown activity task token %q", taskToken)
	}
	s.heartbeats[taskToken]++
	return nil
}

// Heartbeats returns how many heartbeats were recorded for a task token.
func (s *Service) Heartbeats(taskToken string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeats[taskToken]
}

// reversed returns a most-recent-first copy of a chronological history.
func reversed(events []history.Event) []history.Event {
	out := make([]history.Event, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}
