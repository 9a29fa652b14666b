// Package client defines the narrow contracts conveyor needs from a
// workflow orchestration service: type registration, the decision task
// flow, and the activity task flow.
//
// Conveyor defines no wire protocol of its own; implementations adapt
// these interfaces onto whatever the service actually speaks. The local
// package provides an in-process implementation for development and
// tests.
package client

import (
	"context"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/decide"
	"github.com/xraph/conveyor/history"
)

// ActivityType identifies a registered activity type. Uniqueness is on
// the (Name, Version) pair, not the name alone.
type ActivityType struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RegisterActivityTypeInput carries one activity type registration.
// Zero timeouts are passed through as-is and mean "service default".
type RegisterActivityTypeInput struct {
	Domain      string
	Type        ActivityType
	Description string
	TaskList    string

	HeartbeatTimeout       time.Duration
	ScheduleToStartTimeout time.Duration
	StartToCloseTimeout    time.Duration
	ScheduleToCloseTimeout time.Duration
}

// RegisterWorkflowTypeInput carries one workflow type registration.
// Zero-valued optional fields mean "service default", not "unset".
type RegisterWorkflowTypeInput struct {
	Domain      string
	Name        string
	Version     string
	Description string
	TaskList    string

	TaskStartToCloseTimeout      time.Duration
	ExecutionStartToCloseTimeout time.Duration
	ChildPolicy                  conveyor.ChildPolicy
}

// DecisionTask is one decision task handed to a poller. Events are
// ordered most-recent-first, per the history package contract.
type DecisionTask struct {
	TaskToken string
	RunID     string
	Events    []history.Event
}

// ActivityTask is one activity task handed to a poller.
type ActivityTask struct {
	TaskToken    string
	RunID        string
	ActivityID   string
	ActivityType ActivityType
	Input        *string
}

// TypeRegistry is the type catalogue surface of the service.
type TypeRegistry interface {
	// ListActivityTypes returns the activity types registered and active
	// in the domain.
	ListActivityTypes(ctx context.Context, domain string) ([]ActivityType, error)

	// RegisterActivityType registers a new activity type. Registering a
	// (name, version) pair that already exists fails with an error
	// wrapping conveyor.ErrTypeAlreadyExists.
	RegisterActivityType(ctx context.Context, input RegisterActivityTypeInput) error

	// CountWorkflowTypes returns how many registered workflow types in
	// the domain carry the given name, across all versions.
	CountWorkflowTypes(ctx context.Context, domain, name string) (int, error)

	// RegisterWorkflowType registers a new workflow type. Duplicates
	// fail with an error wrapping conveyor.ErrTypeAlreadyExists.
	RegisterWorkflowType(ctx context.Context, input RegisterWorkflowTypeInput) error
}

// DecisionTasker is the decision task surface of the service.
type DecisionTasker interface {
	// PollDecisionTask returns the next decision task on the task list,
	// or nil when none became available before the poll deadline.
	PollDecisionTask(ctx context.Context, domain, taskList string) (*DecisionTask, error)

	// CompleteDecisionTask submits the decision for a polled task.
	CompleteDecisionTask(ctx context.Context, taskToken string, decision decide.Decision) error
}

// ActivityTasker is the activity task surface of the service.
type ActivityTasker interface {
	// PollActivityTask returns the next activity task on the task list,
	// or nil when none became available before the poll deadline.
	PollActivityTask(ctx context.Context, domain, taskList string) (*ActivityTask, error)

	// CompleteActivityTask reports a successful task with its result.
	CompleteActivityTask(ctx context.Context, taskToken, result string) error

	// FailActivityTask reports a failed task with a reason.
	FailActivityTask(ctx context.Context, taskToken, reason string) error

	// RecordHeartbeat records liveness for a running task.
	RecordHeartbeat(ctx context.Context, taskToken string) error
}

// Client is the full service surface the worker supervisor needs.
type Client interface {
	TypeRegistry
	DecisionTasker
	ActivityTasker
}
