package conveyor

import (
	"context"
	"time"
)

// Task is the unit of work executed for one pipeline stage. It receives
// the result of the previous stage (the workflow input for stage zero)
// and returns the value handed to the next stage.
type Task func(ctx context.Context, input string) (string, error)

// Activity is an immutable description of one unit of work: a name, a
// task function, timeouts, and the task list its tasks are dispatched on.
// Construct activities with NewActivity before building a pipeline; they
// are never mutated afterwards.
type Activity struct {
	Name        string
	Description string
	Task        Task

	// Timeouts are carried through to type registration and task
	// scheduling unchanged; zero means "use the service default".
	HeartbeatTimeout       time.Duration
	ScheduleToStartTimeout time.Duration
	StartToCloseTimeout    time.Duration
	ScheduleToCloseTimeout time.Duration

	TaskList string
}

// ActivityOption configures an Activity at construction time.
type ActivityOption func(*Activity)

// WithDescription sets the human-readable activity description.
func WithDescription(description string) ActivityOption {
	return func(a *Activity) { a.Description = description }
}

// WithTaskList overrides the default task list (name + "TaskList").
func WithTaskList(name string) ActivityOption {
	return func(a *Activity) { a.TaskList = name }
}

// WithHeartbeatTimeout sets the activity's heartbeat timeout.
func WithHeartbeatTimeout(d time.Duration) ActivityOption {
	return func(a *Activity) { a.HeartbeatTimeout = d }
}

// WithScheduleToStartTimeout sets the schedule-to-start timeout.
func WithScheduleToStartTimeout(d time.Duration) ActivityOption {
	return func(a *Activity) { a.ScheduleToStartTimeout = d }
}

// WithStartToCloseTimeout sets the start-to-close timeout.
func WithStartToCloseTimeout(d time.Duration) ActivityOption {
	return func(a *Activity) { a.StartToCloseTimeout = d }
}

// WithScheduleToCloseTimeout sets the schedule-to-close timeout.
func WithScheduleToCloseTimeout(d time.Duration) ActivityOption {
	return func(a *Activity) { a.ScheduleToCloseTimeout = d }
}

// NewActivity creates an activity description. The task list defaults to
// name + "TaskList" so that, absent overrides, every activity polls its
// own list.
func NewActivity(name string, task Task, opts ...ActivityOption) *Activity {
	a := &Activity{
		Name:     name,
		Task:     task,
		TaskList: name + "TaskList",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
