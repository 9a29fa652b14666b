package conveyor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ChildPolicy controls what the service does with child executions when
// an execution is terminated.
type ChildPolicy string

const (
	ChildPolicyTerminate     ChildPolicy = "TERMINATE"
	ChildPolicyRequestCancel ChildPolicy = "REQUEST_CANCEL"
	ChildPolicyAbandon       ChildPolicy = "ABANDON"
)

// Stage is one position in a pipeline: the activity scheduled at that
// position and a version string unique within the pipeline. Stages are
// derived by Definition.Stages, never hand-built.
type Stage struct {
	// ID is the stage's zero-based position in execution order.
	ID int

	// Activity is the unit of work this stage schedules.
	Activity *Activity

	// Version is "<pipelineName>.<ID>". It keeps every stage's activity
	// type version unique even when two stages reuse an activity name.
	Version string
}

// Definition is an immutable pipeline definition. Attach returns a new
// Definition rather than modifying the receiver, so a partially built
// pipeline can be shared and extended in several directions safely.
type Definition struct {
	domain      string
	name        string
	description string
	version     string
	taskList    string

	taskStartToCloseTimeout      time.Duration
	executionStartToCloseTimeout time.Duration
	childPolicy                  ChildPolicy

	// activities is kept in reverse attachment order: Attach prepends,
	// and Stages restores declaration order with a single reversal.
	activities []*Activity
}

// PipelineOption configures a Definition at construction time.
type PipelineOption func(*Definition)

// WithPipelineDescription sets the workflow type description.
func WithPipelineDescription(description string) PipelineOption {
	return func(d *Definition) { d.description = description }
}

// WithPipelineVersion overrides the default workflow type version ("1.0").
func WithPipelineVersion(version string) PipelineOption {
	return func(d *Definition) { d.version = version }
}

// WithPipelineTaskList overrides the default decision task list
// (name + "TaskList").
func WithPipelineTaskList(name string) PipelineOption {
	return func(d *Definition) { d.taskList = name }
}

// WithTaskStartToCloseTimeout sets the default decision task
// start-to-close timeout registered for the workflow type.
func WithTaskStartToCloseTimeout(d time.Duration) PipelineOption {
	return func(def *Definition) { def.taskStartToCloseTimeout = d }
}

// WithExecutionStartToCloseTimeout sets the default execution
// start-to-close timeout registered for the workflow type.
func WithExecutionStartToCloseTimeout(d time.Duration) PipelineOption {
	return func(def *Definition) { def.executionStartToCloseTimeout = d }
}

// WithChildPolicy sets the default child policy registered for the
// workflow type.
func WithChildPolicy(p ChildPolicy) PipelineOption {
	return func(d *Definition) { d.childPolicy = p }
}

// NewPipeline creates an empty pipeline definition. Domain and name must
// contain at least one non-whitespace character; violations fail with
// ErrInvalidArgument before anything touches the network.
func NewPipeline(domain, name string, opts ...PipelineOption) (*Definition, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, fmt.Errorf("%w: pipeline domain must not be empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: pipeline name must not be empty", ErrInvalidArgument)
	}

	d := &Definition{
		domain:   domain,
		name:     name,
		version:  "1.0",
		taskList: name + "TaskList",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Domain returns the orchestration domain the pipeline lives in.
func (d *Definition) Domain() string { return d.domain }

// Name returns the workflow type name.
func (d *Definition) Name() string { return d.name }

// Description returns the workflow type description.
func (d *Definition) Description() string { return d.description }

// Version returns the workflow type version.
func (d *Definition) Version() string { return d.version }

// TaskList returns the decision task list.
func (d *Definition) TaskList() string { return d.taskList }

// TaskStartToCloseTimeout returns the default decision task timeout.
// Zero means none was set.
func (d *Definition) TaskStartToCloseTimeout() time.Duration {
	return d.taskStartToCloseTimeout
}

// ExecutionStartToCloseTimeout returns the default execution timeout.
// Zero means none was set.
func (d *Definition) ExecutionStartToCloseTimeout() time.Duration {
	return d.executionStartToCloseTimeout
}

// ChildPolicy returns the default child policy. Empty means none was set.
func (d *Definition) ChildPolicy() ChildPolicy { return d.childPolicy }

// Attach returns a new Definition with the activity appended as the next
// stage in declaration order. The receiver is left untouched.
func (d *Definition) Attach(a *Activity) *Definition {
	nd := *d
	nd.activities = make([]*Activity, 0, len(d.activities)+1)
	nd.activities = append(nd.activities, a)
	nd.activities = append(nd.activities, d.activities...)
	return &nd
}

// Stages materializes the ordered stage sequence. The accumulated
// activity list is in reverse attachment order, so a single reversal
// restores declaration order; stage ids are the contiguous range
// [0, len) matching list position.
func (d *Definition) Stages() []Stage {
	stages := make([]Stage, len(d.activities))
	for i, a := range d.activities {
		id := len(d.activities) - 1 - i
		stages[id] = Stage{
			ID:       id,
			Activity: a,
			Version:  d.name + "." + strconv.Itoa(id),
		}
	}
	return stages
}
