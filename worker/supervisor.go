// Package worker starts and supervises the pollers that drive a
// pipeline: one decision poller on the pipeline's task list and one
// activity poller per distinct stage task list.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/client"
	"github.com/xraph/conveyor/decide"
	"github.com/xraph/conveyor/middleware"
	"github.com/xraph/conveyor/poller"
	"github.com/xraph/conveyor/registrar"
)

// runner is the lifecycle surface shared by both poller kinds.
type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Supervisor wires a pipeline definition to an orchestration service.
// Start registers the pipeline's types, then launches the pollers.
// Poller errors are forwarded to the OnDecisionTaskError and
// OnActivityTaskError channels; the pollers themselves keep running.
type Supervisor struct {
	client client.Client
	def    *conveyor.Definition
	cfg    conveyor.Config
	logger *slog.Logger
	mw     middleware.Middleware

	decisionErrs chan error
	activityErrs chan error

	mu      sync.Mutex
	started bool
	pollers []runner
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor's logger, inherited by its pollers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConfig overrides the default Config.
func WithConfig(cfg conveyor.Config) Option {
	return func(s *Supervisor) { s.cfg = cfg }
}

// WithMiddleware sets the middleware chain applied around every
// activity task execution, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Supervisor) { s.mw = middleware.Chain(mws...) }
}

// New creates a supervisor for the pipeline definition.
func New(c client.Client, def *conveyor.Definition, opts ...Option) (*Supervisor, error) {
	if c == nil {
		return nil, conveyor.ErrNoClient
	}
	if def == nil {
		return nil, fmt.Errorf("%w: nil pipeline definition", conveyor.ErrInvalidArgument)
	}

	s := &Supervisor{
		client: c,
		def:    def,
		cfg:    conveyor.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.decisionErrs = make(chan error, s.cfg.ErrorBuffer)
	s.activityErrs = make(chan error, s.cfg.ErrorBuffer)

	return s, nil
}

// OnDecisionTaskError returns the channel decision poller errors are
// delivered on. Every error is also logged; when nobody drains the
// channel, errors beyond its capacity are dropped, not blocked on.
func (s *Supervisor) OnDecisionTaskError() <-chan error { return s.decisionErrs }

// OnActivityTaskError returns the channel activity poller errors are
// delivered on, with the same drop-when-full behavior.
func (s *Supervisor) OnActivityTaskError() <-chan error { return s.activityErrs }

// Start registers the pipeline's workflow and activity types, waits for
// both registration passes, then launches the pollers. A registration
// failure aborts startup and nothing is left running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return conveyor.ErrAlreadyStarted
	}

	stages := s.def.Stages()

	reg := registrar.New(s.client, s.logger)
	if err := reg.Register(ctx, s.def, stages); err != nil {
		return fmt.Errorf("register pipeline types: %w", err)
	}

	decider := decide.New(s.def)
	dp := poller.NewDecision(
		s.client,
		s.def.Domain(),
		s.def.TaskList(),
		decider.Decide,
		s.observe(s.decisionErrs, "decision"),
		poller.WithLogger(s.logger),
		poller.WithPollInterval(s.cfg.PollInterval),
	)

	var pollers []runner
	if err := dp.Start(ctx); err != nil {
		return fmt.Errorf("start decision poller: %w", err)
	}
	pollers = append(pollers, dp)

	// One activity poller per distinct task list. Stages sharing a task
	// list share a poller; the handler dispatches on the activity id the
	// decider stamped into the scheduled task.
	for _, taskList := range distinctTaskLists(stages) {
		ap := poller.NewActivity(
			s.client,
			s.def.Domain(),
			taskList,
			s.dispatcher(stages, taskList),
			s.observe(s.activityErrs, "activity"),
			poller.WithLogger(s.logger),
			poller.WithPollInterval(s.cfg.PollInterval),
			poller.WithHeartbeatInterval(s.heartbeatInterval(stages, taskList)),
		)
		if s.mw != nil {
			ap.WithMiddleware(s.mw)
		}
		if err := ap.Start(ctx); err != nil {
			// Partial startup is never left running.
			for _, p := range pollers {
				if stopErr := p.Stop(ctx); stopErr != nil {
					s.logger.Warn("poller stop failed", slog.String("error", stopErr.Error()))
				}
			}
			return fmt.Errorf("start activity poller for %q: %w", taskList, err)
		}
		pollers = append(pollers, ap)
	}

	s.pollers = pollers
	s.started = true
	s.logger.Info("supervisor started",
		slog.String("domain", s.def.Domain()),
		slog.String("pipeline", s.def.Name()),
		slog.Int("stages", len(stages)),
		slog.Int("pollers", len(s.pollers)),
	)

	return nil
}

// Stop stops all pollers, bounded by the configured shutdown timeout
// unless the given context carries a tighter deadline.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	if _, ok := ctx.Deadline(); !ok && s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	for _, p := range s.pollers {
		if err := p.Stop(ctx); err != nil {
			s.logger.Warn("poller stop failed", slog.String("error", err.Error()))
		}
	}
	s.pollers = nil

	s.logger.Info("supervisor stopped", slog.String("pipeline", s.def.Name()))
	return nil
}

// dispatcher builds the task handler for one task list: a lookup from
// the scheduled task's activity id back to the owning stage's task
// function.
func (s *Supervisor) dispatcher(stages []conveyor.Stage, taskList string) poller.TaskHandler {
	tasks := make(map[string]conveyor.Task)
	for _, st := range stages {
		if st.Activity.TaskList == taskList {
			tasks[strconv.Itoa(st.ID)] = st.Activity.Task
		}
	}

	return func(ctx context.Context, t *client.ActivityTask) (string, error) {
		task, ok := tasks[t.ActivityID]
		if !ok {
			return "", fmt.Errorf("no task function on %q for activity id %q", taskList, t.ActivityID)
		}
		input := ""
		if t.Input != nil {
			input = *t.Input
		}
		return task(ctx, input)
	}
}

// heartbeatInterval derives the heartbeat cadence for one task list:
// half the smallest declared heartbeat timeout among its stages, so a
// healthy task always beats the deadline, falling back to the
// configured default when no stage declares one.
func (s *Supervisor) heartbeatInterval(stages []conveyor.Stage, taskList string) time.Duration {
	interval := s.cfg.HeartbeatInterval
	for _, st := range stages {
		if st.Activity.TaskList != taskList || st.Activity.HeartbeatTimeout <= 0 {
			continue
		}
		if derived := st.Activity.HeartbeatTimeout / 2; interval <= 0 || derived < interval {
			interval = derived
		}
	}
	return interval
}

// observe builds the ErrorFunc for one poller kind: log, then deliver
// without blocking.
func (s *Supervisor) observe(ch chan error, kind string) poller.ErrorFunc {
	return func(err error) {
		select {
		case ch <- err:
		default:
			s.logger.Warn("error channel full, dropping error",
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
	}
}

// distinctTaskLists returns the stage task lists in first-seen order.
func distinctTaskLists(stages []conveyor.Stage) []string {
	seen := make(map[string]struct{}, len(stages))
	lists := make([]string, 0, len(stages))
	for _, st := range stages {
		if _, ok := seen[st.Activity.TaskList]; ok {
			continue
		}
		seen[st.Activity.TaskList] = struct{}{}
		lists = append(lists, st.Activity.TaskList)
	}
	return lists
}
