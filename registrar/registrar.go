// Package registrar reconciles a pipeline's locally declared types
// against the orchestration service's registered-type catalogue,
// registering only what is missing.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/client"
)

// Registrar registers missing workflow and activity types. The check is
// read-then-conditionally-write idempotent rather than transactional:
// calling it on every process start is safe, and two processes racing to
// register the same type is benign as long as the service reports the
// duplicate via conveyor.ErrTypeAlreadyExists.
type Registrar struct {
	types  client.TypeRegistry
	logger *slog.Logger
}

// New creates a registrar. A nil logger falls back to slog.Default.
func New(types client.TypeRegistry, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{types: types, logger: logger}
}

// Register runs the activity-type and workflow-type reconciliation
// passes concurrently. The two passes touch disjoint catalogues, so no
// ordering holds between them and none may be assumed. The first
// failure cancels the sibling pass and is returned; nothing is retried
// here — the caller decides whether a failed registration aborts
// startup.
func (r *Registrar) Register(ctx context.Context, def *conveyor.Definition, stages []conveyor.Stage) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.registerActivityTypes(ctx, def.Domain(), stages) })
	g.Go(func() error { return r.registerWorkflowType(ctx, def) })
	return g.Wait()
}

// registerActivityTypes registers an activity type for every stage whose
// (activity name, stage version) pair is not already in the catalogue.
func (r *Registrar) registerActivityTypes(ctx context.Context, domain string, stages []conveyor.Stage) error {
	registered, err := r.types.ListActivityTypes(ctx, domain)
	if err != nil {
		return fmt.Errorf("list activity types in %q: %w", domain, err)
	}

	existing := make(map[client.ActivityType]struct{}, len(registered))
	for _, t := range registered {
		existing[t] = struct{}{}
	}

	for _, s := range stages {
		t := client.ActivityType{Name: s.Activity.Name, Version: s.Version}
		if _, ok := existing[t]; ok {
			continue
		}

		err := r.types.RegisterActivityType(ctx, client.RegisterActivityTypeInput{
			Domain:                 domain,
			Type:                   t,
			Description:            s.Activity.Description,
			TaskList:               s.Activity.TaskList,
			HeartbeatTimeout:       s.Activity.HeartbeatTimeout,
			ScheduleToStartTimeout: s.Activity.ScheduleToStartTimeout,
			StartToCloseTimeout:    s.Activity.StartToCloseTimeout,
			ScheduleToCloseTimeout: s.Activity.ScheduleToCloseTimeout,
		})
		if errors.Is(err, conveyor.ErrTypeAlreadyExists) {
			// Another process won the race. The type exists, which is
			// all registration is for.
			r.logger.Debug("activity type already registered",
				slog.String("name", t.Name),
				slog.String("version", t.Version),
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("register activity type %s/%s: %w", t.Name, t.Version, err)
		}

		r.logger.Info("registered activity type",
			slog.String("domain", domain),
			slog.String("name", t.Name),
			slog.String("version", t.Version),
		)
	}

	return nil
}

// registerWorkflowType registers the pipeline's workflow type, but only
// when no workflow type of that name exists at all. Unlike activity
// types, workflow types are not managed per version: any existing
// version of the name skips registration entirely.
func (r *Registrar) registerWorkflowType(ctx context.Context, def *conveyor.Definition) error {
	count, err := r.types.CountWorkflowTypes(ctx, def.Domain(), def.Name())
	if err != nil {
		return fmt.Errorf("count workflow types %q in %q: %w", def.Name(), def.Domain(), err)
	}
	if count > 0 {
		return nil
	}

	err = r.types.RegisterWorkflowType(ctx, client.RegisterWorkflowTypeInput{
		Domain:                       def.Domain(),
		Name:                         def.Name(),
		Version:                      def.Version(),
		Description:                  def.Description(),
		TaskList:                     def.TaskList(),
		TaskStartToCloseTimeout:      def.TaskStartToCloseTimeout(),
		ExecutionStartToCloseTimeout: def.ExecutionStartToCloseTimeout(),
		ChildPolicy:                  def.ChildPolicy(),
	})
	if errors.Is(err, conveyor.ErrTypeAlreadyExists) {
		r.logger.Debug("workflow type already registered",
			slog.String("name", def.Name()),
			slog.String("version", def.Version()),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("register workflow type %s/%s: %w", def.Name(), def.Version(), err)
	}

	r.logger.Info("registered workflow type",
		slog.String("domain", def.Domain()),
		slog.String("name", def.Name()),
		slog.String("version", def.Version()),
	)

	return nil
}
