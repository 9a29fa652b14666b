// Package poller implements the long-running pollers that connect a
// pipeline's decider and task functions to the orchestration service.
//
// Pollers never stop on handler or transport errors: every error is
// routed to the configured ErrorFunc and the loop continues, backing
// off after consecutive poll failures.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/conveyor/backoff"
	"github.com/xraph/conveyor/client"
	"github.com/xraph/conveyor/decide"
	"github.com/xraph/conveyor/history"
	"github.com/xraph/conveyor/id"
)

// DecideFunc maps a decision task's history to the next decision.
type DecideFunc func(events []history.Event) (decide.Decision, error)

// ErrorFunc receives poller errors. The poll loop keeps running after
// reporting one; reporting is not handling.
type ErrorFunc func(err error)

// Decision polls one task list for decision tasks, invokes the decide
// function, and submits the resulting decision.
type Decision struct {
	client   client.DecisionTasker
	domain   string
	taskList string
	decide   DecideFunc
	onError  ErrorFunc

	workerID id.WorkerID
	logger   *slog.Logger
	limiter  *rate.Limiter
	strategy backoff.Strategy

	pollInterval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewDecision creates a decision poller bound to one task list.
func NewDecision(
	c client.DecisionTasker,
	domain, taskList string,
	decideFn DecideFunc,
	onError ErrorFunc,
	opts ...Option,
) *Decision {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Decision{
		client:       c,
		domain:       domain,
		taskList:     taskList,
		decide:       decideFn,
		onError:      onError,
		workerID:     id.NewWorkerID(),
		logger:       cfg.logger,
		limiter:      rate.NewLimiter(cfg.pollRate, cfg.pollBurst),
		strategy:     cfg.strategy,
		pollInterval: cfg.pollInterval,
		ctx:          ctx,
		cancel:       cancel,
		stopCh:       make(chan struct{}),
	}
}

// WorkerID returns the poller's unique worker identifier.
func (p *Decision) WorkerID() id.WorkerID { return p.workerID }

// Start launches the poll loop. It returns immediately.
func (p *Decision) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("decision poller starting",
		slog.String("worker_id", p.workerID.String()),
		slog.String("domain", p.domain),
		slog.String("task_list", p.taskList),
	)

	p.wg.Add(1)
	go p.pollLoop()

	return nil
}

// Stop signals the loop to stop and waits for it to finish, or until
// the context deadline, whichever comes first.
func (p *Decision) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("decision poller stopped", slog.String("worker_id", p.workerID.String()))
	case <-ctx.Done():
		p.logger.Warn("decision poller shutdown timed out", slog.String("worker_id", p.workerID.String()))
	}

	return nil
}

func (p *Decision) pollLoop() {
	defer p.wg.Done()

	failures := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if err := p.limiter.Wait(p.ctx); err != nil {
			return
		}

		task, err := p.client.PollDecisionTask(p.ctx, p.domain, p.taskList)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			failures++
			p.report(fmt.Errorf("poll decision task on %q: %w", p.taskList, err))
			p.pause(p.strategy.Delay(failures))
			continue
		}
		failures = 0

		if task == nil {
			p.pause(p.pollInterval)
			continue
		}

		p.handle(task)
	}
}

// handle decides one task and submits the decision. A decide error
// aborts this task only: nothing is submitted, the error goes to the
// observer, and the loop moves on — the service will redeliver the
// decision task if the history was merely truncated in flight.
func (p *Decision) handle(task *client.DecisionTask) {
	decision, err := p.decide(task.Events)
	if err != nil {
		p.report(fmt.Errorf("decide task %s: %w", task.TaskToken, err))
		return
	}

	if err := p.client.CompleteDecisionTask(p.ctx, task.TaskToken, decision); err != nil {
		p.report(fmt.Errorf("complete decision task %s: %w", task.TaskToken, err))
		return
	}

	p.logger.Debug("decision submitted",
		slog.String("worker_id", p.workerID.String()),
		slog.String("run_id", task.RunID),
		slog.String("task_token", task.TaskToken),
	)
}

func (p *Decision) report(err error) {
	p.logger.Error("decision poller error",
		slog.String("worker_id", p.workerID.String()),
		slog.String("error", err.Error()),
	)
	if p.onError != nil {
		p.onError(err)
	}
}

func (p *Decision) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}
