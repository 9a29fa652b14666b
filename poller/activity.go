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
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/middleware"
)

// TaskHandler executes one polled activity task and returns its result.
// The worker package builds handlers that dispatch to the matching
// stage's task function.
type TaskHandler func(ctx context.Context, t *client.ActivityTask) (string, error)

// Activity polls one task list for activity tasks, executes them
// through the optional middleware chain, and reports success or failure
// to the service. While a task runs, a heartbeat goroutine records
// liveness on the configured interval.
type Activity struct {
	client   client.ActivityTasker
	domain   string
	taskList string
	handler  TaskHandler
	mw       middleware.Middleware
	onError  ErrorFunc

	workerID id.WorkerID
	logger   *slog.Logger
	limiter  *rate.Limiter
	strategy backoff.Strategy

	pollInterval      time.Duration
	heartbeatInterval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewActivity creates an activity poller bound to one task list.
func NewActivity(
	c client.ActivityTasker,
	domain, taskList string,
	handler TaskHandler,
	onError ErrorFunc,
	opts ...Option,
) *Activity {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Activity{
		client:            c,
		domain:            domain,
		taskList:          taskList,
		handler:           handler,
		onError:           onError,
		workerID:          id.NewWorkerID(),
		logger:            cfg.logger,
		limiter:           rate.NewLimiter(cfg.pollRate, cfg.pollBurst),
		strategy:          cfg.strategy,
		pollInterval:      cfg.pollInterval,
		heartbeatInterval: cfg.heartbeatInterval,
		ctx:               ctx,
		cancel:            cancel,
		stopCh:            make(chan struct{}),
	}
}

// WithMiddleware sets the middleware applied around every task
// execution. Poller-level rather than a config option because the chain
// needs the task value, which config options never see.
func (p *Activity) WithMiddleware(mw middleware.Middleware) *Activity {
	p.mw = mw
	return p
}

// WorkerID returns the poller's unique worker identifier.
func (p *Activity) WorkerID() id.WorkerID { return p.workerID }

// Start launches the poll loop. It returns immediately.
func (p *Activity) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("activity poller starting",
		slog.String("worker_id", p.workerID.String()),
		slog.String("domain", p.domain),
		slog.String("task_list", p.taskList),
	)

	p.wg.Add(1)
	go p.pollLoop()

	return nil
}

// Stop signals the loop to stop and waits for it to finish, or until
// the context deadline, whichever comes first. The in-flight task, if
// any, has its context cancelled.
func (p *Activity) Stop(ctx context.Context) error {
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
		p.logger.Info("activity poller stopped", slog.String("worker_id", p.workerID.String()))
	case <-ctx.Done():
		p.logger.Warn("activity poller shutdown timed out", slog.String("worker_id", p.workerID.String()))
	}

	return nil
}

func (p *Activity) pollLoop() {
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

		task, err := p.client.PollActivityTask(p.ctx, p.domain, p.taskList)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			failures++
			p.report(fmt.Errorf("poll activity task on %q: %w", p.taskList, err))
			p.pause(p.strategy.Delay(failures))
			continue
		}
		failures = 0

		if task == nil {
			p.pause(p.pollInterval)
			continue
		}

		p.execute(task)
	}
}

// execute runs one task through the middleware chain and reports the
// outcome. Task failures are reported to the service as task failures,
// never swallowed into the poll loop's own error handling.
func (p *Activity) execute(task *client.ActivityTask) {
	hbStop := make(chan struct{})
	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.heartbeatLoop(task.TaskToken, hbStop)
	}

	handler := func(ctx context.Context) (string, error) {
		return p.handler(ctx, task)
	}

	var result string
	var err error
	if p.mw != nil {
		result, err = p.mw(p.ctx, task, handler)
	} else {
		result, err = handler(p.ctx)
	}
	close(hbStop)

	if err != nil {
		p.report(fmt.Errorf("execute activity %s (id %s): %w",
			task.ActivityType.Name, task.ActivityID, err))
		if failErr := p.client.FailActivityTask(p.ctx, task.TaskToken, err.Error()); failErr != nil {
			p.report(fmt.Errorf("fail activity task %s: %w", task.TaskToken, failErr))
		}
		return
	}

	if err := p.client.CompleteActivityTask(p.ctx, task.TaskToken, result); err != nil {
		p.report(fmt.Errorf("complete activity task %s: %w", task.TaskToken, err))
		return
	}

	p.logger.Debug("activity task completed",
		slog.String("worker_id", p.workerID.String()),
		slog.String("activity", task.ActivityType.Name),
		slog.String("task_token", task.TaskToken),
	)
}

// heartbeatLoop records liveness for one running task until the task
// finishes or the poller stops.
func (p *Activity) heartbeatLoop(taskToken string, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.client.RecordHeartbeat(p.ctx, taskToken); err != nil {
				p.logger.Warn("heartbeat failed",
					slog.String("task_token", taskToken),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (p *Activity) report(err error) {
	p.logger.Error("activity poller error",
		slog.String("worker_id", p.workerID.String()),
		slog.String("error", err.Error()),
	)
	if p.onError != nil {
		p.onError(err)
	}
}

func (p *Activity) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}
