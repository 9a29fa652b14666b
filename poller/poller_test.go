package poller_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/conveyor/backoff"
	"github.com/xraph/conveyor/client"
	"github.com/xraph/conveyor/decide"
	"github.com/xraph/conveyor/history"
	"github.com/xraph/conveyor/poller"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOpts() []poller.Option {
	return []poller.Option{
		poller.WithLogger(testLogger()),
		poller.WithPollInterval(2 * time.Millisecond),
		poller.WithBackoff(backoff.NewConstant(time.Millisecond)),
	}
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

// errorCollector gathers reported errors behind a mutex.
type errorCollector struct {
	mu   sync.Mutex
	errs []error
}

func (c *errorCollector) collect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *errorCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// ──────────────────────────────────────────────────
// Decision poller
// ──────────────────────────────────────────────────

type fakeDecisionTasker struct {
	mu        sync.Mutex
	tasks     []*client.DecisionTask
	pollErrs  []error
	completed map[string]decide.Decision
}

func newFakeDecisionTasker() *fakeDecisionTasker {
	return &fakeDecisionTasker{completed: make(map[string]decide.Decision)}
}

func (f *fakeDecisionTasker) push(task *client.DecisionTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
}

func (f *fakeDecisionTasker) PollDecisionTask(_ context.Context, _, _ string) (*client.DecisionTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pollErrs) > 0 {
		err := f.pollErrs[0]
		f.pollErrs = f.pollErrs[1:]
		return nil, err
	}
	if len(f.tasks) == 0 {
		return nil, nil //nolint:nilnil // no work
	}
	task := f.tasks[0]
	f.tasks = f.tasks[1:]
	return task, nil
}

func (f *fakeDecisionTasker) CompleteDecisionTask(_ context.Context, taskToken string, d decide.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[taskToken] = d
	return nil
}

func (f *fakeDecisionTasker) decision(taskToken string) (decide.Decision, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.completed[taskToken]
	return d, ok
}

func TestDecisionPoller_DecidesAndSubmits(t *testing.T) {
	f := newFakeDecisionTasker()
	f.push(&client.DecisionTask{TaskToken: "tok-1", RunID: "run-1"})

	decideFn := func(_ []history.Event) (decide.Decision, error) {
		return decide.CompleteWorkflowExecution{}, nil
	}

	p := poller.NewDecision(f, "orders", "OrderTaskList", decideFn, nil, fastOpts()...)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	waitUntil(t, time.Second, func() bool {
		_, ok := f.decision("tok-1")
		return ok
	})

	d, _ := f.decision("tok-1")
	if _, ok := d.(decide.CompleteWorkflowExecution); !ok {
		t.Errorf("submitted decision = %T, want CompleteWorkflowExecution", d)
	}
}

func TestDecisionPoller_DecideErrorAbortsTaskOnly(t *testing.T) {
	f := newFakeDecisionTasker()
	f.push(&client.DecisionTask{TaskToken: "bad", RunID: "run-1"})
	f.push(&client.DecisionTask{TaskToken: "good", RunID: "run-2"})

	decideFn := func(events []history.Event) (decide.Decision, error) {
		if len(events) == 0 {
			return nil, errors.New("corrupt history")
		}
		return decide.CompleteWorkflowExecution{}, nil
	}
	// Only the second task carries events, so the first fails.
	f.tasks[1].Events = []history.Event{{ID: 1, Type: history.TypeWorkflowExecutionStarted}}

	var errs errorCollector
	p := poller.NewDecision(f, "orders", "OrderTaskList", decideFn, errs.collect, fastOpts()...)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	waitUntil(t, time.Second, func() bool {
		_, ok := f.decision("good")
		return ok
	})

	if _, ok := f.decision("bad"); ok {
		t.Error("failed task should not have been submitted")
	}
	if errs.count() == 0 {
		t.Error("expected the decide error to reach the observer")
	}
}

func TestDecisionPoller_PollErrorsBackOffAndContinue(t *testing.T) {
	f := newFakeDecisionTasker()
	f.mu.Lock()
	f.pollErrs = []error{errors.New("transient"), errors.New("transient")}
	f.mu.Unlock()
	f.push(&client.DecisionTask{TaskToken: "tok-1", RunID: "run-1"})

	decideFn := func(_ []history.Event) (decide.Decision, error) {
		return decide.CompleteWorkflowExecution{}, nil
	}

	var errs errorCollector
	p := poller.NewDecision(f, "orders", "OrderTaskList", decideFn, errs.collect, fastOpts()...)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	waitUntil(t, time.Second, func() bool {
		_, ok := f.decision("tok-1")
		return ok
	})

	if errs.count() != 2 {
		t.Errorf("observed %d errors, want 2", errs.count())
	}
}

func TestDecisionPoller_StopIsIdempotent(t *testing.T) {
	p := poller.NewDecision(newFakeDecisionTasker(), "orders", "OrderTaskList",
		func(_ []history.Event) (decide.Decision, error) {
			return decide.CompleteWorkflowExecution{}, nil
		}, nil, fastOpts()...)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop (again): %v", err)
	}
}

// ──────────────────────────────────────────────────
// Activity poller
// ──────────────────────────────────────────────────

type fakeActivityTasker struct {
	mu         sync.Mutex
	tasks      []*client.ActivityTask
	completed  map[string]string
	failed     map[string]string
	heartbeats map[string]int
}

func newFakeActivityTasker() *fakeActivityTasker {
	return &fakeActivityTasker{
		completed:  make(map[string]string),
		failed:     make(map[string]string),
		heartbeats: make(map[string]int),
	}
}

func (f *fakeActivityTasker) push(task *client.ActivityTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
}

func (f *fakeActivityTasker) PollActivityTask(_ context.Context, _, _ string) (*client.ActivityTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tasks) == 0 {
		return nil, nil //nolint:nilnil // no work
	}
	task := f.tasks[0]
	f.tasks = f.tasks[1:]
	return task, nil
}

func (f *fakeActivityTasker) CompleteActivityTask(_ context.Context, taskToken, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[taskToken] = result
	return nil
}

func (f *fakeActivityTasker) FailActivityTask(_ context.Context, taskToken, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[taskToken] = reason
	return nil
}

func (f *fakeActivityTasker) RecordHeartbeat(_ context.Context, taskToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats[taskToken]++
	return nil
}

func (f *fakeActivityTasker) result(taskToken string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.completed[taskToken]
	return r, ok
}

func (f *fakeActivityTasker) failure(taskToken string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.failed[taskToken]
	return r, ok
}

func (f *fakeActivityTasker) beats(taskToken string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats[taskToken]
}

func strptr(s string) *string { return &s }

func TestActivityPoller_ExecutesAndCompletes(t *testing.T) {
	f := newFakeActivityTasker()
	f.push(&client.ActivityTask{
		TaskToken:    "tok-1",
		ActivityID:   "0",
		ActivityType: client.ActivityType{Name: "Validate", Version: "Order.0"},
		Input:        strptr("order-42"),
	})

	handler := func(_ context.Context, task *client.ActivityTask) (string, error) {
		return *task.Input + ":valid", nil
	}

	p := poller.NewActivity(f, "orders", "ValidateTaskList", handler, nil, fastOpts()...)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	waitUntil(t, time.Second, func() bool {
		_, ok := f.result("tok-1")
		return ok
	})

	if got, _ := f.result("tok-1"); got != "order-42:valid" {
		t.Errorf("result = %q, want %q", got, "order-42:valid")
	}
}

func TestActivityPoller_ReportsTaskFailure(t *testing.T) {
	f := newFakeActivityTasker()
	f.push(&client.ActivityTask{
		TaskToken:    "tok-1",
		ActivityID:   "1",
		ActivityType: client.ActivityType{Name: "Charge", Version: "Order.1"},
	})

	handler := func(_ context.Context, _ *client.ActivityTask) (string, error) {
		return "", errors.New("card declined")
	}

	var errs errorCollector
	p := poller.NewActivity(f, "orders", "ChargeTaskList", handler, errs.collect, fastOpts()...)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	waitUntil(t, time.Second, func() bool {
		_, ok := f.failure("tok-1")
		return ok
	})

	if reason, _ := f.failure("tok-1"); reason != "card declined" {
		t.Errorf("failure reason = %q, want %q", reason, "card declined")
	}
	if _, ok := f.result("tok-1"); ok {
		t.Error("failed task should not have been completed")
	}
	if errs.count() == 0 {
		t.Error("expected the task error to reach the observer")
	}
}

func TestActivityPoller_SendsHeartbeats(t *testing.T) {
	f := newFakeActivityTasker()
	f.push(&client.ActivityTask{
		TaskToken:    "tok-1",
		ActivityID:   "0",
		ActivityType: client.ActivityType{Name: "Validate", Version: "Order.0"},
	})

	// A task slow enough to span several heartbeat ticks.
	handler := func(ctx context.Context, _ *client.ActivityTask) (string, error) {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "done", nil
	}

	opts := append(fastOpts(), poller.WithHeartbeatInterval(5*time.Millisecond))
	p := poller.NewActivity(f, "orders", "ValidateTaskList", handler, nil, opts...)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	waitUntil(t, time.Second, func() bool {
		_, ok := f.result("tok-1")
		return ok
	})

	if f.beats("tok-1") == 0 {
		t.Error("expected at least one heartbeat during the slow task")
	}
}
