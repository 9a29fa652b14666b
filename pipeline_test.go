package conveyor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/conveyor"
)

func noopTask(_ context.Context, input string) (string, error) { return input, nil }

func TestNewPipeline_RejectsEmptyDomainAndName(t *testing.T) {
	tests := []struct {
		desc   string
		domain string
		name   string
	}{
		{"empty domain", "", "Order"},
		{"whitespace domain", "   \t", "Order"},
		{"empty name", "orders", ""},
		{"whitespace name", "orders", "  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := conveyor.NewPipeline(tt.domain, tt.name)
			if !errors.Is(err, conveyor.ErrInvalidArgument) {
				t.Errorf("NewPipeline(%q, %q) error = %v, want ErrInvalidArgument", tt.domain, tt.name, err)
			}
		})
	}
}

func TestNewPipeline_Defaults(t *testing.T) {
	def, err := conveyor.NewPipeline("orders", "Order")
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	if got := def.TaskList(); got != "OrderTaskList" {
		t.Errorf("TaskList() = %q, want %q", got, "OrderTaskList")
	}
	if got := def.Version(); got != "1.0" {
		t.Errorf("Version() = %q, want %q", got, "1.0")
	}
	if got := def.ChildPolicy(); got != "" {
		t.Errorf("ChildPolicy() = %q, want empty", got)
	}
}

func TestNewPipeline_Options(t *testing.T) {
	def, err := conveyor.NewPipeline("orders", "Order",
		conveyor.WithPipelineDescription("order fulfilment"),
		conveyor.WithPipelineVersion("2.1"),
		conveyor.WithPipelineTaskList("order-decisions"),
		conveyor.WithTaskStartToCloseTimeout(30*time.Second),
		conveyor.WithExecutionStartToCloseTimeout(time.Hour),
		conveyor.WithChildPolicy(conveyor.ChildPolicyTerminate),
	)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	if got := def.Description(); got != "order fulfilment" {
		t.Errorf("Description() = %q", got)
	}
	if got := def.Version(); got != "2.1" {
		t.Errorf("Version() = %q", got)
	}
	if got := def.TaskList(); got != "order-decisions" {
		t.Errorf("TaskList() = %q", got)
	}
	if got := def.TaskStartToCloseTimeout(); got != 30*time.Second {
		t.Errorf("TaskStartToCloseTimeout() = %v", got)
	}
	if got := def.ExecutionStartToCloseTimeout(); got != time.Hour {
		t.Errorf("ExecutionStartToCloseTimeout() = %v", got)
	}
	if got := def.ChildPolicy(); got != conveyor.ChildPolicyTerminate {
		t.Errorf("ChildPolicy() = %q", got)
	}
}

func TestAttach_DeclarationOrderAndVersions(t *testing.T) {
	a := conveyor.NewActivity("Validate", noopTask)
	b := conveyor.NewActivity("Charge", noopTask)
	c := conveyor.NewActivity("Ship", noopTask)

	def, err := conveyor.NewPipeline("orders", "Order")
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	def = def.Attach(a).Attach(b).Attach(c)

	stages := def.Stages()
	if len(stages) != 3 {
		t.Fatalf("len(Stages()) = %d, want 3", len(stages))
	}

	want := []struct {
		name    string
		version string
	}{
		{"Validate", "Order.0"},
		{"Charge", "Order.1"},
		{"Ship", "Order.2"},
	}
	for i, w := range want {
		if stages[i].ID != i {
			t.Errorf("stages[%d].ID = %d, want %d", i, stages[i].ID, i)
		}
		if stages[i].Activity.Name != w.name {
			t.Errorf("stages[%d].Activity.Name = %q, want %q", i, stages[i].Activity.Name, w.name)
		}
		if stages[i].Version != w.version {
			t.Errorf("stages[%d].Version = %q, want %q", i, stages[i].Version, w.version)
		}
	}
}

func TestAttach_DoesNotMutateReceiver(t *testing.T) {
	a := conveyor.NewActivity("Validate", noopTask)
	b := conveyor.NewActivity("Charge", noopTask)
	c := conveyor.NewActivity("Ship", noopTask)

	base, err := conveyor.NewPipeline("orders", "Order")
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	base = base.Attach(a)

	// Extend the same base in two directions.
	withB := base.Attach(b)
	withC := base.Attach(c)

	if got := len(base.Stages()); got != 1 {
		t.Errorf("base stage count = %d, want 1", got)
	}
	if got := withB.Stages()[1].Activity.Name; got != "Charge" {
		t.Errorf("withB stage 1 = %q, want %q", got, "Charge")
	}
	if got := withC.Stages()[1].Activity.Name; got != "Ship" {
		t.Errorf("withC stage 1 = %q, want %q", got, "Ship")
	}
}

func TestStages_ReusedActivityNameGetsDistinctVersions(t *testing.T) {
	retry := conveyor.NewActivity("Notify", noopTask)

	def, err := conveyor.NewPipeline("orders", "Order")
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	def = def.Attach(retry).Attach(retry)

	stages := def.Stages()
	if stages[0].Version == stages[1].Version {
		t.Errorf("reused activity produced duplicate versions %q", stages[0].Version)
	}
}
