package gpu

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
)

const allFlags = QueueGraphics | QueueCompute | QueueTransfer

func TestPlanQueuesSingleGeneralistFamily(t *testing.T) {
	plan, err := PlanQueues([]QueueFamily{
		{Index: 0, Flags: allFlags, Present: true, Count: 16},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, role := range Roles {
		if plan.Family(role) != 0 {
			t.Errorf("%s family = %d, want 0", role, plan.Family(role))
		}
	}
	if got := plan.QueueFamilies(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("QueueFamilies() = %v, want [0]", got)
	}
	if got := plan.ConcurrentFamilies(); got != nil {
		t.Errorf("ConcurrentFamilies() = %v, want nil", got)
	}
}

func TestPlanQueuesDisjointFamilies(t *testing.T) {
	plan, err := PlanQueues([]QueueFamily{
		{Index: 0, Flags: QueueGraphics, Count: 1},
		{Index: 1, Flags: QueueCompute, Count: 1},
		{Index: 2, Flags: QueueTransfer, Count: 1},
		{Index: 3, Present: true, Count: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := map[Role]int{RoleGraphics: 0, RoleCompute: 1, RoleTransfer: 2, RolePresent: 3}
	for role, family := range want {
		if plan.Family(role) != family {
			t.Errorf("%s family = %d, want %d", role, plan.Family(role), family)
		}
	}
	if got := plan.QueueFamilies(); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Errorf("QueueFamilies() = %v, want [0 1 2 3]", got)
	}
	if got := plan.ConcurrentFamilies(); !reflect.DeepEqual(got, []int{3, 0}) {
		t.Errorf("ConcurrentFamilies() = %v, want [3 0]", got)
	}
}

func TestPlanQueuesPrefersSpecializedFamilies(t *testing.T) {
	// A typical discrete layout: one do-everything family, a compute+transfer
	// family and a transfer-only family.
	plan, err := PlanQueues([]QueueFamily{
		{Index: 0, Flags: allFlags, Present: true, Count: 16},
		{Index: 1, Flags: QueueTransfer, Count: 2},
		{Index: 2, Flags: QueueCompute | QueueTransfer, Present: true, Count: 8},
	})
	if err != nil {
		t.Fatal(err)
	}

	if plan.Family(RoleGraphics) != 0 {
		t.Errorf("graphics family = %d, want 0", plan.Family(RoleGraphics))
	}
	if plan.Family(RoleCompute) != 2 {
		t.Errorf("compute family = %d, want 2", plan.Family(RoleCompute))
	}
	if plan.Family(RoleTransfer) != 1 {
		t.Errorf("transfer family = %d, want 1", plan.Family(RoleTransfer))
	}
	// Family 2 scores 1 for present against family 0's 0.
	if plan.Family(RolePresent) != 2 {
		t.Errorf("present family = %d, want 2", plan.Family(RolePresent))
	}
	if got := plan.QueueFamilies(); !reflect.DeepEqual(got, []int{0, 2, 1}) {
		t.Errorf("QueueFamilies() = %v, want [0 2 1]", got)
	}
	// Present shares the compute family, so images stay exclusive.
	if got := plan.ConcurrentFamilies(); got != nil {
		t.Errorf("ConcurrentFamilies() = %v, want nil", got)
	}
	if shared, ok := plan.SharesFamily(RolePresent); !ok || shared != RoleCompute {
		t.Errorf("SharesFamily(present) = %s, %v; want compute, true", shared, ok)
	}
}

func TestPlanQueuesIgnoresFamiliesOutsideRole(t *testing.T) {
	// Video-only families carry none of our flags and would score zero on
	// every role, beating the generalist's negative scores.
	plan, err := PlanQueues([]QueueFamily{
		{Index: 0, Flags: 0, Count: 1},
		{Index: 1, Flags: allFlags, Present: true, Count: 16},
		{Index: 2, Flags: 0, Count: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, role := range Roles {
		if plan.Family(role) != 1 {
			t.Errorf("%s family = %d, want 1", role, plan.Family(role))
		}
	}
}

func TestPlanQueuesFallsBackToGraphics(t *testing.T) {
	plan, err := PlanQueues([]QueueFamily{
		{Index: 0, Flags: QueueGraphics, Present: true, Count: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	if plan.Family(RoleCompute) != 0 || plan.Family(RoleTransfer) != 0 {
		t.Errorf("compute=%d transfer=%d, want both on graphics family 0",
			plan.Family(RoleCompute), plan.Family(RoleTransfer))
	}
	if got := plan.QueueFamilies(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("QueueFamilies() = %v, want [0]", got)
	}
}

func TestPlanQueuesTiesKeepFirst(t *testing.T) {
	plan, err := PlanQueues([]QueueFamily{
		{Index: 0, Flags: QueueGraphics, Present: true},
		{Index: 1, Flags: QueueGraphics, Present: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Family(RoleGraphics) != 0 || plan.Family(RolePresent) != 0 {
		t.Errorf("plan = %s, want everything on family 0", plan)
	}
}

func TestPlanQueuesPresentOnSeparateFamilyIsConcurrent(t *testing.T) {
	plan, err := PlanQueues([]QueueFamily{
		{Index: 0, Flags: allFlags},
		{Index: 1, Present: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := plan.QueueFamilies(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("QueueFamilies() = %v, want [0 1]", got)
	}
	if got := plan.ConcurrentFamilies(); !reflect.DeepEqual(got, []int{1, 0}) {
		t.Errorf("ConcurrentFamilies() = %v, want [1 0]", got)
	}
}

func TestPlanQueuesErrors(t *testing.T) {
	tests := []struct {
		name     string
		families []QueueFamily
	}{
		{"no families", nil},
		{"no graphics", []QueueFamily{{Index: 0, Flags: QueueCompute | QueueTransfer, Present: true}}},
		{"no present", []QueueFamily{{Index: 0, Flags: allFlags}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanQueues(tt.families)
			if !errors.Is(err, ErrNoUsableQueueFamily) {
				t.Errorf("err = %v, want ErrNoUsableQueueFamily", err)
			}
		})
	}
}

func TestQueueFamiliesReturnsCopy(t *testing.T) {
	plan, err := PlanQueues([]QueueFamily{{Index: 0, Flags: allFlags, Present: true}})
	if err != nil {
		t.Fatal(err)
	}
	families := plan.QueueFamilies()
	families[0] = 42
	if plan.QueueFamilies()[0] != 0 {
		t.Error("QueueFamilies() exposes internal state")
	}
}
