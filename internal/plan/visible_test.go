package plan

import (
	"errors"
	"testing"
)

func visibleIDs(p *Plan) []string {
	tasks := p.VisibleTasks()
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.Description
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestVisibleTasks(t *testing.T) {
	p := testPlan(t)
	a := mustCreate(t, p, "", "A", mon, fri, 5)
	b := mustCreate(t, p, a.ID, "B", mon, wed, 3)
	mustCreate(t, p, b.ID, "B1", mon, mon, 1)
	mustCreate(t, p, a.ID, "C", wed, fri, 3)
	mustCreate(t, p, "", "D", mon, fri, 5)

	// 1. Everything expanded: full pre-order
	want := []string{"A", "B", "B1", "C", "D"}
	if got := visibleIDs(p); !equalIDs(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// 2. Collapsing B hides B1 but not B itself
	if _, err := p.ToggleExpand(b.ID); err != nil {
		t.Fatalf("Failed to toggle: %v", err)
	}
	want = []string{"A", "B", "C", "D"}
	if got := visibleIDs(p); !equalIDs(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// 3. Collapsing A hides the whole subtree, including collapsed B
	if _, err := p.ToggleExpand(a.ID); err != nil {
		t.Fatalf("Failed to toggle: %v", err)
	}
	want = []string{"A", "D"}
	if got := visibleIDs(p); !equalIDs(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// 4. Expanding A restores the prior sequence; B stays collapsed
	if _, err := p.ToggleExpand(a.ID); err != nil {
		t.Fatalf("Failed to toggle: %v", err)
	}
	want = []string{"A", "B", "C", "D"}
	if got := visibleIDs(p); !equalIDs(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// 5. Expanding B restores the full set
	if _, err := p.ToggleExpand(b.ID); err != nil {
		t.Fatalf("Failed to toggle: %v", err)
	}
	want = []string{"A", "B", "B1", "C", "D"}
	if got := visibleIDs(p); !equalIDs(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// 6. Unknown task
	if _, err := p.ToggleExpand("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestToggleExpandHasNoStructuralEffect(t *testing.T) {
	p := testPlan(t)
	a := mustCreate(t, p, "", "A", mon, fri, 5)
	b := mustCreate(t, p, a.ID, "B", mon, wed, 3)

	estimate, wbs := a.Estimate, b.WBSCode
	if _, err := p.ToggleExpand(a.ID); err != nil {
		t.Fatalf("Failed to toggle: %v", err)
	}
	if a.Estimate != estimate || b.WBSCode != wbs {
		t.Errorf("Toggle must not change derived fields")
	}
	if a.Expanded {
		t.Errorf("Expected A collapsed")
	}
}
