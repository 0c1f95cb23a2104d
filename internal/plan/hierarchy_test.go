package plan

import (
	"errors"
	"testing"

	"github.com/ldi/optiflow/pkg/models"
)

func TestIndent(t *testing.T) {
	p := testPlan(t)
	a := mustCreate(t, p, "", "A", mon, fri, 5)
	b := mustCreate(t, p, "", "B", mon, fri, 5)

	// 1. Indenting the first root is a no-op
	if _, err := p.Indent(a.ID); !errors.Is(err, ErrNoOp) {
		t.Errorf("Expected ErrNoOp, got %v", err)
	}

	// 2. B becomes A's child, A becomes a summary
	affected, err := p.Indent(b.ID)
	if err != nil {
		t.Fatalf("Failed to indent: %v", err)
	}
	if b.ParentID != a.ID || b.Level != 1 || b.WBSCode != "1.1" {
		t.Errorf("Unexpected structure for B: parent=%s level=%d wbs=%s", b.ParentID, b.Level, b.WBSCode)
	}
	if !a.IsSummary || a.TaskType != models.TaskTypeSummary {
		t.Errorf("Expected A forced to Summary, got is_summary=%v type=%s", a.IsSummary, a.TaskType)
	}
	if len(affected) < 2 {
		t.Errorf("Expected A and B in affected set, got %d tasks", len(affected))
	}

	// 3. A milestone target keeps its type
	m := mustCreate(t, p, "", "M", wed, wed, 0)
	up := "Milestone"
	if _, err := p.UpdateTask(m.ID, TaskUpdate{TaskType: &up}); err != nil {
		t.Fatalf("Failed to make milestone: %v", err)
	}
	c := mustCreate(t, p, "", "C", wed, fri, 3)
	if _, err := p.Indent(c.ID); err != nil {
		t.Fatalf("Failed to indent under milestone: %v", err)
	}
	if !m.IsSummary || m.TaskType != models.TaskTypeMilestone {
		t.Errorf("Expected milestone to keep its type, got %s", m.TaskType)
	}
}

func TestOutdent(t *testing.T) {
	p := testPlan(t)
	a := mustCreate(t, p, "", "A", mon, fri, 5)
	b := mustCreate(t, p, a.ID, "B", mon, wed, 3)

	// 1. Outdenting a root is a no-op
	if _, err := p.Outdent(a.ID); !errors.Is(err, ErrNoOp) {
		t.Errorf("Expected ErrNoOp, got %v", err)
	}

	// 2. B moves next to A; A loses summary state
	if _, err := p.Outdent(b.ID); err != nil {
		t.Fatalf("Failed to outdent: %v", err)
	}
	if b.ParentID != "" || b.Level != 0 || b.OrderIndex != 1 {
		t.Errorf("Unexpected structure for B: parent=%q level=%d order=%d", b.ParentID, b.Level, b.OrderIndex)
	}
	if a.IsSummary || a.TaskType != models.TaskTypeTask {
		t.Errorf("Expected A reverted to leaf Task, got is_summary=%v type=%s", a.IsSummary, a.TaskType)
	}
	if a.WBSCode != "1" || b.WBSCode != "2" {
		t.Errorf("Unexpected WBS codes: %s, %s", a.WBSCode, b.WBSCode)
	}
}

func TestIndentOutdentRoundTrip(t *testing.T) {
	p := testPlan(t)
	mustCreate(t, p, "", "A", mon, fri, 5)
	b := mustCreate(t, p, "", "B", mon, wed, 3)
	c := mustCreate(t, p, "", "C", wed, fri, 3)

	origParent, origLevel, origOrder := b.ParentID, b.Level, b.OrderIndex

	if _, err := p.Indent(b.ID); err != nil {
		t.Fatalf("Failed to indent: %v", err)
	}
	if _, err := p.Outdent(b.ID); err != nil {
		t.Fatalf("Failed to outdent: %v", err)
	}

	if b.ParentID != origParent || b.Level != origLevel || b.OrderIndex != origOrder {
		t.Errorf("Round trip did not restore B: parent=%q level=%d order=%d", b.ParentID, b.Level, b.OrderIndex)
	}
	if c.OrderIndex != 2 {
		t.Errorf("Expected C back at index 2, got %d", c.OrderIndex)
	}
}

func TestIndentMovesSubtree(t *testing.T) {
	p := testPlan(t)
	mustCreate(t, p, "", "A", mon, fri, 5)
	b := mustCreate(t, p, "", "B", mon, fri, 5)
	c := mustCreate(t, p, b.ID, "C", mon, wed, 3)
	d := mustCreate(t, p, c.ID, "D", mon, mon, 1)

	if _, err := p.Indent(b.ID); err != nil {
		t.Fatalf("Failed to indent: %v", err)
	}

	if b.Level != 1 || c.Level != 2 || d.Level != 3 {
		t.Errorf("Expected levels 1/2/3, got %d/%d/%d", b.Level, c.Level, d.Level)
	}
	if b.WBSCode != "1.1" || c.WBSCode != "1.1.1" || d.WBSCode != "1.1.1.1" {
		t.Errorf("Unexpected WBS codes: %s, %s, %s", b.WBSCode, c.WBSCode, d.WBSCode)
	}
}

func TestReorder(t *testing.T) {
	p := testPlan(t)
	a := mustCreate(t, p, "", "A", mon, fri, 5)
	b := mustCreate(t, p, "", "B", mon, fri, 5)
	c := mustCreate(t, p, "", "C", mon, fri, 5)

	// 1. Move C to the front
	if _, err := p.Reorder(c.ID, 0, nil); err != nil {
		t.Fatalf("Failed to reorder: %v", err)
	}
	roots := p.Roots()
	if roots[0].ID != c.ID || roots[1].ID != a.ID || roots[2].ID != b.ID {
		t.Errorf("Unexpected root order after reorder")
	}
	if roots[0].WBSCode != "1" || roots[1].WBSCode != "2" || roots[2].WBSCode != "3" {
		t.Errorf("Unexpected WBS codes after reorder")
	}

	// 2. Reparent B under A at index 0
	parent := a.ID
	if _, err := p.Reorder(b.ID, 0, &parent); err != nil {
		t.Fatalf("Failed to reparent: %v", err)
	}
	if b.ParentID != a.ID || b.Level != 1 || b.WBSCode != "2.1" {
		t.Errorf("Unexpected structure for B: parent=%s level=%d wbs=%s", b.ParentID, b.Level, b.WBSCode)
	}

	// 3. Out-of-range index clamps
	if _, err := p.Reorder(c.ID, 99, nil); err != nil {
		t.Fatalf("Failed to reorder with large index: %v", err)
	}
	if c.OrderIndex != 1 {
		t.Errorf("Expected C clamped to last index 1, got %d", c.OrderIndex)
	}

	// 4. Reparenting under the own subtree is rejected
	sub := b.ID
	if _, err := p.Reorder(a.ID, 0, &sub); !errors.Is(err, ErrInvariant) {
		t.Errorf("Expected ErrInvariant for cycle, got %v", err)
	}
}

func TestDeleteCascade(t *testing.T) {
	p := testPlan(t)
	a := mustCreate(t, p, "", "A", mon, fri, 5)
	b := mustCreate(t, p, "", "B", mon, fri, 5)
	c := mustCreate(t, p, "", "C", mon, fri, 5)
	mustCreate(t, p, b.ID, "B1", mon, wed, 3)

	// Deleting the middle root removes its subtree and reindexes the rest.
	if _, err := p.Delete(b.ID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("Expected 2 tasks left, got %d", p.Len())
	}
	if a.OrderIndex != 0 || c.OrderIndex != 1 {
		t.Errorf("Expected dense reindex 0,1, got %d,%d", a.OrderIndex, c.OrderIndex)
	}
	if a.WBSCode != "1" || c.WBSCode != "2" {
		t.Errorf("Expected WBS codes 1,2, got %s,%s", a.WBSCode, c.WBSCode)
	}

	if _, err := p.Delete(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestDeletePromote(t *testing.T) {
	p := testPlan(t)
	a := mustCreate(t, p, "", "A", mon, fri, 5)
	b := mustCreate(t, p, a.ID, "B", mon, wed, 3)
	b1 := mustCreate(t, p, b.ID, "B1", mon, mon, 1)
	b2 := mustCreate(t, p, b.ID, "B2", wed, wed, 1)
	c := mustCreate(t, p, a.ID, "C", wed, fri, 3)

	// Children of B take its place among A's children.
	if _, err := p.DeleteTaskPromote(b.ID); err != nil {
		t.Fatalf("Failed to delete with promote: %v", err)
	}

	kids, _ := p.Children(a.ID)
	if len(kids) != 3 || kids[0].ID != b1.ID || kids[1].ID != b2.ID || kids[2].ID != c.ID {
		t.Errorf("Unexpected child order after promote")
	}
	if b1.Level != 1 || b2.Level != 1 {
		t.Errorf("Expected promoted children at level 1, got %d,%d", b1.Level, b2.Level)
	}
	if b1.WBSCode != "1.1" || b2.WBSCode != "1.2" || c.WBSCode != "1.3" {
		t.Errorf("Unexpected WBS codes: %s,%s,%s", b1.WBSCode, b2.WBSCode, c.WBSCode)
	}

	// Deleting the last child of a summary reverts it to a leaf Task.
	for _, id := range []string{b1.ID, b2.ID, c.ID} {
		if _, err := p.DeleteTaskPromote(id); err != nil {
			t.Fatalf("Failed to delete %s: %v", id, err)
		}
	}
	if a.IsSummary || a.TaskType != models.TaskTypeTask {
		t.Errorf("Expected A reverted to leaf, got is_summary=%v type=%s", a.IsSummary, a.TaskType)
	}
}
