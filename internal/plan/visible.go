package plan

import (
	"fmt"

	"github.com/ldi/optiflow/pkg/models"
)

// VisibleTasks returns the flattened display sequence: a depth-first
// pre-order traversal of the forest that prunes the subtree below every
// collapsed task. A task is included iff none of its ancestors is collapsed.
func (p *Plan) VisibleTasks() []*models.Task {
	var out []*models.Task
	var walk func(parentID string)
	walk = func(parentID string) {
		for _, id := range p.children[parentID] {
			t := p.tasks[id]
			out = append(out, t)
			if t.Expanded {
				walk(id)
			}
		}
	}
	walk("")
	return out
}

// ToggleExpand flips the expanded flag of a task. It has no structural side
// effects beyond visibility and does not trigger re-aggregation.
func (p *Plan) ToggleExpand(id string) (*models.Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Expanded = !t.Expanded
	return t, nil
}
