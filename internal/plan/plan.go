// Package plan implements the in-memory scheduling core for one project: an
// arena of tasks with WBS hierarchy, summary roll-ups, display ordering and
// collapse-aware visibility. A Plan is not safe for concurrent structural
// writes; hosts must serialize mutations per project.
package plan

import (
	"fmt"
	"sort"

	"github.com/ldi/optiflow/pkg/models"
)

// Plan holds the task set of a single project together with the
// host-configured status and task type enumerations. Tasks are stored by
// opaque id with parent pointers; the children index is maintained
// incrementally so child lookups do not scan the arena.
type Plan struct {
	code      string
	statuses  []string
	taskTypes []string

	tasks    map[string]*models.Task
	children map[string][]string // parent id ("" for roots) -> ordered child ids
}

// New creates an empty Plan. code is the project code used for task id
// allocation. statuses is the ordered configured status set; its first entry
// is the initial status of new tasks. taskTypes is the configured task type
// set.
func New(code string, statuses, taskTypes []string) *Plan {
	if len(statuses) == 0 {
		statuses = []string{"Not Started", "In Progress", "Completed"}
	}
	if len(taskTypes) == 0 {
		taskTypes = []string{string(models.TaskTypeTask), string(models.TaskTypeMilestone)}
	}
	return &Plan{
		code:      code,
		statuses:  statuses,
		taskTypes: taskTypes,
		tasks:     make(map[string]*models.Task),
		children:  make(map[string][]string),
	}
}

// Load builds a Plan from a persisted task set. Sibling groups are ordered by
// the stored order_index. It fails with ErrInvariant if a parent pointer
// references a missing task or the parent relation contains a cycle.
func Load(code string, statuses, taskTypes []string, tasks []*models.Task) (*Plan, error) {
	p := New(code, statuses, taskTypes)

	for _, t := range tasks {
		if _, ok := p.tasks[t.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
		p.tasks[t.ID] = t
	}

	for _, t := range tasks {
		if t.ParentID != "" {
			if _, ok := p.tasks[t.ParentID]; !ok {
				return nil, fmt.Errorf("%w: task %s references missing parent %s", ErrInvariant, t.ID, t.ParentID)
			}
		}
		p.children[t.ParentID] = append(p.children[t.ParentID], t.ID)
	}

	for parentID := range p.children {
		group := p.children[parentID]
		sort.SliceStable(group, func(i, j int) bool {
			return p.tasks[group[i]].OrderIndex < p.tasks[group[j]].OrderIndex
		})
	}

	// Every task must be reachable from a root, otherwise the parent
	// relation contains a cycle.
	reached := 0
	var walk func(parentID string)
	walk = func(parentID string) {
		for _, id := range p.children[parentID] {
			reached++
			walk(id)
		}
	}
	walk("")
	if reached != len(p.tasks) {
		return nil, fmt.Errorf("%w: parent cycle detected", ErrInvariant)
	}

	p.recompute()
	return p, nil
}

// Code returns the project code.
func (p *Plan) Code() string { return p.code }

// Len returns the number of tasks in the plan.
func (p *Plan) Len() int { return len(p.tasks) }

// Get returns the task with the given id.
func (p *Plan) Get(id string) (*models.Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// GetByCode returns the task with the given human-readable code.
func (p *Plan) GetByCode(code string) (*models.Task, error) {
	for _, t := range p.tasks {
		if t.TaskID == code {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
}

// Roots returns the top-level tasks ordered by order_index.
func (p *Plan) Roots() []*models.Task {
	return p.group("")
}

// Children returns the direct children of a task ordered by order_index.
func (p *Plan) Children(id string) ([]*models.Task, error) {
	if _, ok := p.tasks[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.group(id), nil
}

// Siblings returns the sibling group containing the task, the task included,
// ordered by order_index.
func (p *Plan) Siblings(id string) ([]*models.Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.group(t.ParentID), nil
}

func (p *Plan) group(parentID string) []*models.Task {
	ids := p.children[parentID]
	group := make([]*models.Task, len(ids))
	for i, id := range ids {
		group[i] = p.tasks[id]
	}
	return group
}

// Insert adds a task to the plan as the last child of its ParentID (or as the
// last root) and recomputes derived fields. It fails with ErrDuplicateID if
// the id is already present and ErrNotFound if the parent is missing.
func (p *Plan) Insert(t *models.Task) ([]*models.Task, error) {
	if t.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	if _, ok := p.tasks[t.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
	}
	if t.ParentID != "" {
		if _, ok := p.tasks[t.ParentID]; !ok {
			return nil, fmt.Errorf("%w: parent %s", ErrNotFound, t.ParentID)
		}
	}

	p.tasks[t.ID] = t
	p.children[t.ParentID] = append(p.children[t.ParentID], t.ID)

	changed := p.recompute()
	changed[t.ID] = t
	return p.ordered(changed), nil
}

// Remove deletes a single leaf-level record from the arena. Children of the
// removed task, if any, are reparented to its parent in place. Most callers
// want Delete (cascade) instead.
func (p *Plan) Remove(id string) ([]*models.Task, error) {
	return p.DeleteTaskPromote(id)
}

// detach unlinks a task from its sibling group without recomputing.
func (p *Plan) detach(t *models.Task) {
	group := p.children[t.ParentID]
	for i, cid := range group {
		if cid == t.ID {
			p.children[t.ParentID] = append(group[:i], group[i+1:]...)
			return
		}
	}
}

// isDescendant reports whether id is in the subtree rooted at rootID,
// the root itself included.
func (p *Plan) isDescendant(id, rootID string) bool {
	if id == rootID {
		return true
	}
	for _, cid := range p.children[rootID] {
		if p.isDescendant(id, cid) {
			return true
		}
	}
	return false
}

// ordered returns the changed set sorted by display (depth-first) order.
func (p *Plan) ordered(changed map[string]*models.Task) []*models.Task {
	var out []*models.Task
	for _, t := range p.Tasks() {
		if _, ok := changed[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Tasks returns every task in display order: a depth-first pre-order
// traversal with roots and sibling groups ordered by order_index.
func (p *Plan) Tasks() []*models.Task {
	out := make([]*models.Task, 0, len(p.tasks))
	var walk func(parentID string)
	walk = func(parentID string) {
		for _, id := range p.children[parentID] {
			out = append(out, p.tasks[id])
			walk(id)
		}
	}
	walk("")
	return out
}
