package plan

import (
	"fmt"

	"github.com/ldi/optiflow/pkg/models"
)

// Indent demotes a task: it becomes the last child of its immediately
// preceding sibling, which in turn becomes a summary. It fails with ErrNoOp
// when the task is the first of its sibling group.
func (p *Plan) Indent(id string) ([]*models.Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	group := p.children[t.ParentID]
	pos := indexOf(group, id)
	if pos <= 0 {
		return nil, fmt.Errorf("%w: cannot indent the first task of its group", ErrNoOp)
	}
	newParentID := group[pos-1]

	p.detach(t)
	t.ParentID = newParentID
	p.children[newParentID] = append(p.children[newParentID], id)

	changed := p.recompute()
	p.markSubtree(id, changed)
	changed[newParentID] = p.tasks[newParentID]
	return p.ordered(changed), nil
}

// Outdent promotes a task to its parent's level, positioned immediately after
// the former parent. It fails with ErrNoOp for root-level tasks.
func (p *Plan) Outdent(id string) ([]*models.Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if t.ParentID == "" {
		return nil, fmt.Errorf("%w: cannot outdent a top-level task", ErrNoOp)
	}

	parent := p.tasks[t.ParentID]
	grandGroup := p.children[parent.ParentID]
	parentPos := indexOf(grandGroup, parent.ID)

	p.detach(t)
	t.ParentID = parent.ParentID
	p.children[parent.ParentID] = insertAt(p.children[parent.ParentID], parentPos+1, id)

	changed := p.recompute()
	p.markSubtree(id, changed)
	changed[parent.ID] = parent
	return p.ordered(changed), nil
}

// Reorder repositions a task within its sibling group. newParentID, when
// non-nil, additionally reparents the task ("" makes it a root). The target
// index is clamped into the destination group. Reparenting a task under its
// own subtree fails with ErrInvariant.
func (p *Plan) Reorder(id string, newIndex int, newParentID *string) ([]*models.Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	targetParent := t.ParentID
	if newParentID != nil {
		targetParent = *newParentID
	}
	if targetParent != "" {
		if _, ok := p.tasks[targetParent]; !ok {
			return nil, fmt.Errorf("%w: parent %s", ErrNotFound, targetParent)
		}
		if p.isDescendant(targetParent, id) {
			return nil, fmt.Errorf("%w: task %s cannot become its own descendant", ErrInvariant, id)
		}
	}

	p.detach(t)
	t.ParentID = targetParent

	group := p.children[targetParent]
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(group) {
		newIndex = len(group)
	}
	p.children[targetParent] = insertAt(group, newIndex, id)

	changed := p.recompute()
	p.markSubtree(id, changed)
	return p.ordered(changed), nil
}

// Delete removes a task and its entire subtree (cascade policy) and returns
// the remaining tasks whose derived fields changed.
func (p *Plan) Delete(id string) ([]*models.Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p.detach(t)
	p.removeSubtree(id)

	changed := p.recompute()
	if t.ParentID != "" {
		if parent, ok := p.tasks[t.ParentID]; ok {
			changed[parent.ID] = parent
		}
	}
	return p.ordered(changed), nil
}

// DeleteTaskPromote removes a task and reparents its direct children to the
// deleted task's former parent, spliced in at the former position. This is
// the behavior of the original backend's delete endpoint.
func (p *Plan) DeleteTaskPromote(id string) ([]*models.Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	group := p.children[t.ParentID]
	pos := indexOf(group, id)
	kids := append([]string(nil), p.children[id]...)

	p.detach(t)
	for i, cid := range kids {
		p.tasks[cid].ParentID = t.ParentID
		p.children[t.ParentID] = insertAt(p.children[t.ParentID], pos+i, cid)
	}
	delete(p.children, id)
	delete(p.tasks, id)

	changed := p.recompute()
	for _, cid := range kids {
		p.markSubtree(cid, changed)
	}
	if t.ParentID != "" {
		if parent, ok := p.tasks[t.ParentID]; ok {
			changed[parent.ID] = parent
		}
	}
	return p.ordered(changed), nil
}

func (p *Plan) removeSubtree(id string) {
	for _, cid := range p.children[id] {
		p.removeSubtree(cid)
	}
	delete(p.children, id)
	delete(p.tasks, id)
}

// markSubtree adds a task and all of its descendants to the changed set.
// Structural moves touch every task in the moved subtree even when the
// recompute pass finds their derived fields unchanged.
func (p *Plan) markSubtree(id string, changed map[string]*models.Task) {
	if t, ok := p.tasks[id]; ok {
		changed[id] = t
	}
	for _, cid := range p.children[id] {
		p.markSubtree(cid, changed)
	}
}

func indexOf(group []string, id string) int {
	for i, v := range group {
		if v == id {
			return i
		}
	}
	return -1
}

func insertAt(group []string, i int, id string) []string {
	if i < 0 {
		i = 0
	}
	if i > len(group) {
		i = len(group)
	}
	group = append(group, "")
	copy(group[i+1:], group[i:])
	group[i] = id
	return group
}
