package plan

import (
	"math"
	"strconv"

	"github.com/ldi/optiflow/internal/calendar"
	"github.com/ldi/optiflow/pkg/models"
)

// recompute rebuilds every derived field from the authoritative leaf data:
// order_index (dense per sibling group), level, wbs_code, is_summary, the
// Task<->Summary type flip, and the bottom-up roll-ups of dates, estimate,
// status and progress. It returns the tasks whose fields actually changed,
// which makes the pass idempotent: running it twice yields an empty set the
// second time.
func (p *Plan) recompute() map[string]*models.Task {
	changed := make(map[string]*models.Task)

	touch := func(t *models.Task) {
		changed[t.ID] = t
	}

	var structure func(parentID, prefix string, level int)
	structure = func(parentID, prefix string, level int) {
		for i, id := range p.children[parentID] {
			t := p.tasks[id]
			wbs := prefix + strconv.Itoa(i+1)

			if t.OrderIndex != i {
				t.OrderIndex = i
				touch(t)
			}
			if t.Level != level {
				t.Level = level
				touch(t)
			}
			if t.WBSCode != wbs {
				t.WBSCode = wbs
				touch(t)
			}

			hasChildren := len(p.children[id]) > 0
			if t.IsSummary != hasChildren {
				t.IsSummary = hasChildren
				touch(t)
			}
			// Milestones keep their type even while they have children.
			if hasChildren && t.TaskType == models.TaskTypeTask {
				t.TaskType = models.TaskTypeSummary
				touch(t)
			}
			if !hasChildren && t.TaskType == models.TaskTypeSummary {
				t.TaskType = models.TaskTypeTask
				touch(t)
			}

			structure(id, wbs+".", level+1)
		}
	}
	structure("", "", 0)

	for _, id := range p.children[""] {
		p.aggregate(p.tasks[id], touch)
	}

	return changed
}

// aggregate recomputes the derived schedule fields of a summary task from its
// direct children, depth-first so intermediate summaries are already correct
// when their parents read them.
func (p *Plan) aggregate(t *models.Task, touch func(*models.Task)) {
	kids := p.children[t.ID]
	if len(kids) == 0 {
		return
	}

	for _, id := range kids {
		p.aggregate(p.tasks[id], touch)
	}

	first := p.tasks[kids[0]]
	start, end := first.StartDate, first.EndDate
	estimate := 0.0
	weighted := 0.0
	allCompleted, allInitial := true, true

	for _, id := range kids {
		c := p.tasks[id]
		if c.StartDate.Before(start) {
			start = c.StartDate
		}
		if c.EndDate.After(end) {
			end = c.EndDate
		}
		estimate += c.Estimate
		weighted += c.Estimate * float64(c.Progress)
		if c.Status != p.completedStatus() {
			allCompleted = false
		}
		if c.Status != p.initialStatus() {
			allInitial = false
		}
	}

	if t.StartDate != start {
		t.StartDate = start
		touch(t)
	}
	if t.EndDate != end {
		t.EndDate = end
		touch(t)
	}
	if t.Estimate != estimate {
		t.Estimate = estimate
		touch(t)
	}

	status := p.progressStatus()
	switch {
	case allCompleted:
		status = p.completedStatus()
	case allInitial:
		status = p.initialStatus()
	}
	if t.Status != status {
		t.Status = status
		touch(t)
	}

	progress := 0
	if estimate > 0 {
		progress = int(math.Round(weighted / estimate))
	} else {
		sum := 0
		for _, id := range kids {
			sum += p.tasks[id].Progress
		}
		progress = int(math.Round(float64(sum) / float64(len(kids))))
	}
	if t.Progress != progress {
		t.Progress = progress
		touch(t)
	}
}

// initialStatus is the first configured status, assigned to new tasks.
func (p *Plan) initialStatus() string {
	return p.statuses[0]
}

// completedStatus is the configured terminal status: "Completed" when the set
// contains it, otherwise the last configured status.
func (p *Plan) completedStatus() string {
	for _, s := range p.statuses {
		if s == "Completed" {
			return s
		}
	}
	return p.statuses[len(p.statuses)-1]
}

// progressStatus is the status of a summary with mixed children: "In
// Progress" when configured, otherwise the status following the initial one.
func (p *Plan) progressStatus() string {
	for _, s := range p.statuses {
		if s == "In Progress" {
			return s
		}
	}
	if len(p.statuses) > 1 {
		return p.statuses[1]
	}
	return p.statuses[0]
}

func (p *Plan) validStatus(s string) bool {
	for _, name := range p.statuses {
		if name == s {
			return true
		}
	}
	return false
}

func (p *Plan) validTaskType(tt string) bool {
	for _, name := range p.taskTypes {
		if name == tt {
			return true
		}
	}
	return false
}

// validateRange checks that the inclusive date range is well-formed.
func validateRange(start, end calendar.Date) error {
	if _, err := calendar.WorkingDaysBetween(start, end); err != nil {
		return err
	}
	return nil
}
