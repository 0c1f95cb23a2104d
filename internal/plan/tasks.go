package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/optiflow/internal/calendar"
	"github.com/ldi/optiflow/pkg/models"
)

// CreateTask validates and inserts a new leaf task as the last child of
// parentID (or as the last root when parentID is empty). The task's opaque id,
// human code, status default and expansion default are filled in on t. The
// returned slice is the affected set, the new task included.
func (p *Plan) CreateTask(parentID string, t *models.Task) ([]*models.Task, error) {
	if parentID != "" {
		if _, ok := p.tasks[parentID]; !ok {
			return nil, fmt.Errorf("%w: parent %s", ErrNotFound, parentID)
		}
	}

	if t.Status == "" {
		t.Status = p.initialStatus()
	}
	if !p.validStatus(t.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if t.TaskType == "" {
		t.TaskType = models.TaskTypeTask
	}
	if !p.validTaskType(string(t.TaskType)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskType, t.TaskType)
	}
	if t.Estimate < 0 {
		return nil, fmt.Errorf("%w: negative estimate", ErrInvalidRange)
	}

	// Fill in whichever of end date and estimate was left out.
	switch {
	case t.TaskType == models.TaskTypeMilestone:
		t.EndDate = t.StartDate
	case t.EndDate.IsZero() && t.Estimate > 0:
		t.EndDate = calendar.EndDateFor(t.StartDate, t.Estimate)
	case t.EndDate.IsZero():
		t.EndDate = t.StartDate
	case t.Estimate == 0:
		days, err := calendar.WorkingDaysBetween(t.StartDate, t.EndDate)
		if err != nil {
			return nil, err
		}
		t.Estimate = float64(days)
	}

	if err := validateRange(t.StartDate, t.EndDate); err != nil {
		return nil, err
	}
	if t.Progress < 0 || t.Progress > 100 {
		t.Progress = clampProgress(t.Progress)
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.TaskID == "" {
		t.TaskID = p.NextTaskCode()
	}
	t.ParentID = parentID
	t.Expanded = true
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	return p.Insert(t)
}

// TaskUpdate carries a partial field update; nil fields are left unchanged.
type TaskUpdate struct {
	Description *string
	StartDate   *calendar.Date
	EndDate     *calendar.Date
	Estimate    *float64
	Resource    *string
	Status      *string
	TaskType    *string
	ParentIDs   *string
	Progress    *int
	Expanded    *bool
}

// UpdateTask applies a partial field update to a task and re-aggregates the
// ancestor chain. Schedule fields (dates, estimate) and status of a summary
// task are derived from its descendants; setting them directly fails with
// ErrSummaryReadOnly. Setting the estimate of a leaf without an explicit end
// date recalculates the end date from working days; setting dates without an
// estimate recalculates the estimate. The update is atomic: on error the task
// is unchanged.
func (p *Plan) UpdateTask(id string, upd TaskUpdate) ([]*models.Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if t.IsSummary {
		if upd.StartDate != nil || upd.EndDate != nil || upd.Estimate != nil {
			return nil, fmt.Errorf("%w: dates and estimate", ErrSummaryReadOnly)
		}
		if upd.Status != nil {
			return nil, fmt.Errorf("%w: status", ErrSummaryReadOnly)
		}
	}

	// Stage the schedule fields so validation failures leave the task intact.
	start, end, estimate := t.StartDate, t.EndDate, t.Estimate
	taskType := t.TaskType

	if upd.StartDate != nil {
		start = *upd.StartDate
	}
	if upd.EndDate != nil {
		end = *upd.EndDate
	}
	if upd.Estimate != nil {
		if *upd.Estimate < 0 {
			return nil, fmt.Errorf("%w: negative estimate", ErrInvalidRange)
		}
		estimate = *upd.Estimate
	}
	if upd.TaskType != nil {
		if !p.validTaskType(*upd.TaskType) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTaskType, *upd.TaskType)
		}
		taskType = models.TaskType(*upd.TaskType)
	}
	if upd.Status != nil && !p.validStatus(*upd.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
	}

	switch {
	case taskType == models.TaskTypeMilestone:
		// Milestones ignore duration semantics.
		end = start
	case upd.Estimate != nil && upd.EndDate == nil:
		end = calendar.EndDateFor(start, estimate)
	case (upd.StartDate != nil || upd.EndDate != nil) && upd.Estimate == nil:
		days, err := calendar.WorkingDaysBetween(start, end)
		if err != nil {
			return nil, err
		}
		estimate = float64(days)
	}

	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	// Commit.
	t.StartDate, t.EndDate, t.Estimate, t.TaskType = start, end, estimate, taskType
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Resource != nil {
		t.Resource = *upd.Resource
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.ParentIDs != nil {
		t.ParentIDs = *upd.ParentIDs
	}
	if upd.Progress != nil {
		t.Progress = clampProgress(*upd.Progress)
	}
	if upd.Expanded != nil {
		t.Expanded = *upd.Expanded
	}

	changed := p.recompute()
	changed[t.ID] = t
	return p.ordered(changed), nil
}

func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
