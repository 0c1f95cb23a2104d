package models

import (
	"strings"
	"time"

	"github.com/ldi/optiflow/internal/calendar"
)

type TaskType string

const (
	TaskTypeTask      TaskType = "Task"
	TaskTypeMilestone TaskType = "Milestone"
	TaskTypeSummary   TaskType = "Summary"
)

// Task is the central scheduling entity. ID is the opaque stable identifier,
// TaskID the human-readable code (e.g. "PRJ-007"). The structural fields
// (ParentID, Level, WBSCode, IsSummary, OrderIndex) and the schedule fields of
// summary tasks are owned by the plan engine and must not be set directly.
type Task struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	TaskID      string        `json:"task_id"`
	Description string        `json:"description"`
	StartDate   calendar.Date `json:"start_date"`
	EndDate     calendar.Date `json:"end_date"`
	Estimate    float64       `json:"estimate"`
	Resource    string        `json:"resource,omitempty"`
	Status      string        `json:"status"`
	TaskType    TaskType      `json:"task_type"`
	Progress    int           `json:"progress"`
	CreatedAt   time.Time     `json:"created_at"`

	// ParentIDs holds comma-separated predecessor task codes used for
	// dependency-line rendering. Codes may reference tasks that do not
	// exist yet; they are never validated.
	ParentIDs string `json:"parent_ids,omitempty"`

	// Hierarchy (WBS) fields.
	ParentID   string `json:"parent_id,omitempty"`
	Level      int    `json:"level"`
	WBSCode    string `json:"wbs_code"`
	IsSummary  bool   `json:"is_summary"`
	Expanded   bool   `json:"expanded"`
	OrderIndex int    `json:"order_index"`
}

// Predecessors splits ParentIDs into individual task codes.
func (t *Task) Predecessors() []string {
	if t.ParentIDs == "" {
		return nil
	}
	var codes []string
	for _, part := range strings.Split(t.ParentIDs, ",") {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}
