package models

import (
	"time"

	"github.com/ldi/optiflow/internal/calendar"
)

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"created_at"`

	// Roll-up statistics populated by joined queries.
	TaskCount         int            `json:"task_count"`
	TotalEstimate     float64        `json:"total_estimate"`
	CompletedEstimate float64        `json:"completed_estimate"`
	Progress          int            `json:"progress"`
	StartDate         *calendar.Date `json:"start_date"`
	EndDate           *calendar.Date `json:"end_date"`
}
