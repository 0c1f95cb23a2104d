package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/optiflow/pkg/models"
)

const taskColumns = `
	id, project_id, task_id, description, start_date, end_date, estimate,
	resource, status, task_type, parent_ids, progress, parent_id, level,
	wbs_code, is_summary, expanded, order_index, created_at
`

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var parentID sql.NullString
	var isSummary, expanded int
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.TaskID, &t.Description,
		&t.StartDate, &t.EndDate, &t.Estimate,
		&t.Resource, &t.Status, &t.TaskType, &t.ParentIDs, &t.Progress,
		&parentID, &t.Level, &t.WBSCode, &isSummary, &expanded,
		&t.OrderIndex, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	t.ParentID = parentID.String
	t.IsSummary = isSummary != 0
	t.Expanded = expanded != 0
	return t, nil
}

// GetTask retrieves a task by its stable ID. It returns nil when the task
// does not exist.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	return scanTask(db.QueryRowContext(ctx, query, id))
}

// ListTasks returns all tasks of a project, parents before their children
// and siblings by order_index. Depth-first display order is rebuilt by the
// plan engine on load.
func (db *DB) ListTasks(ctx context.Context, projectID string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = ? ORDER BY level ASC, order_index ASC`
	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tasks, nil
}

// ReplaceProjectTasks atomically replaces a project's entire task set. The
// plan engine recomputes the full hierarchy in memory, so persisting means
// writing the whole forest back in one transaction. Tasks must be ordered
// parents-first (depth-first order satisfies this) for the parent_id
// foreign key.
func (db *DB) ReplaceProjectTasks(ctx context.Context, projectID string, tasks []*models.Task) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}

	insert := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		var parentID any
		if t.ParentID != "" {
			parentID = t.ParentID
		}
		_, err := stmt.ExecContext(ctx,
			t.ID, projectID, t.TaskID, t.Description,
			t.StartDate, t.EndDate, t.Estimate,
			t.Resource, t.Status, t.TaskType, t.ParentIDs, t.Progress,
			parentID, t.Level, t.WBSCode, boolToInt(t.IsSummary),
			boolToInt(t.Expanded), t.OrderIndex, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert task %s: %w", t.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
