package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/ldi/optiflow/internal/calendar"
	"github.com/ldi/optiflow/pkg/models"
)

// CreateProject inserts a new project. The code is uppercased and must be
// unique. If p.ID is empty, a new UUID is generated.
func (db *DB) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Code = strings.ToUpper(p.Code)

	query := `
		INSERT INTO projects (id, name, description, code)
		VALUES (?, ?, ?, ?)
		RETURNING created_at
	`
	err := db.QueryRowContext(ctx, query, p.ID, p.Name, p.Description, p.Code).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// Summary estimates already include their descendants, so only root tasks
// count toward the totals and the project date range.
const projectQuery = `
	SELECT p.id, p.name, p.description, p.code, p.created_at,
	       (SELECT COUNT(*) FROM tasks WHERE project_id = p.id),
	       COALESCE(SUM(t.estimate), 0),
	       COALESCE(SUM(t.estimate * t.progress / 100.0), 0),
	       MIN(t.start_date),
	       MAX(t.end_date)
	FROM projects p
	LEFT JOIN tasks t ON t.project_id = p.id AND t.parent_id IS NULL
`

// GetProject retrieves a project by its ID, with roll-up statistics.
// It returns nil when the project does not exist.
func (db *DB) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := db.QueryRowContext(ctx, projectQuery+` WHERE p.id = ? GROUP BY p.id`, id)
	return scanProject(row)
}

// GetProjectByCode retrieves a project by its unique code.
func (db *DB) GetProjectByCode(ctx context.Context, code string) (*models.Project, error) {
	row := db.QueryRowContext(ctx, projectQuery+` WHERE p.code = ? GROUP BY p.id`, strings.ToUpper(code))
	return scanProject(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	p := &models.Project{}
	var start, end sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Code, &p.CreatedAt,
		&p.TaskCount, &p.TotalEstimate, &p.CompletedEstimate, &start, &end,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	if p.TotalEstimate > 0 {
		p.Progress = int(math.Round(p.CompletedEstimate / p.TotalEstimate * 100))
	}
	if start.Valid {
		if d, err := calendar.Parse(start.String); err == nil {
			p.StartDate = &d
		}
	}
	if end.Valid {
		if d, err := calendar.Parse(end.String); err == nil {
			p.EndDate = &d
		}
	}
	return p, nil
}

// ListProjects returns all projects with their roll-up statistics.
func (db *DB) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := db.QueryContext(ctx, projectQuery+` GROUP BY p.id ORDER BY p.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return projects, nil
}

// UpdateProject updates a project's name and description.
func (db *DB) UpdateProject(ctx context.Context, p *models.Project) error {
	query := `UPDATE projects SET name = ?, description = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, p.Name, p.Description, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project not found: %s", p.ID)
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteProject deletes a project and all of its tasks.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	query := `DELETE FROM projects WHERE id = ?`
	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project not found: %s", id)
	}

	db.triggerChange(ctx)
	return nil
}
