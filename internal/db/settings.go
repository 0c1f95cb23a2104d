package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/optiflow/internal/config"
	"github.com/ldi/optiflow/pkg/models"
)

// Seed writes the configured enumerations into an empty database. It is a
// no-op when statuses already exist, so running init twice is safe.
func (db *DB) Seed(ctx context.Context, cfg *config.Config) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statuses`).Scan(&count); err != nil {
		return fmt.Errorf("failed to check statuses: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, s := range cfg.Statuses {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO statuses (id, name, color, order_index) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), s.Name, s.Color, i,
		)
		if err != nil {
			return fmt.Errorf("failed to seed status %q: %w", s.Name, err)
		}
	}
	for _, tt := range cfg.TaskTypes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO task_types (id, name) VALUES (?, ?)`,
			uuid.New().String(), tt,
		)
		if err != nil {
			return fmt.Errorf("failed to seed task type %q: %w", tt, err)
		}
	}
	for _, r := range cfg.Resources {
		color := r.Color
		if color == "" {
			color = "#3498db"
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO resources (id, name, email, color) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), r.Name, r.Email, color,
		)
		if err != nil {
			return fmt.Errorf("failed to seed resource %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed data: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// GetSettings returns all configured enumerations in display order.
func (db *DB) GetSettings(ctx context.Context) (*models.Settings, error) {
	s := &models.Settings{}

	rows, err := db.QueryContext(ctx, `SELECT id, name, email, color FROM resources ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	for rows.Next() {
		var r models.Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Color); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		s.Resources = append(s.Resources, r)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	rows, err = db.QueryContext(ctx, `SELECT id, name, color, order_index FROM statuses ORDER BY order_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	for rows.Next() {
		var st models.Status
		if err := rows.Scan(&st.ID, &st.Name, &st.Color, &st.OrderIndex); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		s.Statuses = append(s.Statuses, st)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	rows, err = db.QueryContext(ctx, `SELECT id, name FROM task_types ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list task types: %w", err)
	}
	for rows.Next() {
		var tt models.TaskTypeDef
		if err := rows.Scan(&tt.ID, &tt.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task type: %w", err)
		}
		s.TaskTypes = append(s.TaskTypes, tt)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return s, nil
}

// CreateResource adds a resource. If r.ID is empty, a new UUID is generated.
func (db *DB) CreateResource(ctx context.Context, r *models.Resource) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Color == "" {
		r.Color = "#3498db"
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO resources (id, name, email, color) VALUES (?, ?, ?, ?)`,
		r.ID, r.Name, r.Email, r.Color,
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	db.triggerChange(ctx)
	return nil
}

// DeleteResource removes a resource. Task assignments keep the name.
func (db *DB) DeleteResource(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("resource not found: %s", id)
	}
	db.triggerChange(ctx)
	return nil
}

// CreateStatus adds a status at the end of the ordered set.
func (db *DB) CreateStatus(ctx context.Context, st *models.Status) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	err := db.QueryRowContext(ctx,
		`INSERT INTO statuses (id, name, color, order_index)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(order_index), -1) + 1 FROM statuses))
		 RETURNING order_index`,
		st.ID, st.Name, st.Color,
	).Scan(&st.OrderIndex)
	if err != nil {
		return fmt.Errorf("failed to create status: %w", err)
	}
	db.triggerChange(ctx)
	return nil
}

// DeleteStatus removes a status. Tasks carrying the name are untouched.
func (db *DB) DeleteStatus(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM statuses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("status not found: %s", id)
	}
	db.triggerChange(ctx)
	return nil
}

// CreateTaskType adds a task type name.
func (db *DB) CreateTaskType(ctx context.Context, tt *models.TaskTypeDef) error {
	if tt.ID == "" {
		tt.ID = uuid.New().String()
	}
	_, err := db.ExecContext(ctx, `INSERT INTO task_types (id, name) VALUES (?, ?)`, tt.ID, tt.Name)
	if err != nil {
		return fmt.Errorf("failed to create task type: %w", err)
	}
	db.triggerChange(ctx)
	return nil
}

// DeleteTaskType removes a task type name.
func (db *DB) DeleteTaskType(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM task_types WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task type: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task type not found: %s", id)
	}
	db.triggerChange(ctx)
	return nil
}
