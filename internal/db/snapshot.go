package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// We ignore the error here as hooks are best-effort in this context,
		// and we don't want to fail the original write operation if the export fails.
		_ = db.ExportSnapshot(ctx, path)
	})
}

// Snapshot records reference projects by code and tasks by project code plus
// task code, so a snapshot survives a change of the underlying UUIDs.
type snapshotRecord struct {
	RecordType string `json:"record_type"`

	// meta
	ExportedAt *time.Time `json:"exported_at,omitempty"`

	// status / resource / task_type
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Color      string `json:"color,omitempty"`
	OrderIndex int    `json:"order_index,omitempty"`

	// project
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`

	// task
	ProjectCode  string  `json:"project_code,omitempty"`
	TaskID       string  `json:"task_id,omitempty"`
	StartDate    string  `json:"start_date,omitempty"`
	EndDate      string  `json:"end_date,omitempty"`
	Estimate     float64 `json:"estimate,omitempty"`
	Resource     string  `json:"resource,omitempty"`
	Status       string  `json:"status,omitempty"`
	TaskType     string  `json:"task_type,omitempty"`
	ParentIDs    string  `json:"parent_ids,omitempty"`
	Progress     int     `json:"progress,omitempty"`
	ParentTaskID string  `json:"parent_task_id,omitempty"`
	Expanded     *bool   `json:"expanded,omitempty"`
	OrderIdx     *int    `json:"order,omitempty"`
}

// ExportSnapshot writes the full database content as JSONL to the given path,
// atomically using a temporary file. Derived hierarchy fields (level, WBS
// code, summary flags) are omitted; the plan engine rebuilds them on import.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	enc := json.NewEncoder(w)

	now := time.Now().UTC()
	if err := enc.Encode(snapshotRecord{RecordType: "meta", ExportedAt: &now}); err != nil {
		return fmt.Errorf("failed to write meta record: %w", err)
	}

	settings, err := db.GetSettings(ctx)
	if err != nil {
		return err
	}
	for _, st := range settings.Statuses {
		rec := snapshotRecord{RecordType: "status", Name: st.Name, Color: st.Color, OrderIndex: st.OrderIndex}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write status record: %w", err)
		}
	}
	for _, tt := range settings.TaskTypes {
		if err := enc.Encode(snapshotRecord{RecordType: "task_type", Name: tt.Name}); err != nil {
			return fmt.Errorf("failed to write task_type record: %w", err)
		}
	}
	for _, r := range settings.Resources {
		rec := snapshotRecord{RecordType: "resource", Name: r.Name, Email: r.Email, Color: r.Color}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write resource record: %w", err)
		}
	}

	projects, err := db.ListProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		rec := snapshotRecord{RecordType: "project", Code: p.Code, Name: p.Name, Description: p.Description}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write project record: %w", err)
		}
	}

	for _, p := range projects {
		tasks, err := db.ListTasks(ctx, p.ID)
		if err != nil {
			return err
		}
		codeByID := make(map[string]string, len(tasks))
		for _, t := range tasks {
			codeByID[t.ID] = t.TaskID
		}
		for _, t := range tasks {
			order := t.OrderIndex
			expanded := t.Expanded
			rec := snapshotRecord{
				RecordType:   "task",
				ProjectCode:  p.Code,
				TaskID:       t.TaskID,
				Description:  t.Description,
				StartDate:    t.StartDate.String(),
				EndDate:      t.EndDate.String(),
				Estimate:     t.Estimate,
				Resource:     t.Resource,
				Status:       t.Status,
				TaskType:     string(t.TaskType),
				ParentIDs:    t.ParentIDs,
				Progress:     t.Progress,
				ParentTaskID: codeByID[t.ParentID],
				Expanded:     &expanded,
				OrderIdx:     &order,
			}
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("failed to write task record: %w", err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and merges it into the database.
// Projects merge by code and tasks by project code plus task code; statuses,
// task types and resources merge by name. Imported tasks carry raw hierarchy
// data only; callers should reload each project through the plan engine to
// recompute derived fields.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	projectIDByCode := make(map[string]string)
	taskIDByCode := make(map[string]string) // keyed project_code/task_id
	statusNames := make(map[string]bool)
	typeNames := make(map[string]bool)
	resourceNames := make(map[string]bool)

	err = loadNameSet(ctx, tx, `SELECT name FROM statuses`, statusNames)
	if err == nil {
		err = loadNameSet(ctx, tx, `SELECT name FROM task_types`, typeNames)
	}
	if err == nil {
		err = loadNameSet(ctx, tx, `SELECT name FROM resources`, resourceNames)
	}
	if err != nil {
		return err
	}

	err = func() error {
		rows, err := tx.QueryContext(ctx, `SELECT id, code FROM projects`)
		if err != nil {
			return fmt.Errorf("failed to query projects: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id, code string
			if err := rows.Scan(&id, &code); err != nil {
				return err
			}
			projectIDByCode[code] = id
		}
		return rows.Err()
	}()
	if err != nil {
		return err
	}

	err = func() error {
		rows, err := tx.QueryContext(ctx, `
			SELECT t.id, p.code, t.task_id FROM tasks t JOIN projects p ON t.project_id = p.id
		`)
		if err != nil {
			return fmt.Errorf("failed to query tasks: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id, code, taskID string
			if err := rows.Scan(&id, &code, &taskID); err != nil {
				return err
			}
			taskIDByCode[code+"/"+taskID] = id
		}
		return rows.Err()
	}()
	if err != nil {
		return err
	}

	// Task records reference parents that may appear earlier in the file, so
	// the parent linking runs as a second pass after all tasks exist.
	type parentLink struct {
		key       string
		parentKey string
	}
	var links []parentLink

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec snapshotRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot record: %w", err)
		}

		switch rec.RecordType {
		case "meta":
			// Skip meta

		case "status":
			if statusNames[rec.Name] {
				continue
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO statuses (id, name, color, order_index) VALUES (?, ?, ?, ?)`,
				uuid.New().String(), rec.Name, rec.Color, rec.OrderIndex)
			if err != nil {
				return fmt.Errorf("failed to sync status %s: %w", rec.Name, err)
			}
			statusNames[rec.Name] = true

		case "task_type":
			if typeNames[rec.Name] {
				continue
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO task_types (id, name) VALUES (?, ?)`,
				uuid.New().String(), rec.Name)
			if err != nil {
				return fmt.Errorf("failed to sync task type %s: %w", rec.Name, err)
			}
			typeNames[rec.Name] = true

		case "resource":
			if resourceNames[rec.Name] {
				continue
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO resources (id, name, email, color) VALUES (?, ?, ?, ?)`,
				uuid.New().String(), rec.Name, rec.Email, rec.Color)
			if err != nil {
				return fmt.Errorf("failed to sync resource %s: %w", rec.Name, err)
			}
			resourceNames[rec.Name] = true

		case "project":
			localID, exists := projectIDByCode[rec.Code]
			if exists {
				_, err = tx.ExecContext(ctx,
					`UPDATE projects SET name = ?, description = ? WHERE id = ?`,
					rec.Name, rec.Description, localID)
			} else {
				localID = uuid.New().String()
				_, err = tx.ExecContext(ctx,
					`INSERT INTO projects (id, name, description, code) VALUES (?, ?, ?, ?)`,
					localID, rec.Name, rec.Description, rec.Code)
			}
			if err != nil {
				return fmt.Errorf("failed to sync project %s: %w", rec.Code, err)
			}
			projectIDByCode[rec.Code] = localID

		case "task":
			projectID, ok := projectIDByCode[rec.ProjectCode]
			if !ok {
				return fmt.Errorf("project not found for task %s: %s", rec.TaskID, rec.ProjectCode)
			}

			expanded := 1
			if rec.Expanded != nil && !*rec.Expanded {
				expanded = 0
			}
			order := 0
			if rec.OrderIdx != nil {
				order = *rec.OrderIdx
			}

			key := rec.ProjectCode + "/" + rec.TaskID
			localID, exists := taskIDByCode[key]
			if exists {
				_, err = tx.ExecContext(ctx, `
					UPDATE tasks SET
						description = ?, start_date = ?, end_date = ?, estimate = ?,
						resource = ?, status = ?, task_type = ?, parent_ids = ?,
						progress = ?, parent_id = NULL, expanded = ?, order_index = ?
					WHERE id = ?`,
					rec.Description, rec.StartDate, rec.EndDate, rec.Estimate,
					rec.Resource, rec.Status, rec.TaskType, rec.ParentIDs,
					rec.Progress, expanded, order, localID)
			} else {
				localID = uuid.New().String()
				_, err = tx.ExecContext(ctx, `
					INSERT INTO tasks (
						id, project_id, task_id, description, start_date, end_date,
						estimate, resource, status, task_type, parent_ids, progress,
						expanded, order_index
					) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					localID, projectID, rec.TaskID, rec.Description, rec.StartDate,
					rec.EndDate, rec.Estimate, rec.Resource, rec.Status, rec.TaskType,
					rec.ParentIDs, rec.Progress, expanded, order)
			}
			if err != nil {
				return fmt.Errorf("failed to sync task %s: %w", key, err)
			}
			taskIDByCode[key] = localID

			if rec.ParentTaskID != "" {
				links = append(links, parentLink{key: key, parentKey: rec.ProjectCode + "/" + rec.ParentTaskID})
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	for _, l := range links {
		parentID, ok := taskIDByCode[l.parentKey]
		if !ok {
			return fmt.Errorf("parent task not found for %s: %s", l.key, l.parentKey)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET parent_id = ? WHERE id = ?`,
			parentID, taskIDByCode[l.key])
		if err != nil {
			return fmt.Errorf("failed to link task %s: %w", l.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func loadNameSet(ctx context.Context, tx executor, query string, set map[string]bool) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		set[name] = true
	}
	return rows.Err()
}
