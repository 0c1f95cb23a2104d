package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ldi/optiflow/internal/config"
	"github.com/ldi/optiflow/internal/db"
	"github.com/ldi/optiflow/pkg/models"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}
	if err := database.Seed(ctx, config.Default()); err != nil {
		t.Fatalf("Failed to seed database: %v", err)
	}

	return NewServer(database).Handler()
}

// do runs one request against the handler and decodes the JSON response.
func do(t *testing.T, h http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if out != nil && rec.Code < 400 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response for %s %s: %v", method, path, err)
		}
	}
	return rec
}

func createProject(t *testing.T, h http.Handler, name, code string) *models.Project {
	t.Helper()
	var p models.Project
	rec := do(t, h, "POST", "/api/projects", map[string]string{"name": name, "code": code}, &p)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Failed to create project: %d %s", rec.Code, rec.Body)
	}
	return &p
}

func createTask(t *testing.T, h http.Handler, projectID string, body map[string]any) *models.Task {
	t.Helper()
	var task models.Task
	rec := do(t, h, "POST", "/api/projects/"+projectID+"/tasks", body, &task)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Failed to create task: %d %s", rec.Code, rec.Body)
	}
	return &task
}

func TestProjectEndpoints(t *testing.T) {
	h := newTestServer(t)

	// 1. Empty list
	var projects []*models.Project
	rec := do(t, h, "GET", "/api/projects", nil, &projects)
	if rec.Code != http.StatusOK || len(projects) != 0 {
		t.Fatalf("Expected empty project list, got %d %s", rec.Code, rec.Body)
	}

	// 2. Create and fetch by ID and by code
	p := createProject(t, h, "Website", "web")
	if p.Code != "WEB" {
		t.Errorf("Expected uppercased code, got %s", p.Code)
	}

	var fetched models.Project
	rec = do(t, h, "GET", "/api/projects/WEB", nil, &fetched)
	if rec.Code != http.StatusOK || fetched.ID != p.ID {
		t.Fatalf("Lookup by code failed: %d %s", rec.Code, rec.Body)
	}

	// 3. Validation
	rec = do(t, h, "POST", "/api/projects", map[string]string{"name": "No code"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing code, got %d", rec.Code)
	}

	// 4. Update
	rec = do(t, h, "PUT", "/api/projects/"+p.ID, map[string]string{"name": "Renamed"}, &fetched)
	if rec.Code != http.StatusOK || fetched.Name != "Renamed" {
		t.Errorf("Update failed: %d %s", rec.Code, rec.Body)
	}

	// 5. Delete, then 404
	rec = do(t, h, "DELETE", "/api/projects/"+p.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Delete failed: %d", rec.Code)
	}
	rec = do(t, h, "GET", "/api/projects/"+p.ID, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	h := newTestServer(t)
	p := createProject(t, h, "Plan", "PLN")

	// 1. Create a task; code and defaults are assigned
	a := createTask(t, h, p.ID, map[string]any{
		"description": "Design",
		"start_date":  "2024-01-01",
		"estimate":    3,
	})
	if a.TaskID != "PLN-001" {
		t.Errorf("Expected code PLN-001, got %s", a.TaskID)
	}
	if a.Status != "Not Started" || a.TaskType != models.TaskTypeTask {
		t.Errorf("Unexpected defaults: %+v", a)
	}
	if a.EndDate.String() != "2024-01-03" {
		t.Errorf("Expected end date from estimate, got %s", a.EndDate)
	}

	// 2. Invalid date range is a 400
	rec := do(t, h, "POST", "/api/projects/"+p.ID+"/tasks", map[string]any{
		"start_date": "2024-01-05",
		"end_date":   "2024-01-01",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for inverted range, got %d", rec.Code)
	}

	// 3. Unknown status is a 400
	rec = do(t, h, "POST", "/api/projects/"+p.ID+"/tasks", map[string]any{
		"start_date": "2024-01-01",
		"status":     "Bogus",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d", rec.Code)
	}

	// 4. Update recalculates the estimate from the new dates
	var updated models.Task
	rec = do(t, h, "PUT", "/api/tasks/"+a.ID, map[string]any{
		"start_date": "2024-01-01",
		"end_date":   "2024-01-05",
	}, &updated)
	if rec.Code != http.StatusOK {
		t.Fatalf("Update failed: %d %s", rec.Code, rec.Body)
	}
	if updated.Estimate != 5 {
		t.Errorf("Expected estimate 5, got %v", updated.Estimate)
	}

	// 5. Delete
	rec = do(t, h, "DELETE", "/api/tasks/"+a.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Delete failed: %d", rec.Code)
	}
	rec = do(t, h, "GET", "/api/tasks/"+a.ID, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestIndentOutdentAndAggregation(t *testing.T) {
	h := newTestServer(t)
	p := createProject(t, h, "Hierarchy", "HIE")

	a := createTask(t, h, p.ID, map[string]any{
		"description": "Phase", "start_date": "2024-01-01", "estimate": 2,
	})
	b := createTask(t, h, p.ID, map[string]any{
		"description": "Build", "start_date": "2024-01-03", "estimate": 3,
	})

	// 1. Indent B under A
	var tasks []*models.Task
	rec := do(t, h, "POST", "/api/tasks/"+b.ID+"/indent", nil, &tasks)
	if rec.Code != http.StatusOK {
		t.Fatalf("Indent failed: %d %s", rec.Code, rec.Body)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected full task list, got %d", len(tasks))
	}

	// A became a summary aggregating B
	parent, child := tasks[0], tasks[1]
	if !parent.IsSummary || parent.TaskType != models.TaskTypeSummary {
		t.Errorf("Expected summary parent, got %+v", parent)
	}
	if parent.WBSCode != "1" || child.WBSCode != "1.1" {
		t.Errorf("Unexpected WBS codes: %s, %s", parent.WBSCode, child.WBSCode)
	}
	if parent.Estimate != 3 || parent.EndDate.String() != "2024-01-05" {
		t.Errorf("Summary not aggregated: %+v", parent)
	}

	// 2. Summary schedule is read only
	rec = do(t, h, "PUT", "/api/tasks/"+parent.ID, map[string]any{"estimate": 10}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for summary estimate update, got %d", rec.Code)
	}

	// 3. Indenting the first sibling is a no-op error
	rec = do(t, h, "POST", "/api/tasks/"+parent.ID+"/indent", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for indenting first root, got %d", rec.Code)
	}

	// 4. Outdent restores the flat list and A reverts to a leaf
	rec = do(t, h, "POST", "/api/tasks/"+child.ID+"/outdent", nil, &tasks)
	if rec.Code != http.StatusOK {
		t.Fatalf("Outdent failed: %d %s", rec.Code, rec.Body)
	}
	if tasks[0].IsSummary || tasks[0].TaskType != models.TaskTypeTask {
		t.Errorf("Expected leaf again: %+v", tasks[0])
	}
	if tasks[0].WBSCode != "1" || tasks[1].WBSCode != "2" {
		t.Errorf("Unexpected WBS codes: %s, %s", tasks[0].WBSCode, tasks[1].WBSCode)
	}

	_ = a
}

func TestToggleExpandAndVisibleList(t *testing.T) {
	h := newTestServer(t)
	p := createProject(t, h, "Visible", "VIS")

	a := createTask(t, h, p.ID, map[string]any{"start_date": "2024-01-01"})
	b := createTask(t, h, p.ID, map[string]any{"start_date": "2024-01-01"})
	do(t, h, "POST", "/api/tasks/"+b.ID+"/indent", nil, nil)

	// 1. Collapse A
	var toggled models.Task
	rec := do(t, h, "POST", "/api/tasks/"+a.ID+"/toggle-expand", nil, &toggled)
	if rec.Code != http.StatusOK || toggled.Expanded {
		t.Fatalf("Expected collapsed task, got %d %+v", rec.Code, toggled)
	}

	// 2. The child is hidden from the visible list but not the full list
	var visible []*models.Task
	do(t, h, "GET", "/api/projects/"+p.ID+"/tasks?visible=true", nil, &visible)
	if len(visible) != 1 || visible[0].ID != a.ID {
		t.Errorf("Expected only the collapsed root, got %+v", visible)
	}
	var all []*models.Task
	do(t, h, "GET", "/api/projects/"+p.ID+"/tasks", nil, &all)
	if len(all) != 2 {
		t.Errorf("Expected 2 tasks in full list, got %d", len(all))
	}
}

func TestDeletePromotesChildren(t *testing.T) {
	h := newTestServer(t)
	p := createProject(t, h, "Promote", "PRO")

	a := createTask(t, h, p.ID, map[string]any{"start_date": "2024-01-01"})
	b := createTask(t, h, p.ID, map[string]any{"start_date": "2024-01-01"})
	do(t, h, "POST", "/api/tasks/"+b.ID+"/indent", nil, nil)

	rec := do(t, h, "DELETE", "/api/tasks/"+a.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Delete failed: %d %s", rec.Code, rec.Body)
	}

	var tasks []*models.Task
	do(t, h, "GET", "/api/projects/"+p.ID+"/tasks", nil, &tasks)
	if len(tasks) != 1 || tasks[0].ID != b.ID {
		t.Fatalf("Expected promoted child, got %+v", tasks)
	}
	if tasks[0].Level != 0 || tasks[0].WBSCode != "1" {
		t.Errorf("Child not promoted to root: %+v", tasks[0])
	}
}

func TestReorder(t *testing.T) {
	h := newTestServer(t)
	p := createProject(t, h, "Order", "ORD")

	a := createTask(t, h, p.ID, map[string]any{"start_date": "2024-01-01"})
	b := createTask(t, h, p.ID, map[string]any{"start_date": "2024-01-01"})

	var tasks []*models.Task
	rec := do(t, h, "POST", "/api/projects/"+p.ID+"/reorder", map[string]any{
		"task_id":   b.ID,
		"new_index": 0,
	}, &tasks)
	if rec.Code != http.StatusOK {
		t.Fatalf("Reorder failed: %d %s", rec.Code, rec.Body)
	}
	if tasks[0].ID != b.ID || tasks[1].ID != a.ID {
		t.Errorf("Unexpected order: %s, %s", tasks[0].TaskID, tasks[1].TaskID)
	}
	if tasks[0].WBSCode != "1" || tasks[1].WBSCode != "2" {
		t.Errorf("WBS codes not renumbered: %s, %s", tasks[0].WBSCode, tasks[1].WBSCode)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	h := newTestServer(t)

	var settings models.Settings
	rec := do(t, h, "GET", "/api/settings", nil, &settings)
	if rec.Code != http.StatusOK || len(settings.Statuses) != 5 {
		t.Fatalf("Unexpected settings: %d %+v", rec.Code, settings)
	}

	var res models.Resource
	rec = do(t, h, "POST", "/api/resources", map[string]string{"name": "Alice"}, &res)
	if rec.Code != http.StatusCreated || res.ID == "" {
		t.Fatalf("Failed to create resource: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, "DELETE", "/api/resources/"+res.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Failed to delete resource: %d", rec.Code)
	}

	rec = do(t, h, "POST", "/api/statuses", map[string]string{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing name, got %d", rec.Code)
	}
}
