// Package server exposes the plan engine over a JSON HTTP API. Every mutation
// loads the project's task forest into a plan, applies the operation and
// writes the recomputed forest back in one transaction.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ldi/optiflow/internal/calendar"
	"github.com/ldi/optiflow/internal/db"
	"github.com/ldi/optiflow/internal/plan"
	"github.com/ldi/optiflow/pkg/models"
)

type Server struct {
	db     *db.DB
	server *http.Server

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewServer(database *db.DB) *Server {
	return &Server{
		db:    database,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler builds the route table. Patterns use the method-aware mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	mux.HandleFunc("GET /api/projects/{id}/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/projects/{id}/tasks", s.handleCreateTask)
	mux.HandleFunc("POST /api/projects/{id}/reorder", s.handleReorderTask)

	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/indent", s.taskOp((*plan.Plan).Indent))
	mux.HandleFunc("POST /api/tasks/{id}/outdent", s.taskOp((*plan.Plan).Outdent))
	mux.HandleFunc("POST /api/tasks/{id}/toggle-expand", s.handleToggleExpand)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/resources", s.handleCreateResource)
	mux.HandleFunc("DELETE /api/resources/{id}", s.handleDeleteResource)
	mux.HandleFunc("POST /api/statuses", s.handleCreateStatus)
	mux.HandleFunc("DELETE /api/statuses/{id}", s.handleDeleteStatus)
	mux.HandleFunc("POST /api/task-types", s.handleCreateTaskType)
	mux.HandleFunc("DELETE /api/task-types/{id}", s.handleDeleteTaskType)

	return mux
}

// projectLock serializes plan load/mutate/store cycles per project.
func (s *Server) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	return l
}

// resolveProject accepts either a project UUID or a project code.
func (s *Server) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	p, err := s.db.GetProject(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p, err = s.db.GetProjectByCode(ctx, ref)
		if err != nil {
			return nil, err
		}
	}
	if p == nil {
		return nil, fmt.Errorf("%w: project %s", plan.ErrNotFound, ref)
	}
	return p, nil
}

// loadPlan builds the in-memory plan for a project from the stored forest
// and the configured enumerations.
func (s *Server) loadPlan(ctx context.Context, p *models.Project) (*plan.Plan, error) {
	settings, err := s.db.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.db.ListTasks(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return plan.Load(p.Code, settings.StatusNames(), settings.TaskTypeNames(), tasks)
}

func (s *Server) storePlan(ctx context.Context, p *models.Project, pl *plan.Plan) error {
	tasks := pl.Tasks()
	for _, t := range tasks {
		t.ProjectID = p.ID
	}
	return s.db.ReplaceProjectTasks(ctx, p.ID, tasks)
}

// Projects

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.db.ListProjects(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	s.respond(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Name == "" || p.Code == "" {
		s.respondStatus(w, http.StatusBadRequest, "name and code are required")
		return
	}
	if err := s.db.CreateProject(r.Context(), &p); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, &p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.resolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.resolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	var body struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name != nil {
		p.Name = *body.Name
	}
	if body.Description != nil {
		p.Description = *body.Description
	}
	if err := s.db.UpdateProject(r.Context(), p); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.resolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.db.DeleteProject(r.Context(), p.ID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Tasks

// taskPayload is the JSON shape shared by task create and update. Nil fields
// are absent from the request.
type taskPayload struct {
	Description *string        `json:"description"`
	StartDate   *calendar.Date `json:"start_date"`
	EndDate     *calendar.Date `json:"end_date"`
	Estimate    *float64       `json:"estimate"`
	Resource    *string        `json:"resource"`
	Status      *string        `json:"status"`
	TaskType    *string        `json:"task_type"`
	ParentIDs   *string        `json:"parent_ids"`
	Progress    *int           `json:"progress"`
	Expanded    *bool          `json:"expanded"`
	ParentID    *string        `json:"parent_id"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	p, err := s.resolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	pl, err := s.loadPlan(r.Context(), p)
	if err != nil {
		s.respondError(w, err)
		return
	}

	tasks := pl.Tasks()
	if r.URL.Query().Get("visible") == "true" {
		tasks = pl.VisibleTasks()
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	s.respond(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.resolveProject(ctx, r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	var body taskPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.StartDate == nil {
		s.respondStatus(w, http.StatusBadRequest, "start_date is required")
		return
	}

	// End date and estimate are optional; the plan derives the missing one.
	t := &models.Task{
		ProjectID: p.ID,
		StartDate: *body.StartDate,
	}
	if body.Description != nil {
		t.Description = *body.Description
	}
	if body.EndDate != nil {
		t.EndDate = *body.EndDate
	}
	if body.Estimate != nil {
		t.Estimate = *body.Estimate
	}
	if body.Resource != nil {
		t.Resource = *body.Resource
	}
	if body.Status != nil {
		t.Status = *body.Status
	}
	if body.TaskType != nil {
		t.TaskType = models.TaskType(*body.TaskType)
	}
	if body.ParentIDs != nil {
		t.ParentIDs = *body.ParentIDs
	}
	if body.Progress != nil {
		t.Progress = *body.Progress
	}
	parentID := ""
	if body.ParentID != nil {
		parentID = *body.ParentID
	}

	lock := s.projectLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	pl, err := s.loadPlan(ctx, p)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := pl.CreateTask(parentID, t); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.storePlan(ctx, p, pl); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.db.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if t == nil {
		s.respondStatus(w, http.StatusNotFound, "task not found")
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var body taskPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := plan.TaskUpdate{
		Description: body.Description,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
		Estimate:    body.Estimate,
		Resource:    body.Resource,
		Status:      body.Status,
		TaskType:    body.TaskType,
		ParentIDs:   body.ParentIDs,
		Progress:    body.Progress,
		Expanded:    body.Expanded,
	}

	s.withTask(w, r, func(ctx context.Context, pl *plan.Plan, id string) ([]*models.Task, error) {
		return pl.UpdateTask(id, upd)
	}, func(pl *plan.Plan, id string) (any, error) {
		return pl.Get(id)
	})
}

// handleDeleteTask removes a task and promotes its children into its place.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.withTask(w, r, func(ctx context.Context, pl *plan.Plan, id string) ([]*models.Task, error) {
		return pl.DeleteTaskPromote(id)
	}, func(pl *plan.Plan, id string) (any, error) {
		return map[string]string{"status": "deleted"}, nil
	})
}

// taskOp adapts a structural plan operation into a handler that responds
// with the full recomputed task list.
func (s *Server) taskOp(op func(*plan.Plan, string) ([]*models.Task, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.withTask(w, r, func(ctx context.Context, pl *plan.Plan, id string) ([]*models.Task, error) {
			return op(pl, id)
		}, nil)
	}
}

func (s *Server) handleToggleExpand(w http.ResponseWriter, r *http.Request) {
	s.withTask(w, r, func(ctx context.Context, pl *plan.Plan, id string) ([]*models.Task, error) {
		t, err := pl.ToggleExpand(id)
		if err != nil {
			return nil, err
		}
		return []*models.Task{t}, nil
	}, func(pl *plan.Plan, id string) (any, error) {
		return pl.Get(id)
	})
}

// withTask runs a plan mutation for the task in the URL path. The mutated
// forest is stored back atomically. When result is nil the response is the
// full task list in display order.
func (s *Server) withTask(
	w http.ResponseWriter, r *http.Request,
	mutate func(ctx context.Context, pl *plan.Plan, id string) ([]*models.Task, error),
	result func(pl *plan.Plan, id string) (any, error),
) {
	ctx := r.Context()
	id := r.PathValue("id")

	stored, err := s.db.GetTask(ctx, id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if stored == nil {
		s.respondStatus(w, http.StatusNotFound, "task not found")
		return
	}
	p, err := s.resolveProject(ctx, stored.ProjectID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	lock := s.projectLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	pl, err := s.loadPlan(ctx, p)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := mutate(ctx, pl, id); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.storePlan(ctx, p, pl); err != nil {
		s.respondError(w, err)
		return
	}

	if result == nil {
		s.respond(w, http.StatusOK, pl.Tasks())
		return
	}
	out, err := result(pl, id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleReorderTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.resolveProject(ctx, r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	var body struct {
		TaskID      string  `json:"task_id"`
		NewIndex    int     `json:"new_index"`
		NewParentID *string `json:"new_parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lock := s.projectLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	pl, err := s.loadPlan(ctx, p)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := pl.Reorder(body.TaskID, body.NewIndex, body.NewParentID); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.storePlan(ctx, p, pl); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, pl.Tasks())
}

// Settings

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.db.GetSettings(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, settings)
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var res models.Resource
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil || res.Name == "" {
		s.respondStatus(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.db.CreateResource(r.Context(), &res); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, &res)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteResource(r.Context(), r.PathValue("id")); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCreateStatus(w http.ResponseWriter, r *http.Request) {
	var st models.Status
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil || st.Name == "" {
		s.respondStatus(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.db.CreateStatus(r.Context(), &st); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, &st)
}

func (s *Server) handleDeleteStatus(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteStatus(r.Context(), r.PathValue("id")); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCreateTaskType(w http.ResponseWriter, r *http.Request) {
	var tt models.TaskTypeDef
	if err := json.NewDecoder(r.Body).Decode(&tt); err != nil || tt.Name == "" {
		s.respondStatus(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.db.CreateTaskType(r.Context(), &tt); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, &tt)
}

func (s *Server) handleDeleteTaskType(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteTaskType(r.Context(), r.PathValue("id")); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Responses

func (s *Server) respond(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondStatus(w http.ResponseWriter, code int, msg string) {
	s.respond(w, code, map[string]string{"error": msg})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, plan.ErrNotFound):
		s.respondStatus(w, http.StatusNotFound, err.Error())
	case errors.Is(err, plan.ErrInvalidRange),
		errors.Is(err, plan.ErrInvalidStatus),
		errors.Is(err, plan.ErrInvalidTaskType),
		errors.Is(err, plan.ErrNoOp),
		errors.Is(err, plan.ErrSummaryReadOnly),
		errors.Is(err, plan.ErrDuplicateID):
		s.respondStatus(w, http.StatusBadRequest, err.Error())
	default:
		s.respondStatus(w, http.StatusInternalServerError, err.Error())
	}
}
