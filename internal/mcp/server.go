package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ldi/optiflow/internal/calendar"
	"github.com/ldi/optiflow/internal/db"
	"github.com/ldi/optiflow/internal/plan"
	"github.com/ldi/optiflow/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server.
func NewServer(database *db.DB) *server.MCPServer {
	s := server.NewMCPServer("OptiFlow", "0.1.0")

	// Project Management
	s.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects with task counts, progress and date ranges."),
	), listProjectsHandler(database))

	s.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a new project."),
		mcp.WithString("name", mcp.Description("Project name"), mcp.Required()),
		mcp.WithString("code", mcp.Description("Short unique project code, used as the task code prefix (e.g. 'PRJ')"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Project description")),
	), createProjectHandler(database))

	s.AddTool(mcp.NewTool("get_project",
		mcp.WithDescription("Get a single project by code."),
		mcp.WithString("code", mcp.Description("Project code"), mcp.Required()),
	), getProjectHandler(database))

	s.AddTool(mcp.NewTool("delete_project",
		mcp.WithDescription("Delete a project and all of its tasks."),
		mcp.WithString("code", mcp.Description("Project code"), mcp.Required()),
	), deleteProjectHandler(database))

	// Task Management
	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List a project's tasks in outline order with WBS codes."),
		mcp.WithString("project_code", mcp.Description("Project code"), mcp.Required()),
		mcp.WithBoolean("visible_only", mcp.Description("Hide tasks inside collapsed summaries")),
	), listTasksHandler(database))

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task. Give either an end date or an estimate in working days; the other is derived."),
		mcp.WithString("project_code", mcp.Description("Project code"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description"), mcp.Required()),
		mcp.WithString("start_date", mcp.Description("Start date (YYYY-MM-DD)"), mcp.Required()),
		mcp.WithString("end_date", mcp.Description("End date (YYYY-MM-DD)")),
		mcp.WithNumber("estimate", mcp.Description("Estimate in working days")),
		mcp.WithString("parent_task_id", mcp.Description("Task code of the parent to nest under (e.g. 'PRJ-001')")),
		mcp.WithString("resource", mcp.Description("Assigned resource name")),
		mcp.WithString("status", mcp.Description("Task status (must be a configured status)")),
		mcp.WithString("task_type", mcp.Description("Task type (Task or Milestone)")),
	), createTaskHandler(database))

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update task fields. Dates and estimate of summary tasks are derived and cannot be set."),
		mcp.WithString("project_code", mcp.Description("Project code"), mcp.Required()),
		mcp.WithString("task_id", mcp.Description("Task code (e.g. 'PRJ-001')"), mcp.Required()),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("start_date", mcp.Description("New start date (YYYY-MM-DD)")),
		mcp.WithString("end_date", mcp.Description("New end date (YYYY-MM-DD)")),
		mcp.WithNumber("estimate", mcp.Description("New estimate in working days")),
		mcp.WithString("resource", mcp.Description("New resource name")),
		mcp.WithString("status", mcp.Description("New status")),
		mcp.WithString("task_type", mcp.Description("New task type")),
		mcp.WithNumber("progress", mcp.Description("Progress percent (0-100)")),
		mcp.WithString("parent_ids", mcp.Description("Comma-separated predecessor task codes")),
	), updateTaskHandler(database))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task and its whole subtree."),
		mcp.WithString("project_code", mcp.Description("Project code"), mcp.Required()),
		mcp.WithString("task_id", mcp.Description("Task code"), mcp.Required()),
	), deleteTaskHandler(database))

	// Outline Management
	s.AddTool(mcp.NewTool("indent_task",
		mcp.WithDescription("Indent a task one level, nesting it under its preceding sibling."),
		mcp.WithString("project_code", mcp.Description("Project code"), mcp.Required()),
		mcp.WithString("task_id", mcp.Description("Task code"), mcp.Required()),
	), outlineHandler(database, (*plan.Plan).Indent))

	s.AddTool(mcp.NewTool("outdent_task",
		mcp.WithDescription("Outdent a task one level, placing it after its former parent."),
		mcp.WithString("project_code", mcp.Description("Project code"), mcp.Required()),
		mcp.WithString("task_id", mcp.Description("Task code"), mcp.Required()),
	), outlineHandler(database, (*plan.Plan).Outdent))

	s.AddTool(mcp.NewTool("reorder_task",
		mcp.WithDescription("Move a task to a new position among its siblings, or under a new parent."),
		mcp.WithString("project_code", mcp.Description("Project code"), mcp.Required()),
		mcp.WithString("task_id", mcp.Description("Task code"), mcp.Required()),
		mcp.WithNumber("new_index", mcp.Description("Target position within the sibling group"), mcp.Required()),
		mcp.WithString("new_parent_task_id", mcp.Description("Task code of the new parent ('' for root level)")),
	), reorderTaskHandler(database))

	s.AddTool(mcp.NewTool("toggle_expand",
		mcp.WithDescription("Toggle a summary task between expanded and collapsed."),
		mcp.WithString("project_code", mcp.Description("Project code"), mcp.Required()),
		mcp.WithString("task_id", mcp.Description("Task code"), mcp.Required()),
	), toggleExpandHandler(database))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// loadProjectPlan resolves a project by code and builds its plan.
func loadProjectPlan(ctx context.Context, database *db.DB, code string) (*models.Project, *plan.Plan, error) {
	p, err := database.GetProjectByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, fmt.Errorf("project with code '%s' not found", code)
	}

	settings, err := database.GetSettings(ctx)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := database.ListTasks(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	pl, err := plan.Load(p.Code, settings.StatusNames(), settings.TaskTypeNames(), tasks)
	if err != nil {
		return nil, nil, err
	}
	return p, pl, nil
}

func storeProjectPlan(ctx context.Context, database *db.DB, p *models.Project, pl *plan.Plan) error {
	tasks := pl.Tasks()
	for _, t := range tasks {
		t.ProjectID = p.ID
	}
	return database.ReplaceProjectTasks(ctx, p.ID, tasks)
}

func resultJSON(data any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func listProjectsHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := database.ListProjects(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return resultJSON(projects)
	}
}

func createProjectHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p := &models.Project{
			Name:        mcp.ParseString(request, "name", ""),
			Code:        mcp.ParseString(request, "code", ""),
			Description: mcp.ParseString(request, "description", ""),
		}
		if p.Name == "" || p.Code == "" {
			return mcp.NewToolResultError("name and code are required"), nil
		}
		if err := database.CreateProject(ctx, p); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Project '%s' created with code '%s'", p.Name, p.Code)), nil
	}
}

func getProjectHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "code", "")
		p, err := database.GetProjectByCode(ctx, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if p == nil {
			return mcp.NewToolResultError(fmt.Sprintf("project with code '%s' not found", code)), nil
		}
		return resultJSON(p)
	}
}

func deleteProjectHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "code", "")
		p, err := database.GetProjectByCode(ctx, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if p == nil {
			return mcp.NewToolResultError(fmt.Sprintf("project with code '%s' not found", code)), nil
		}
		if err := database.DeleteProject(ctx, p.ID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Project '%s' deleted", code)), nil
	}
}

func listTasksHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "project_code", "")
		_, pl, err := loadProjectPlan(ctx, database, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		tasks := pl.Tasks()
		if mcp.ParseBoolean(request, "visible_only", false) {
			tasks = pl.VisibleTasks()
		}
		return resultJSON(tasks)
	}
}

func createTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "project_code", "")
		p, pl, err := loadProjectPlan(ctx, database, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		start, err := calendar.Parse(mcp.ParseString(request, "start_date", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t := &models.Task{
			Description: mcp.ParseString(request, "description", ""),
			StartDate:   start,
			Estimate:    mcp.ParseFloat64(request, "estimate", 0),
			Resource:    mcp.ParseString(request, "resource", ""),
			Status:      mcp.ParseString(request, "status", ""),
			TaskType:    models.TaskType(mcp.ParseString(request, "task_type", "")),
		}
		if raw := mcp.ParseString(request, "end_date", ""); raw != "" {
			end, err := calendar.Parse(raw)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			t.EndDate = end
		}

		parentID := ""
		if parentCode := mcp.ParseString(request, "parent_task_id", ""); parentCode != "" {
			parent, err := pl.GetByCode(parentCode)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("parent task '%s' not found", parentCode)), nil
			}
			parentID = parent.ID
		}

		if _, err := pl.CreateTask(parentID, t); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := storeProjectPlan(ctx, database, p, pl); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return resultJSON(t)
	}
}

func updateTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "project_code", "")
		p, pl, err := loadProjectPlan(ctx, database, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		taskCode := mcp.ParseString(request, "task_id", "")
		t, err := pl.GetByCode(taskCode)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("task '%s' not found", taskCode)), nil
		}

		var upd plan.TaskUpdate
		args, _ := request.Params.Arguments.(map[string]any)
		if v, ok := args["description"].(string); ok {
			upd.Description = &v
		}
		if v, ok := args["start_date"].(string); ok {
			d, err := calendar.Parse(v)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			upd.StartDate = &d
		}
		if v, ok := args["end_date"].(string); ok {
			d, err := calendar.Parse(v)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			upd.EndDate = &d
		}
		if v, ok := args["estimate"].(float64); ok {
			upd.Estimate = &v
		}
		if v, ok := args["resource"].(string); ok {
			upd.Resource = &v
		}
		if v, ok := args["status"].(string); ok {
			upd.Status = &v
		}
		if v, ok := args["task_type"].(string); ok {
			upd.TaskType = &v
		}
		if v, ok := args["progress"].(float64); ok {
			progress := int(v)
			upd.Progress = &progress
		}
		if v, ok := args["parent_ids"].(string); ok {
			upd.ParentIDs = &v
		}

		if _, err := pl.UpdateTask(t.ID, upd); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := storeProjectPlan(ctx, database, p, pl); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return resultJSON(t)
	}
}

func deleteTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "project_code", "")
		p, pl, err := loadProjectPlan(ctx, database, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		taskCode := mcp.ParseString(request, "task_id", "")
		t, err := pl.GetByCode(taskCode)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("task '%s' not found", taskCode)), nil
		}
		if _, err := pl.Delete(t.ID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := storeProjectPlan(ctx, database, p, pl); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task '%s' deleted", taskCode)), nil
	}
}

// outlineHandler adapts a structural plan operation into a tool handler.
func outlineHandler(database *db.DB, op func(*plan.Plan, string) ([]*models.Task, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "project_code", "")
		p, pl, err := loadProjectPlan(ctx, database, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		taskCode := mcp.ParseString(request, "task_id", "")
		t, err := pl.GetByCode(taskCode)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("task '%s' not found", taskCode)), nil
		}
		affected, err := op(pl, t.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := storeProjectPlan(ctx, database, p, pl); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return resultJSON(affected)
	}
}

func reorderTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "project_code", "")
		p, pl, err := loadProjectPlan(ctx, database, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		taskCode := mcp.ParseString(request, "task_id", "")
		t, err := pl.GetByCode(taskCode)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("task '%s' not found", taskCode)), nil
		}

		newIndex := mcp.ParseInt(request, "new_index", 0)
		var newParentID *string
		args, _ := request.Params.Arguments.(map[string]any)
		if v, ok := args["new_parent_task_id"].(string); ok {
			parentID := ""
			if v != "" {
				parent, err := pl.GetByCode(v)
				if err != nil {
					return mcp.NewToolResultError(fmt.Sprintf("parent task '%s' not found", v)), nil
				}
				parentID = parent.ID
			}
			newParentID = &parentID
		}

		affected, err := pl.Reorder(t.ID, newIndex, newParentID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := storeProjectPlan(ctx, database, p, pl); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return resultJSON(affected)
	}
}

func toggleExpandHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "project_code", "")
		p, pl, err := loadProjectPlan(ctx, database, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		taskCode := mcp.ParseString(request, "task_id", "")
		t, err := pl.GetByCode(taskCode)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("task '%s' not found", taskCode)), nil
		}
		toggled, err := pl.ToggleExpand(t.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := storeProjectPlan(ctx, database, p, pl); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return resultJSON(toggled)
	}
}
