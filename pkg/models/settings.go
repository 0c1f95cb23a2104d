package models

// Resource is a team member that tasks can be assigned to. Assignment is by
// name only; there is no referential enforcement.
type Resource struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Color string `json:"color"`
}

// Status is a project-scoped task status. Statuses form an ordered set; the
// first entry is the initial status of newly created tasks.
type Status struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	OrderIndex int    `json:"order_index"`
}

// TaskTypeDef is a configured task type name (Task, Milestone, ...).
type TaskTypeDef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Settings bundles the configured enumerations consumed by the plan engine.
type Settings struct {
	Resources []Resource    `json:"resources"`
	Statuses  []Status      `json:"statuses"`
	TaskTypes []TaskTypeDef `json:"task_types"`
}

// StatusNames returns the configured status names in display order.
func (s Settings) StatusNames() []string {
	names := make([]string, len(s.Statuses))
	for i, st := range s.Statuses {
		names[i] = st.Name
	}
	return names
}

// TaskTypeNames returns the configured task type names.
func (s Settings) TaskTypeNames() []string {
	names := make([]string, len(s.TaskTypes))
	for i, tt := range s.TaskTypes {
		names[i] = tt.Name
	}
	return names
}
