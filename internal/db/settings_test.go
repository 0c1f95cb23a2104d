package db

import (
	"context"
	"testing"

	"github.com/ldi/optiflow/pkg/models"
)

func TestSeedDefaults(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	settings, err := db.GetSettings(ctx)
	if err != nil {
		t.Fatalf("Failed to get settings: %v", err)
	}

	names := settings.StatusNames()
	if len(names) != 5 || names[0] != "Not Started" || names[3] != "Completed" {
		t.Errorf("Unexpected status order: %v", names)
	}
	types := settings.TaskTypeNames()
	if len(types) != 2 {
		t.Errorf("Expected Task and Milestone, got %v", types)
	}
}

func TestSettingsCRUD(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// 1. Resources
	r := &models.Resource{Name: "Alice", Email: "alice@example.com"}
	if err := db.CreateResource(ctx, r); err != nil {
		t.Fatalf("Failed to create resource: %v", err)
	}
	if r.ID == "" || r.Color == "" {
		t.Errorf("Expected generated ID and default color, got %+v", r)
	}

	// 2. Statuses append at the end of the ordered set
	st := &models.Status{Name: "Blocked", Color: "#000000"}
	if err := db.CreateStatus(ctx, st); err != nil {
		t.Fatalf("Failed to create status: %v", err)
	}
	if st.OrderIndex != 5 {
		t.Errorf("Expected order index 5 after the seed statuses, got %d", st.OrderIndex)
	}
	if err := db.CreateStatus(ctx, &models.Status{Name: "Blocked"}); err == nil {
		t.Errorf("Expected duplicate status name error")
	}

	// 3. Task types
	tt := &models.TaskTypeDef{Name: "Phase"}
	if err := db.CreateTaskType(ctx, tt); err != nil {
		t.Fatalf("Failed to create task type: %v", err)
	}

	settings, err := db.GetSettings(ctx)
	if err != nil {
		t.Fatalf("Failed to get settings: %v", err)
	}
	if len(settings.Resources) != 1 || len(settings.Statuses) != 6 || len(settings.TaskTypes) != 3 {
		t.Errorf("Unexpected settings counts: %d/%d/%d",
			len(settings.Resources), len(settings.Statuses), len(settings.TaskTypes))
	}

	// 4. Deletes
	if err := db.DeleteResource(ctx, r.ID); err != nil {
		t.Fatalf("Failed to delete resource: %v", err)
	}
	if err := db.DeleteResource(ctx, r.ID); err == nil {
		t.Errorf("Expected not found error on second delete")
	}
	if err := db.DeleteStatus(ctx, st.ID); err != nil {
		t.Fatalf("Failed to delete status: %v", err)
	}
	if err := db.DeleteTaskType(ctx, tt.ID); err != nil {
		t.Fatalf("Failed to delete task type: %v", err)
	}
}
