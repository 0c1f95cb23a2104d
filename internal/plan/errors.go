package plan

import (
	"errors"

	"github.com/ldi/optiflow/internal/calendar"
)

// Error kinds surfaced to the host layer. Hosts match with errors.Is and are
// responsible for translating these into user-facing messages.
var (
	// ErrNotFound means an operation referenced a task id absent from the plan.
	ErrNotFound = errors.New("task not found")

	// ErrDuplicateID means an insert collided with an existing task id.
	ErrDuplicateID = errors.New("duplicate task id")

	// ErrInvalidRange covers end-before-start dates and negative estimates.
	ErrInvalidRange = calendar.ErrInvalidRange

	// ErrNoOp marks structural operations that have nothing to do: indenting a
	// first sibling or outdenting a root task. The plan is unchanged.
	ErrNoOp = errors.New("nothing to do")

	// ErrInvalidStatus means a status outside the configured set was supplied.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTaskType means a task type outside the configured set was supplied.
	ErrInvalidTaskType = errors.New("invalid task type")

	// ErrSummaryReadOnly means a derived field of a summary task was set directly.
	ErrSummaryReadOnly = errors.New("field is derived for summary tasks")

	// ErrInvariant marks a defensive check failure, e.g. a cycle in the parent
	// relation. It should never occur when the engine is used correctly.
	ErrInvariant = errors.New("hierarchy invariant violated")
)
