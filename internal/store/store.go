package store

import (
	"context"

	"github.com/tasklabs/taskmate/internal/task"
)

// Store is the data access contract against the remote task table.
// All operations may suspend on I/O and honor context cancellation.
type Store interface {
	// List returns all tasks matching the criteria, sorted per its order
	// (newest-first by default).
	List(ctx context.Context, c task.Criteria) ([]task.Task, error)

	// Get returns the task with the given id, or nil if no row exists.
	Get(ctx context.Context, id string) (*task.Task, error)

	// Create persists a new task and returns the stored row including the
	// server-assigned id and timestamps.
	Create(ctx context.Context, in task.CreateInput) (*task.Task, error)

	// Update writes only the fields set in the patch and returns the
	// updated row.
	Update(ctx context.Context, id string, p task.Patch) (*task.Task, error)

	// Delete removes the task. Deleting an already-absent id is a success.
	Delete(ctx context.Context, id string) error

	// Metrics computes the status histogram and date-relative counts.
	// Missing backing columns degrade that portion to zero/empty rather
	// than failing the whole call.
	Metrics(ctx context.Context) (task.Metrics, error)
}

// Feed delivers push notifications of remote row changes. Implementations
// are optional; a Core without a feed falls back to manual refresh.
type Feed interface {
	// Subscribe returns a channel of change events and a cancel function
	// that releases the subscription and closes the channel.
	Subscribe(ctx context.Context) (<-chan ChangeEvent, func(), error)
}

// ChangeType enumerates the push event kinds.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one remote row change. New is set for INSERT/UPDATE,
// Old for DELETE.
type ChangeEvent struct {
	Type ChangeType `json:"type"`
	New  *task.Task `json:"new,omitempty"`
	Old  *task.Task `json:"old,omitempty"`
}
