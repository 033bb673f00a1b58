package task

import (
	"sort"
	"strings"
	"time"
)

// Column is a sortable task column.
type Column string

const (
	ColCreatedAt Column = "created_at"
	ColUpdatedAt Column = "updated_at"
	ColDueDate   Column = "due_date"
	ColTitle     Column = "title"
	ColStatus    Column = "status"
)

func (c Column) Valid() bool {
	switch c {
	case ColCreatedAt, ColUpdatedAt, ColDueDate, ColTitle, ColStatus:
		return true
	}
	return false
}

// Order is a single sort key plus direction.
type Order struct {
	Column    Column `json:"column"`
	Ascending bool   `json:"ascending"`
}

// Criteria is the active search/filter/sort configuration. It is replaced
// wholesale on user interaction; a replacement triggers a refetch.
type Criteria struct {
	Search string `json:"search"`
	Status Status `json:"status"` // empty = no status filter
	Order  Order  `json:"order"`
}

// DefaultCriteria is newest-first with no filters.
func DefaultCriteria() Criteria {
	return Criteria{Order: Order{Column: ColCreatedAt, Ascending: false}}
}

// Matches reports whether the task passes the criteria's filters.
func (c Criteria) Matches(t Task) bool {
	if c.Status != "" && t.Status != c.Status {
		return false
	}
	if c.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(c.Search)) {
		return false
	}
	return true
}

// Apply returns the subset of tasks matching the criteria, stably sorted by
// the criteria's order. Equal keys preserve their relative order. Missing
// sort-key values (nil due dates) sort first when ascending, last when
// descending. The input slice is not modified.
func Apply(tasks []Task, c Criteria) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if c.Matches(t) {
			out = append(out, t)
		}
	}

	col := c.Order.Column
	if !col.Valid() {
		col = ColCreatedAt
	}
	asc := c.Order.Ascending

	sort.SliceStable(out, func(i, j int) bool {
		av, aOK := sortKey(out[i], col)
		bv, bOK := sortKey(out[j], col)
		if aOK != bOK {
			// Missing values first ascending, last descending.
			if asc {
				return !aOK
			}
			return aOK
		}
		if av == bv {
			return false
		}
		if asc {
			return av < bv
		}
		return av > bv
	})
	return out
}

// sortKey returns a lexically comparable key for the column plus a presence
// flag. Timestamps use fixed-width RFC 3339 UTC so string comparison matches
// chronological order.
func sortKey(t Task, col Column) (string, bool) {
	switch col {
	case ColUpdatedAt:
		return timeKey(t.UpdatedAt)
	case ColDueDate:
		if t.DueDate == nil {
			return "", false
		}
		return t.DueDate.String(), true
	case ColTitle:
		return strings.ToLower(t.Title), true
	case ColStatus:
		return string(t.Status), true
	default:
		return timeKey(t.CreatedAt)
	}
}

func timeKey(t time.Time) (string, bool) {
	if t.IsZero() {
		return "", false
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000"), true
}
