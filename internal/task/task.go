package task

import (
	"fmt"
	"strings"
	"time"
)

// Status is the closed task lifecycle enum. Rows coming off the wire are
// normalized before they reach any in-memory collection, so code past the
// adapter boundary can assume one of the three values below.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
)

// NormalizeStatus maps backend spellings onto the canonical enum.
// Unknown or empty values collapse to todo.
func NormalizeStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "":
		return StatusTodo
	case "inprogress", "in_progress", "in-progress":
		return StatusInProgress
	case "done", "completed", "complete":
		return StatusDone
	default:
		return StatusTodo
	}
}

func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// Date is a calendar date with no time component. Wire format is YYYY-MM-DD.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// Today returns the current date in local time.
func Today() Date {
	return DateOf(time.Now())
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Equal(o Date) bool {
	return d.Year == o.Year && d.Month == o.Month && d.Day == o.Day
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Task is the central entity. The id is assigned by the store and immutable;
// created_at/updated_at are server-owned and read-only on the client.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      Status    `json:"status"`
	DueDate     *Date     `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Overdue reports whether the task is past due and not finished,
// compared at day granularity.
func (t Task) Overdue(today Date) bool {
	return t.DueDate != nil && t.DueDate.Before(today) && t.Status != StatusDone
}

// DueToday reports whether the task is due on the given day.
func (t Task) DueToday(today Date) bool {
	return t.DueDate != nil && t.DueDate.Equal(today)
}

// CreateInput carries the caller-supplied fields for a new task.
// Omitted optionals default server-side: status todo, description and
// due date null.
type CreateInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      Status  `json:"status,omitempty"`
	DueDate     *Date   `json:"due_date,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched by the store;
// only fields that are set are written.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
	DueDate     *Date   `json:"due_date,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.DueDate == nil
}

// Metrics is the derived aggregate snapshot: counts per status plus
// date-relative counts. Never persisted; recomputed from the store.
type Metrics struct {
	StatusCounts map[Status]int `json:"statusCounts"`
	DueToday     int            `json:"dueToday"`
	Overdue      int            `json:"overdue"`
}

func EmptyMetrics() Metrics {
	return Metrics{StatusCounts: map[Status]int{}}
}

// StrPtr is a convenience for building optional fields.
func StrPtr(s string) *string { return &s }

// StatusPtr is a convenience for building patches.
func StatusPtr(s Status) *Status { return &s }
