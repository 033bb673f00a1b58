package task

import (
	"fmt"
	"testing"
	"time"
)

func mkTask(id, title string, s Status, created time.Time, due *Date) Task {
	return Task{ID: id, Title: title, Status: s, CreatedAt: created, UpdatedAt: created, DueDate: due}
}

func TestCriteriaMatches(t *testing.T) {
	tk := mkTask("1", "Buy groceries", StatusTodo, time.Now(), nil)

	if !(Criteria{}).Matches(tk) {
		t.Error("empty criteria should match everything")
	}
	if !(Criteria{Search: "GROC"}).Matches(tk) {
		t.Error("search should be case-insensitive")
	}
	if (Criteria{Search: "laundry"}).Matches(tk) {
		t.Error("non-matching search should exclude")
	}
	if !(Criteria{Status: StatusTodo}).Matches(tk) {
		t.Error("matching status filter should include")
	}
	if (Criteria{Status: StatusDone}).Matches(tk) {
		t.Error("non-matching status filter should exclude")
	}
	if (Criteria{Search: "groc", Status: StatusDone}).Matches(tk) {
		t.Error("filters combine with AND")
	}
}

func TestApplyDefaultOrder(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tasks := []Task{
		mkTask("a", "oldest", StatusTodo, base, nil),
		mkTask("b", "middle", StatusTodo, base.Add(time.Hour), nil),
		mkTask("c", "newest", StatusTodo, base.Add(2*time.Hour), nil),
	}

	got := Apply(tasks, DefaultCriteria())
	if len(got) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" || got[2].ID != "a" {
		t.Errorf("expected newest-first, got %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}

	// Input order must be untouched.
	if tasks[0].ID != "a" {
		t.Error("Apply modified its input")
	}
}

func TestApplyFilterThenSort(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		mkTask("1", "alpha", StatusDone, base.Add(3*time.Hour), nil),
		mkTask("2", "bravo", StatusTodo, base.Add(2*time.Hour), nil),
		mkTask("3", "alpha two", StatusTodo, base.Add(time.Hour), nil),
	}

	crit := Criteria{Search: "alpha", Order: Order{Column: ColCreatedAt, Ascending: true}}
	got := Apply(tasks, crit)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != "3" || got[1].ID != "1" {
		t.Errorf("expected ascending created_at order, got %s %s", got[0].ID, got[1].ID)
	}
}

func TestApplySortByTitleCaseInsensitive(t *testing.T) {
	now := time.Now()
	tasks := []Task{
		mkTask("1", "banana", StatusTodo, now, nil),
		mkTask("2", "Apple", StatusTodo, now, nil),
		mkTask("3", "cherry", StatusTodo, now, nil),
	}

	got := Apply(tasks, Criteria{Order: Order{Column: ColTitle, Ascending: true}})
	if got[0].ID != "2" || got[1].ID != "1" || got[2].ID != "3" {
		t.Errorf("expected Apple banana cherry, got %s %s %s", got[0].Title, got[1].Title, got[2].Title)
	}
}

func TestApplyNullDueDates(t *testing.T) {
	now := time.Now()
	early := NewDate(2026, time.August, 1)
	late := NewDate(2026, time.August, 20)
	tasks := []Task{
		mkTask("due-late", "x", StatusTodo, now, &late),
		mkTask("no-due", "x", StatusTodo, now, nil),
		mkTask("due-early", "x", StatusTodo, now, &early),
	}

	asc := Apply(tasks, Criteria{Order: Order{Column: ColDueDate, Ascending: true}})
	if asc[0].ID != "no-due" {
		t.Errorf("ascending: nulls should sort first, got %s", asc[0].ID)
	}
	if asc[1].ID != "due-early" || asc[2].ID != "due-late" {
		t.Errorf("ascending order wrong: %s %s", asc[1].ID, asc[2].ID)
	}

	desc := Apply(tasks, Criteria{Order: Order{Column: ColDueDate, Ascending: false}})
	if desc[len(desc)-1].ID != "no-due" {
		t.Errorf("descending: nulls should sort last, got %s", desc[len(desc)-1].ID)
	}
	if desc[0].ID != "due-late" {
		t.Errorf("descending: latest due first, got %s", desc[0].ID)
	}
}

func TestApplyStableOnEqualKeys(t *testing.T) {
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var tasks []Task
	for i := 0; i < 10; i++ {
		tasks = append(tasks, mkTask(fmt.Sprintf("t%d", i), "same", StatusTodo, created, nil))
	}

	got := Apply(tasks, Criteria{Order: Order{Column: ColCreatedAt, Ascending: true}})
	for i := range got {
		if got[i].ID != fmt.Sprintf("t%d", i) {
			t.Fatalf("equal keys must preserve input order, pos %d got %s", i, got[i].ID)
		}
	}
}

func TestApplyInvalidColumnFallsBack(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		mkTask("old", "x", StatusTodo, base, nil),
		mkTask("new", "x", StatusTodo, base.Add(time.Hour), nil),
	}

	got := Apply(tasks, Criteria{Order: Order{Column: Column("bogus")}})
	if got[0].ID != "new" {
		t.Errorf("invalid column should fall back to created_at desc, got %s first", got[0].ID)
	}
}
