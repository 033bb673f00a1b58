package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/tasklabs/taskmate/internal/task"
)

func TestNextStatusCycle(t *testing.T) {
	if nextStatus(task.StatusTodo) != task.StatusInProgress {
		t.Error("todo should advance to inprogress")
	}
	if nextStatus(task.StatusInProgress) != task.StatusDone {
		t.Error("inprogress should advance to done")
	}
	if nextStatus(task.StatusDone) != task.StatusTodo {
		t.Error("done should wrap to todo")
	}
}

func TestNextStatusFilterCycle(t *testing.T) {
	order := []task.Status{"", task.StatusTodo, task.StatusInProgress, task.StatusDone}
	s := task.Status("")
	for i := 1; i <= len(order); i++ {
		s = nextStatusFilter(s)
		want := order[i%len(order)]
		if s != want {
			t.Fatalf("step %d: got %q, want %q", i, s, want)
		}
	}
}

func TestNextColumnCycles(t *testing.T) {
	seen := map[task.Column]bool{}
	c := task.ColCreatedAt
	for i := 0; i < len(columnCycle); i++ {
		seen[c] = true
		c = nextColumn(c)
	}
	if c != task.ColCreatedAt {
		t.Errorf("cycle did not wrap, ended at %q", c)
	}
	if len(seen) != len(columnCycle) {
		t.Errorf("cycle skipped columns: %v", seen)
	}
	if nextColumn(task.Column("bogus")) != task.ColCreatedAt {
		t.Error("unknown column should reset to created_at")
	}
}

func TestTaskItemLine(t *testing.T) {
	due := task.NewDate(2026, time.September, 5)
	it := taskItem{t: task.Task{Title: "pack bags", Status: task.StatusDone, DueDate: &due}}

	line := it.line()
	if !strings.Contains(line, glyphDone) {
		t.Errorf("done glyph missing: %q", line)
	}
	if !strings.Contains(line, "pack bags") || !strings.Contains(line, "2026-09-05") {
		t.Errorf("line = %q", line)
	}

	if it.FilterValue() != "pack bags" {
		t.Errorf("filter value = %q", it.FilterValue())
	}
}
