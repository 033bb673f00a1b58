package task

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"todo":        StatusTodo,
		"":            StatusTodo,
		"TODO":        StatusTodo,
		"inprogress":  StatusInProgress,
		"in_progress": StatusInProgress,
		"in-progress": StatusInProgress,
		"done":        StatusDone,
		"completed":   StatusDone,
		"complete":    StatusDone,
		"  done  ":    StatusDone,
		"garbage":     StatusTodo,
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusTodo, StatusInProgress, StatusDone} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Status("archived").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if Status("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-09")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.Year != 2026 || d.Month != time.March || d.Day != 9 {
		t.Errorf("unexpected date: %+v", d)
	}
	if d.String() != "2026-03-09" {
		t.Errorf("String() = %q", d.String())
	}

	if _, err := ParseDate("03/09/2026"); err == nil {
		t.Error("expected error for non-ISO date")
	}
	if _, err := ParseDate("2026-13-01"); err == nil {
		t.Error("expected error for month 13")
	}
}

func TestDateOrdering(t *testing.T) {
	a := NewDate(2026, time.January, 31)
	b := NewDate(2026, time.February, 1)
	c := NewDate(2027, time.January, 1)

	if !a.Before(b) || !b.Before(c) {
		t.Error("expected a < b < c")
	}
	if b.Before(a) {
		t.Error("expected b not before a")
	}
	if !a.Equal(NewDate(2026, time.January, 31)) {
		t.Error("expected equal dates")
	}
	if a.Equal(b) {
		t.Error("expected different dates not equal")
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2026, time.August, 28)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2026-08-28"` {
		t.Errorf("marshal = %s", data)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d) {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestOverdueAndDueToday(t *testing.T) {
	today := NewDate(2026, time.August, 28)
	yesterday := NewDate(2026, time.August, 27)
	tomorrow := NewDate(2026, time.August, 29)

	mk := func(due *Date, s Status) Task {
		return Task{Title: "t", DueDate: due, Status: s}
	}

	if !mk(&yesterday, StatusTodo).Overdue(today) {
		t.Error("past due + todo should be overdue")
	}
	if mk(&yesterday, StatusDone).Overdue(today) {
		t.Error("done tasks are never overdue")
	}
	if mk(&today, StatusTodo).Overdue(today) {
		t.Error("due today is not overdue")
	}
	if mk(&tomorrow, StatusTodo).Overdue(today) {
		t.Error("future due is not overdue")
	}
	if mk(nil, StatusTodo).Overdue(today) {
		t.Error("no due date is never overdue")
	}

	if !mk(&today, StatusDone).DueToday(today) {
		t.Error("due today should report regardless of status")
	}
	if mk(&tomorrow, StatusTodo).DueToday(today) {
		t.Error("tomorrow is not due today")
	}
	if mk(nil, StatusTodo).DueToday(today) {
		t.Error("no due date is not due today")
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(Patch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
	if (Patch{Status: StatusPtr(StatusDone)}).IsEmpty() {
		t.Error("patch with status should not be empty")
	}
	if (Patch{Title: StrPtr("")}).IsEmpty() {
		t.Error("patch with set-but-empty title should not be empty")
	}
}
