package cron

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPollingFires(t *testing.T) {
	var calls atomic.Int64
	s := NewService(func() { calls.Add(1) })

	if err := s.EnablePolling(50 * time.Millisecond); err != nil {
		t.Fatalf("enable polling: %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if calls.Load() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least 2 refreshes, got %d", calls.Load())
}

func TestPollingRejectsNonPositiveInterval(t *testing.T) {
	s := NewService(nil)
	if err := s.EnablePolling(0); err == nil {
		t.Error("zero interval must be rejected")
	}
	if err := s.EnablePolling(-time.Second); err == nil {
		t.Error("negative interval must be rejected")
	}
}

func TestMidnightRefreshRegisters(t *testing.T) {
	s := NewService(func() {})
	if err := s.EnableMidnightRefresh(); err != nil {
		t.Fatalf("enable midnight refresh: %v", err)
	}
	s.Start()
	s.Stop()
}

func TestNilCallbackIsSafe(t *testing.T) {
	s := NewService(nil)
	if err := s.EnablePolling(20 * time.Millisecond); err != nil {
		t.Fatalf("enable polling: %v", err)
	}
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
}
