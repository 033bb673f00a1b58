// Package cron schedules background refreshes for the dashboard: a
// midnight job, because dueToday/overdue are date-relative and go stale
// at the day boundary, and an optional poll job used when the realtime
// feed is unavailable.
package cron

import (
	"fmt"
	"log"
	"time"

	rcron "github.com/robfig/cron/v3"
)

const midnightExpr = "0 0 * * *"

type Service struct {
	cron      *rcron.Cron
	OnRefresh func()
}

func NewService(onRefresh func()) *Service {
	return &Service{
		cron:      rcron.New(),
		OnRefresh: onRefresh,
	}
}

// EnableMidnightRefresh registers the day-boundary metrics refresh.
func (s *Service) EnableMidnightRefresh() error {
	_, err := s.cron.AddFunc(midnightExpr, func() {
		log.Printf("[cron] day boundary, refreshing")
		s.refresh()
	})
	if err != nil {
		return fmt.Errorf("register midnight refresh: %w", err)
	}
	return nil
}

// EnablePolling registers a periodic refresh at the given cadence. Used
// as the fallback when no push feed is attached.
func (s *Service) EnablePolling(every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", every), s.refresh)
	if err != nil {
		return fmt.Errorf("register poll refresh: %w", err)
	}
	return nil
}

func (s *Service) refresh() {
	if s.OnRefresh == nil {
		return
	}
	s.OnRefresh()
}

func (s *Service) Start() {
	s.cron.Start()
	log.Printf("[cron] started with %d entries", len(s.cron.Entries()))
}

func (s *Service) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[cron] stop timeout waiting for running jobs")
	}
	log.Printf("[cron] stopped")
}
