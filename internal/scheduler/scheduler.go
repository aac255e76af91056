// Package scheduler provides cron-based background jobs for Barbara.
//
// Its main duty is the periodic eviction sweep that drops conversation
// memories idle past the retention window.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultEvictionExpr runs the eviction sweep at the top of every hour.
const DefaultEvictionExpr = "0 * * * *"

// MemoryEvictor is the subset of the memory store the scheduler drives.
type MemoryEvictor interface {
	EvictIdle(maxIdle time.Duration) int
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic recovery.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ArmEviction schedules the idle-memory sweep on the given cron expression.
func (s *Scheduler) ArmEviction(expr string, store MemoryEvictor, maxIdle time.Duration) error {
	if expr == "" {
		expr = DefaultEvictionExpr
	}
	err := s.AddJob(expr, func() {
		evicted := store.EvictIdle(maxIdle)
		slog.Debug("Scheduler eviction sweep completed", "evicted", evicted, "max_idle", maxIdle)
	})
	if err != nil {
		return err
	}
	slog.Info("Scheduler eviction sweep armed", "expr", expr, "max_idle", maxIdle)
	return nil
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
