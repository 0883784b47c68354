// Package scheduler keeps the reference datasets fresh. It reloads them when
// a file changes on disk, runs a full refresh twice a day and warns when the
// data goes stale.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dimi-lab/trader/interfaces"
	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/metrics"
	"github.com/dimi-lab/trader/recordsparser/entities"
	"github.com/dimi-lab/trader/validation"
	"github.com/go-co-op/gocron"
)

// Reload triggers, used as metric labels.
const (
	TriggerStartup = "startup"
	TriggerChange  = "change"
	TriggerDaily   = "daily"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles data updates and health monitoring using dependency injection
type Scheduler struct {
	dataStore      interfaces.DataStore
	loader         interfaces.ReferenceLoader
	validator      interfaces.DataValidator
	scheduler      *gocron.Scheduler
	reloadInterval time.Duration

	mu         sync.Mutex
	identities map[string]entities.FileIdentity

	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates a new scheduler instance with injected dependencies.
// reloadInterval is how often the reference files are checked for changes.
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.ReferenceLoader, validator interfaces.DataValidator, reloadInterval time.Duration) *Scheduler {
	if reloadInterval <= 0 {
		reloadInterval = 10 * time.Minute
	}
	return &Scheduler{
		dataStore:      dataStore,
		loader:         loader,
		validator:      validator,
		scheduler:      gocron.NewScheduler(time.Local),
		reloadInterval: reloadInterval,
		identities:     make(map[string]entities.FileIdentity),
		done:           make(chan struct{}),
	}
}

// Start performs the initial load, then schedules change checks, the daily
// refresh and health monitoring. Only scheduling failures are returned.
func (s *Scheduler) Start() error {
	// Initial load. Files that are missing now are picked up by the change checks.
	if err := s.updateData(context.Background(), TriggerStartup); err != nil {
		logging.Error("Failed to perform initial data load", "error", err)
	}

	minutes := max(int(s.reloadInterval/time.Minute), 1)
	_, err := s.scheduler.Every(minutes).Minutes().WaitForSchedule().Do(func() {
		if _, err := s.CheckForChanges(context.Background()); err != nil {
			logging.Error("Failed to reload changed reference data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule change checks", "error", err)
		return fmt.Errorf("failed to schedule change checks: %w", err)
	}

	// Schedule full refreshes at 06:00 and 18:00 daily
	_, err = s.scheduler.Every(1).Days().At("06:00;18:00").Do(func() {
		if err := s.Refresh(context.Background()); err != nil {
			logging.Error("Failed to refresh reference data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule updates", "error", err)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	s.scheduler.StartAsync()

	// Start health monitoring
	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler and the health monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.stopOnce.Do(func() { close(s.done) })
}

// CheckForChanges reloads the reference data when any file identity differs
// from the one seen at the last load. It reports whether a reload ran.
func (s *Scheduler) CheckForChanges(ctx context.Context) (bool, error) {
	current := s.loader.Identities()

	s.mu.Lock()
	var changed []string
	for name, id := range current {
		if prev, ok := s.identities[name]; !ok || !prev.Equal(id) {
			changed = append(changed, name)
		}
	}
	s.mu.Unlock()

	if len(changed) == 0 {
		logging.Debug("Reference files unchanged")
		return false, nil
	}

	logging.Info("Reference files changed", "datasets", changed)
	return true, s.updateData(ctx, TriggerChange)
}

// Refresh re-downloads the orphan drug file when a source is configured and
// reloads everything. A failed download keeps the file already on disk.
func (s *Scheduler) Refresh(ctx context.Context) error {
	if err := s.loader.RefreshOrphanDrugs(ctx); err != nil {
		logging.Warn("Orphan drug download failed, keeping current file", "error", err)
	}
	return s.updateData(ctx, TriggerDaily)
}

// updateData loads the reference files and swaps them into the data store
func (s *Scheduler) updateData(ctx context.Context, trigger string) error {
	// Prevent concurrent updates
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info("Starting reference data update", "trigger", trigger, "started_at", time.Now().Format(time.RFC3339))
	start := time.Now()

	ref, err := s.loader.Load(ctx)
	if ref == nil {
		metrics.ObserveReload(trigger, nil, err)
		return fmt.Errorf("failed to load reference data: %w", err)
	}

	var report *interfaces.DataQualityReport
	if err == nil {
		report = s.validator.ReportDataQuality(ref)
		validation.LogReport(report)
	}

	// statuses are recorded even when nothing loaded, previous datasets stay in place
	s.dataStore.UpdateData(ref, report)
	s.rememberIdentities(ref.Files)

	records := make(map[string]int, len(ref.Files))
	for name, status := range s.dataStore.GetFileStatus() {
		records[name] = status.Records
	}
	metrics.ObserveReload(trigger, records, err)

	if err != nil {
		return fmt.Errorf("failed to load reference data: %w", err)
	}

	logging.Info("Reference data update completed",
		"trigger", trigger,
		"duration", time.Since(start).String(),
		"trials", len(ref.Trials),
		"associations", ref.GeneDisease.Len(),
		"orphan_drugs", ref.OrphanDrugs.Len(),
		"reactor_rows", ref.Reactor.Len())

	return nil
}

func (s *Scheduler) rememberIdentities(files map[string]entities.FileStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, status := range files {
		s.identities[name] = status.Identity
	}
}

// startHealthMonitoring monitors the health of the data updates
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				lastUpdate := s.dataStore.GetLastUpdated()
				if time.Since(lastUpdate) > 25*time.Hour {
					logging.Warn("Reference data hasn't been updated in over 25 hours")
				}
				for name, status := range s.dataStore.GetFileStatus() {
					if status.Error != "" {
						logging.Warn("Reference dataset has a pending load error", "dataset", name, "error", status.Error)
					}
				}
			}
		}
	}()
}
