package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dimi-lab/trader/data"
	"github.com/dimi-lab/trader/recordsparser/entities"
	"github.com/dimi-lab/trader/validation"
)

// mockLoader serves a fixed snapshot and lets tests move file identities.
type mockLoader struct {
	mu           sync.Mutex
	loadCount    int
	refreshCount int
	shouldFail   bool
	refreshErr   error
	identities   map[string]entities.FileIdentity
	trials       []entities.TrialRecord
}

func newMockLoader() *mockLoader {
	return &mockLoader{
		identities: map[string]entities.FileIdentity{
			entities.DatasetTrials: {Path: "clinical_trials.tsv", Size: 10, ModTime: time.Unix(1000, 0)},
		},
		trials: []entities.TrialRecord{
			{ClinicalTrialID: "NCT001", StudyTitle: "BRCA1 study", ConditionGenePhenotype: "Breast cancer"},
			{ClinicalTrialID: "NCT002", StudyTitle: "GLA study", ConditionGenePhenotype: "Fabry disease"},
		},
	}
}

func (m *mockLoader) Load(ctx context.Context) (*entities.ReferenceData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCount++

	id := m.identities[entities.DatasetTrials]
	if m.shouldFail {
		ref := &entities.ReferenceData{Files: map[string]entities.FileStatus{
			entities.DatasetTrials: {Name: entities.DatasetTrials, Error: "read failed", Identity: id},
		}}
		return ref, errors.New("no reference dataset could be loaded")
	}

	return &entities.ReferenceData{
		Trials: m.trials,
		Files: map[string]entities.FileStatus{
			entities.DatasetTrials: {Name: entities.DatasetTrials, Loaded: true, Records: len(m.trials), Identity: id},
		},
	}, nil
}

func (m *mockLoader) Identities() map[string]entities.FileIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]entities.FileIdentity, len(m.identities))
	for k, v := range m.identities {
		ids[k] = v
	}
	return ids
}

func (m *mockLoader) RefreshOrphanDrugs(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCount++
	return m.refreshErr
}

func (m *mockLoader) touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.identities[entities.DatasetTrials]
	id.ModTime = id.ModTime.Add(time.Minute)
	m.identities[entities.DatasetTrials] = id
}

func newTestScheduler(loader *mockLoader) (*Scheduler, *data.DataContainer) {
	store := data.NewDataContainer()
	return NewScheduler(store, loader, validation.NewDataValidator(), time.Minute), store
}

func TestScheduler_SuccessfulUpdate(t *testing.T) {
	loader := newMockLoader()
	scheduler, store := newTestScheduler(loader)

	if err := scheduler.Start(); err != nil {
		t.Fatalf("Unexpected error during start: %v", err)
	}
	defer scheduler.Stop()

	if loader.loadCount != 1 {
		t.Errorf("Expected 1 load, got %d", loader.loadCount)
	}
	if got := len(store.GetTrials()); got != 2 {
		t.Errorf("Expected 2 trials, got %d", got)
	}
	if store.GetLastUpdated().IsZero() {
		t.Error("Expected last updated to be set")
	}
	if store.IsUpdating() {
		t.Error("Update flag should be released after the load")
	}
}

func TestScheduler_LoadFailure(t *testing.T) {
	loader := newMockLoader()
	loader.shouldFail = true
	scheduler, store := newTestScheduler(loader)

	if err := scheduler.Start(); err != nil {
		t.Fatalf("A failed initial load should not stop the scheduler: %v", err)
	}
	defer scheduler.Stop()

	if got := len(store.GetTrials()); got != 0 {
		t.Errorf("Expected no trials after a failed load, got %d", got)
	}
	status := store.GetFileStatus()[entities.DatasetTrials]
	if status.Loaded || status.Error == "" {
		t.Errorf("Expected the failure on the file status, got %+v", status)
	}

	// the file shows up later
	loader.mu.Lock()
	loader.shouldFail = false
	loader.mu.Unlock()
	loader.touch()

	reloaded, err := scheduler.CheckForChanges(context.Background())
	if err != nil || !reloaded {
		t.Fatalf("Expected a successful reload, got reloaded=%v err=%v", reloaded, err)
	}
	if got := len(store.GetTrials()); got != 2 {
		t.Errorf("Expected 2 trials after the reload, got %d", got)
	}
}

func TestScheduler_FailedReloadKeepsPreviousData(t *testing.T) {
	loader := newMockLoader()
	scheduler, store := newTestScheduler(loader)

	if err := scheduler.updateData(context.Background(), TriggerStartup); err != nil {
		t.Fatalf("initial load failed: %v", err)
	}

	loader.shouldFail = true
	loader.touch()
	reloaded, err := scheduler.CheckForChanges(context.Background())
	if !reloaded || err == nil {
		t.Fatalf("Expected a failed reload, got reloaded=%v err=%v", reloaded, err)
	}

	if got := len(store.GetTrials()); got != 2 {
		t.Errorf("Expected previous 2 trials to stay, got %d", got)
	}
	status := store.GetFileStatus()[entities.DatasetTrials]
	if !status.Loaded || status.Error == "" {
		t.Errorf("Expected previous status with the new error, got %+v", status)
	}
}

func TestScheduler_ConcurrentUpdatePrevention(t *testing.T) {
	loader := newMockLoader()
	scheduler, store := newTestScheduler(loader)

	// Simulate an update in progress
	store.BeginUpdate()

	if err := scheduler.Start(); err != nil {
		t.Errorf("Unexpected error during start with concurrent update: %v", err)
	}
	defer scheduler.Stop()

	if loader.loadCount != 0 {
		t.Errorf("Expected 0 loads due to concurrent update, got %d", loader.loadCount)
	}
}

func TestScheduler_CheckForChanges(t *testing.T) {
	loader := newMockLoader()
	scheduler, _ := newTestScheduler(loader)

	if err := scheduler.updateData(context.Background(), TriggerStartup); err != nil {
		t.Fatalf("initial load failed: %v", err)
	}

	reloaded, err := scheduler.CheckForChanges(context.Background())
	if err != nil || reloaded {
		t.Errorf("Expected no reload for unchanged files, got reloaded=%v err=%v", reloaded, err)
	}
	if loader.loadCount != 1 {
		t.Errorf("Expected 1 load, got %d", loader.loadCount)
	}

	loader.touch()
	reloaded, err = scheduler.CheckForChanges(context.Background())
	if err != nil || !reloaded {
		t.Errorf("Expected a reload after a file change, got reloaded=%v err=%v", reloaded, err)
	}
	if loader.loadCount != 2 {
		t.Errorf("Expected 2 loads, got %d", loader.loadCount)
	}

	// the new identity is now the reference point
	reloaded, _ = scheduler.CheckForChanges(context.Background())
	if reloaded {
		t.Error("Expected no reload once the change was picked up")
	}
}

func TestScheduler_RefreshDownloadFailureStillReloads(t *testing.T) {
	loader := newMockLoader()
	loader.refreshErr = errors.New("source unavailable")
	scheduler, store := newTestScheduler(loader)

	if err := scheduler.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if loader.refreshCount != 1 || loader.loadCount != 1 {
		t.Errorf("Expected 1 refresh and 1 load, got %d and %d", loader.refreshCount, loader.loadCount)
	}
	if got := len(store.GetTrials()); got != 2 {
		t.Errorf("Expected 2 trials, got %d", got)
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	scheduler, _ := newTestScheduler(newMockLoader())
	if err := scheduler.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	scheduler.Stop()
	scheduler.Stop()
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	scheduler := NewScheduler(data.NewDataContainer(), newMockLoader(), validation.NewDataValidator(), 0)
	if scheduler.reloadInterval != 10*time.Minute {
		t.Errorf("Expected default interval of 10m, got %v", scheduler.reloadInterval)
	}
}
