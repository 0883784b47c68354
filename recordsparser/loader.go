package recordsparser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/recordsparser/entities"
	"golang.org/x/sync/errgroup"
)

// LoaderConfig locates the backend reference files.
type LoaderConfig struct {
	DataDir         string
	TrialsFile      string
	GeneDiseaseFile string
	OrphanDrugsFile string
	ReactorFile     string
	OrphanDrugsURL  string
	Encodings       []string
}

// Loader reads the reference datasets from disk.
type Loader struct {
	cfg LoaderConfig
}

func NewLoader(cfg LoaderConfig) *Loader {
	if len(cfg.Encodings) == 0 {
		cfg.Encodings = DefaultEncodings
	}
	return &Loader{cfg: cfg}
}

// Paths returns the resolved path of every reference dataset.
func (l *Loader) Paths() map[string]string {
	resolve := func(name string) string {
		if filepath.IsAbs(name) || l.cfg.DataDir == "" {
			return filepath.Clean(name)
		}
		return filepath.Join(l.cfg.DataDir, name)
	}
	return map[string]string{
		entities.DatasetTrials:      resolve(l.cfg.TrialsFile),
		entities.DatasetGeneDisease: resolve(l.cfg.GeneDiseaseFile),
		entities.DatasetOrphanDrugs: resolve(l.cfg.OrphanDrugsFile),
		entities.DatasetReactor:     resolve(l.cfg.ReactorFile),
	}
}

// Identities stats every reference file. Missing files get a zero identity
// carrying only the path.
func (l *Loader) Identities() map[string]entities.FileIdentity {
	paths := l.Paths()
	identities := make(map[string]entities.FileIdentity, len(paths))
	for name, path := range paths {
		identities[name] = statIdentity(path)
	}
	return identities
}

func statIdentity(path string) entities.FileIdentity {
	id := entities.FileIdentity{Path: path}
	if info, err := os.Stat(path); err == nil {
		id.Size = info.Size()
		id.ModTime = info.ModTime()
	}
	return id
}

// ReadFile reads and decodes one file with the configured encodings.
func (l *Loader) ReadFile(path string) (string, string, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	text, enc, err := Decode(raw, l.cfg.Encodings)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return text, enc, nil
}

// RefreshOrphanDrugs downloads the orphan drug file when a source URL is configured.
func (l *Loader) RefreshOrphanDrugs(ctx context.Context) error {
	if l.cfg.OrphanDrugsURL == "" {
		return nil
	}
	path := l.Paths()[entities.DatasetOrphanDrugs]
	if _, err := DownloadFile(ctx, l.cfg.OrphanDrugsURL, path, l.cfg.Encodings); err != nil {
		return fmt.Errorf("orphan drug refresh: %w", err)
	}
	logging.Info("Orphan drug file refreshed", "url", l.cfg.OrphanDrugsURL, "path", path)
	return nil
}

// Load reads every reference dataset concurrently. A dataset that fails is
// left nil with the error recorded in its FileStatus; Load only returns an
// error when the context is cancelled or no dataset could be loaded at all.
func (l *Loader) Load(ctx context.Context) (*entities.ReferenceData, error) {
	start := time.Now()
	paths := l.Paths()

	ref := &entities.ReferenceData{
		Files: make(map[string]entities.FileStatus, len(paths)),
	}
	var mu sync.Mutex

	record := func(name string, status entities.FileStatus) {
		mu.Lock()
		ref.Files[name] = status
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range entities.DatasetNames {
		path := paths[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			status := entities.FileStatus{
				Name:     name,
				Path:     path,
				Identity: statIdentity(path),
				LoadedAt: time.Now(),
			}

			text, enc, err := l.ReadFile(path)
			if err != nil {
				status.Error = err.Error()
				logging.Warn("Reference file not loaded", "dataset", name, "path", path, "error", err)
				record(name, status)
				return nil
			}
			status.Encoding = enc

			count, err := l.parseInto(ref, &mu, name, text)
			if err != nil {
				status.Error = err.Error()
				logging.Warn("Reference file rejected", "dataset", name, "path", path, "error", err)
			} else {
				status.Loaded = true
				status.Records = count
			}
			record(name, status)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reference load cancelled: %w", err)
	}

	loaded := 0
	for _, status := range ref.Files {
		if status.Loaded {
			loaded++
		}
	}
	if loaded == 0 {
		return ref, fmt.Errorf("no reference dataset could be loaded from %s", l.cfg.DataDir)
	}

	logging.Info("Reference data loaded",
		"datasets_loaded", loaded,
		"datasets_total", len(paths),
		"trials", len(ref.Trials),
		"associations", ref.GeneDisease.Len(),
		"orphan_drugs", ref.OrphanDrugs.Len(),
		"reactor_rows", ref.Reactor.Len(),
		"duration", time.Since(start))
	return ref, nil
}

func (l *Loader) parseInto(ref *entities.ReferenceData, mu *sync.Mutex, name, text string) (int, error) {
	switch name {
	case entities.DatasetTrials:
		trials, _, err := MakeTrials(text)
		if err != nil {
			return 0, err
		}
		mu.Lock()
		ref.Trials = trials
		mu.Unlock()
		return len(trials), nil
	case entities.DatasetGeneDisease:
		table, _, err := MakeGeneDisease(text)
		if err != nil {
			return 0, err
		}
		mu.Lock()
		ref.GeneDisease = table
		mu.Unlock()
		return table.Len(), nil
	case entities.DatasetOrphanDrugs:
		table, _, err := MakeOrphanDrugs(text)
		if err != nil {
			return 0, err
		}
		mu.Lock()
		ref.OrphanDrugs = table
		mu.Unlock()
		return table.Len(), nil
	case entities.DatasetReactor:
		table, _, err := MakeComparisonTable(text)
		if err != nil {
			return 0, err
		}
		mu.Lock()
		ref.Reactor = table
		mu.Unlock()
		return table.Len(), nil
	}
	return 0, fmt.Errorf("unknown dataset %q", name)
}
