// Command trader serves the TRADER patient matching API: clinical trial
// matching, rare disease drug matching and dataset comparison over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dimi-lab/trader/config"
	"github.com/dimi-lab/trader/data"
	"github.com/dimi-lab/trader/handlers"
	"github.com/dimi-lab/trader/health"
	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/matcher"
	"github.com/dimi-lab/trader/recordsparser"
	"github.com/dimi-lab/trader/scheduler"
	"github.com/dimi-lab/trader/server"
	"github.com/dimi-lab/trader/validation"
	"github.com/joho/godotenv"
)

// loadEnv reads .env from the working directory, falling back to the
// directory of the executable.
func loadEnv() error {
	if err := godotenv.Load(); err == nil {
		return nil
	}

	ex, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	exPath := filepath.Dir(ex)
	if err := os.Chdir(exPath); err != nil {
		return fmt.Errorf("failed to change directory: %w", err)
	}
	// no .env next to the binary either: plain environment variables only
	_ = godotenv.Load()
	return nil
}

func newEngine(cfg *config.Config) (*matcher.Engine, error) {
	text, err := matcher.NewTextMatcher(cfg.PatternCacheSize)
	if err != nil {
		return nil, err
	}
	categories, err := matcher.LoadExclusionCategories(cfg.ExclusionCategoriesFile)
	if err != nil {
		return nil, err
	}
	return matcher.NewEngine(text, categories)
}

// app is the wired service: reference cache, its scheduler and the HTTP server.
type app struct {
	store     *data.DataContainer
	scheduler *scheduler.Scheduler
	server    *server.Server
}

// newApp wires every component from cfg. The scheduler is not started.
func newApp(cfg *config.Config) (*app, error) {
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build matching engine: %w", err)
	}

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	loader := recordsparser.NewLoader(recordsparser.LoaderConfig{
		DataDir:         cfg.DataDir,
		TrialsFile:      cfg.TrialsFile,
		GeneDiseaseFile: cfg.GeneDiseaseFile,
		OrphanDrugsFile: cfg.OrphanDrugsFile,
		ReactorFile:     cfg.ReactorFile,
		OrphanDrugsURL:  cfg.OrphanDrugsURL,
		Encodings:       cfg.InputEncodings,
	})
	validator := validation.NewDataValidator()

	sched := scheduler.NewScheduler(dataContainer, loader, validator,
		time.Duration(cfg.ReloadIntervalMinutes)*time.Minute)

	handler := handlers.NewHTTPHandler(dataContainer, engine, validator, health.NewHealthChecker(dataContainer), handlers.Options{
		Encodings:     cfg.InputEncodings,
		MaxUploadSize: cfg.MaxUploadSize,
	})

	return &app{
		store:     dataContainer,
		scheduler: sched,
		server:    server.NewServer(cfg, handler),
	}, nil
}

func run() error {
	if err := loadEnv(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logSvc := logging.InitLogger(logging.Options{
		Dir:            cfg.LogDir,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
		ConsoleLevel:   logging.ConsoleLevel(string(cfg.Env), cfg.LogLevel),
		FileLevel:      logging.ParseLevel(cfg.LogLevel),
	})
	defer logSvc.Close()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer a.scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case sig := <-quit:
		logging.Info("Signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return a.server.Shutdown(ctx)
}

func main() {
	if err := run(); err != nil {
		logging.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}
