// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/artifacts"
	"github.com/ldsarchive/talkscraper/internal/config"
	"github.com/ldsarchive/talkscraper/internal/logging"
	"github.com/ldsarchive/talkscraper/internal/pagemodel"
	"github.com/ldsarchive/talkscraper/internal/pipeline"
	"github.com/ldsarchive/talkscraper/internal/scraper"
	"github.com/ldsarchive/talkscraper/internal/store"
)

// App holds the shared, long-lived services: logger, config, state store,
// page model and renderer. It is built once at startup and handed to the
// command that runs.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *store.Store
	pages    *pagemodel.Colly
	renderer *pagemodel.ChromedpRenderer
	writer   *artifacts.Writer
}

// New builds the service container from the given config file (empty means
// defaults and environment only). It fails fast when any service cannot be
// initialized.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var renderer *pagemodel.ChromedpRenderer
	if cfg.Renderer.Enabled {
		renderer, err = pagemodel.NewChromedpRenderer(pagemodel.RendererConfig{
			Enabled:        true,
			Timeout:        cfg.RequestTimeout(),
			MaxConcurrency: cfg.Renderer.MaxParallel,
			UserAgent:      cfg.Scraper.UserAgent,
		}, logger)
		if err != nil && !errors.Is(err, pagemodel.ErrRendererDisabled) {
			_ = st.Close()
			return nil, fmt.Errorf("init renderer: %w", err)
		}
	}

	var notes scraper.NotesRenderer
	if renderer != nil {
		notes = renderer
	}
	pages := pagemodel.New(pagemodel.Config{
		UserAgent:      cfg.Scraper.UserAgent,
		RequestTimeout: cfg.RequestTimeout(),
	}, notes, logger)

	var writer *artifacts.Writer
	if cfg.Artifact.Enabled {
		writer = artifacts.NewWriter(cfg.Artifact.Dir, logger)
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		pages:    pages,
		renderer: renderer,
		writer:   writer,
	}, nil
}

// Close releases the store, the renderer's browser, and flushes logs.
func (a *App) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the state store.
func (a *App) Store() *store.Store { return a.store }

// ArtifactDir returns the artifact root, empty when artifact files are
// disabled.
func (a *App) ArtifactDir() string {
	if a.writer == nil {
		return ""
	}
	return a.cfg.Artifact.Dir
}

// Pipeline assembles a pipeline over the app's services, with the index
// sources of every configured locale resolved up front.
func (a *App) Pipeline() (*pipeline.Pipeline, error) {
	sources := make(map[scraper.Locale][]string)
	for _, locale := range a.cfg.Locales() {
		urls, err := pagemodel.IndexSources(locale, localeBaseURL(a.cfg.Scraper.BaseURL, locale))
		if err != nil {
			return nil, fmt.Errorf("resolve index sources: %w", err)
		}
		sources[locale] = urls
	}

	cfg := pipeline.Config{
		Concurrency:    a.cfg.Scraper.Concurrency,
		Pace:           a.cfg.Pace(),
		TaskTimeout:    a.cfg.RequestTimeout(),
		RetryAttempts:  uint(a.cfg.Scraper.RetryAttempts),
		RetryBaseDelay: a.cfg.RetryBaseDelay(),
		Sources:        sources,
	}

	var writer pipeline.ArtifactWriter
	if a.writer != nil {
		writer = a.writer
	}
	return pipeline.New(a.store, a.pages, writer, nil, a.logger, cfg), nil
}

// localeBaseURL pins the lang query parameter of the index root to one
// locale.
func localeBaseURL(base string, locale scraper.Locale) string {
	return fmt.Sprintf("%s?lang=%s", base, locale)
}
