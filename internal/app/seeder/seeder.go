// Package seeder wires the one-shot catalog seeding job.
package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/lucasmartins-br/fitgate/internal/cache"
	"github.com/lucasmartins-br/fitgate/internal/config"
	"github.com/lucasmartins-br/fitgate/internal/migrations"
	"github.com/lucasmartins-br/fitgate/internal/models"
	catalogservice "github.com/lucasmartins-br/fitgate/internal/services/catalog"
	"github.com/lucasmartins-br/fitgate/internal/storage/repository"
)

// App is the catalog seeding job.
type App struct {
	catalog *catalogservice.Service
	entries []models.ExerciseCatalogEntry
	db      *repository.Storage
	logger  *slog.Logger
}

// LoadEntries reads the catalog entries from a JSON file.
func LoadEntries(path string) ([]models.ExerciseCatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entries file: %w", err)
	}
	var entries []models.ExerciseCatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse entries file: %w", err)
	}
	return entries, nil
}

// New builds the seeding job from config and the entries file path.
func New(ctx context.Context, cfg *config.Config, entriesPath string, logger *slog.Logger) (*App, error) {
	entries, err := LoadEntries(entriesPath)
	if err != nil {
		return nil, err
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	return &App{
		catalog: catalogservice.New(db, cacheRedis, logger),
		entries: entries,
		db:      db,
		logger:  logger,
	}, nil
}

// Run upserts all entries and reports the outcome. Individual entry
// failures do not abort the run.
func (a *App) Run(ctx context.Context) error {
	defer func() { _ = a.db.DB.Close() }()

	report, err := a.catalog.Seed(ctx, a.entries)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	a.logger.Info("catalog seeding finished",
		slog.Int("upserted", report.Upserted),
		slog.Int("failed", len(report.FailedSlugs)))
	for _, slug := range report.FailedSlugs {
		a.logger.Warn("entry was not seeded", slog.String("slug", slug))
	}

	if len(report.FailedSlugs) > 0 {
		return fmt.Errorf("%d entries failed to seed", len(report.FailedSlugs))
	}
	return nil
}
