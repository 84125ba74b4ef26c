// Package catalog contains the exercise catalog read path and the
// idempotent bulk seeder. Catalog data is disjoint from the subscription
// ledger; seeding never touches subscription state.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
	"github.com/lucasmartins-br/fitgate/internal/models"
)

const cacheKey = "catalog:exercises"

// CatalogRepository defines the catalog storage methods.
type CatalogRepository interface {
	UpsertCatalogEntry(ctx context.Context, entry models.ExerciseCatalogEntry) error
	ListCatalogEntries(ctx context.Context) ([]*models.ExerciseCatalogEntry, error)
}

// Cache describes the read cache in front of the catalog listing.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service implements catalog listing and seeding.
type Service struct {
	repo     CatalogRepository
	cache    Cache
	validate *validator.Validate
	log      *slog.Logger
}

// New creates a catalog service.
func New(repo CatalogRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		validate: validator.New(),
		log:      log,
	}
}

// List returns the catalog, served from cache when possible.
func (s *Service) List(ctx context.Context) ([]*models.ExerciseCatalogEntry, error) {
	var result []*models.ExerciseCatalogEntry
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		s.log.Warn("catalog cache read failed", sl.Err(err))
	}
	if found {
		return result, nil
	}

	result, err = s.repo.ListCatalogEntries(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
		s.log.Warn("failed to cache catalog", sl.Err(err))
	}
	return result, nil
}

// Seed upserts the entries keyed by slug. Running it twice with the same
// input changes nothing beyond timestamps. A failing entry is reported in
// the result and does not abort the rest of the batch.
func (s *Service) Seed(ctx context.Context, entries []models.ExerciseCatalogEntry) (models.SeedReport, error) {
	var report models.SeedReport

	for _, entry := range entries {
		if err := s.validate.Struct(entry); err != nil {
			s.log.Error("invalid catalog entry skipped",
				slog.String("slug", entry.Slug), sl.Err(err))
			report.FailedSlugs = append(report.FailedSlugs, entry.Slug)
			continue
		}
		if err := s.repo.UpsertCatalogEntry(ctx, entry); err != nil {
			s.log.Error("failed to upsert catalog entry",
				slog.String("slug", entry.Slug), sl.Err(err))
			report.FailedSlugs = append(report.FailedSlugs, entry.Slug)
			continue
		}
		report.Upserted++
	}

	if report.Upserted > 0 {
		if err := s.cache.Invalidate(cacheKey); err != nil {
			s.log.Warn("failed to invalidate catalog cache", sl.Err(err))
		}
	}

	s.log.Info("catalog seeding finished",
		slog.Int("upserted", report.Upserted),
		slog.Int("failed", len(report.FailedSlugs)))
	return report, nil
}
