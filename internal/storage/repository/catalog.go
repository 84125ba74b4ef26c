package repository

import (
	"context"
	"fmt"

	"github.com/lucasmartins-br/fitgate/internal/models"
)

// UpsertCatalogEntry inserts or overwrites one exercise keyed by its slug.
func (s *Storage) UpsertCatalogEntry(ctx context.Context, entry models.ExerciseCatalogEntry) error {
	const op = "storage.UpsertCatalogEntry"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO exercises (slug, name, category, target_muscle)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (slug) DO UPDATE
			  SET name = EXCLUDED.name, category = EXCLUDED.category,
			      target_muscle = EXCLUDED.target_muscle, updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query,
		entry.Slug, entry.Name, entry.Category, entry.TargetMuscle); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListCatalogEntries returns the whole exercise catalog ordered by name.
func (s *Storage) ListCatalogEntries(ctx context.Context) ([]*models.ExerciseCatalogEntry, error) {
	const op = "storage.ListCatalogEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT slug, name, category, target_muscle FROM exercises ORDER BY name`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ExerciseCatalogEntry
	for rows.Next() {
		var entry models.ExerciseCatalogEntry
		if err := rows.Scan(&entry.Slug, &entry.Name, &entry.Category, &entry.TargetMuscle); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
