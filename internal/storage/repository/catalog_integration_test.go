package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasmartins-br/fitgate/internal/models"
)

func TestStorage_UpsertCatalogEntry_Idempotent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	entry := models.ExerciseCatalogEntry{
		Slug:         "bench-press",
		Name:         "Bench Press",
		Category:     "strength",
		TargetMuscle: "chest",
	}

	require.NoError(t, storage.UpsertCatalogEntry(ctx, entry))
	require.NoError(t, storage.UpsertCatalogEntry(ctx, entry))

	got, err := storage.ListCatalogEntries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry, *got[0])
}

func TestStorage_UpsertCatalogEntry_OverwritesBySlug(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, storage.UpsertCatalogEntry(ctx, models.ExerciseCatalogEntry{
		Slug: "bench-press", Name: "Bench Press", Category: "strength", TargetMuscle: "chest",
	}))
	require.NoError(t, storage.UpsertCatalogEntry(ctx, models.ExerciseCatalogEntry{
		Slug: "bench-press", Name: "Barbell Bench Press", Category: "strength", TargetMuscle: "chest",
	}))

	got, err := storage.ListCatalogEntries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Barbell Bench Press", got[0].Name)
}

func TestStorage_ListCatalogEntries_OrderedByName(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, storage.UpsertCatalogEntry(ctx, models.ExerciseCatalogEntry{
		Slug: "pull-up", Name: "Pull-Up", Category: "bodyweight", TargetMuscle: "lats",
	}))
	require.NoError(t, storage.UpsertCatalogEntry(ctx, models.ExerciseCatalogEntry{
		Slug: "bench-press", Name: "Bench Press", Category: "strength", TargetMuscle: "chest",
	}))

	got, err := storage.ListCatalogEntries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bench Press", got[0].Name)
	assert.Equal(t, "Pull-Up", got[1].Name)
}
