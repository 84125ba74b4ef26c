package models

// ExerciseCatalogEntry is reference data shown to entitled users. Slug is
// the stable natural key, so re-seeding the same entry overwrites it
// instead of duplicating it.
type ExerciseCatalogEntry struct {
	Slug         string `json:"slug" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Category     string `json:"category" validate:"required"`
	TargetMuscle string `json:"target_muscle" validate:"required"`
}

// SeedReport summarizes a catalog seeding run. A failed entry does not
// abort the batch; its slug is reported here instead.
type SeedReport struct {
	Upserted    int      `json:"upserted"`
	FailedSlugs []string `json:"failed_slugs,omitempty"`
}
