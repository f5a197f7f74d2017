package experiment

import "context"

// Loader is a built data loader; only its batch count is observed.
type Loader interface {
	Len() int
}

// DataSource builds the loaders for the requested splits.
type DataSource interface {
	GetLoaders(ctx context.Context, splits []string) (map[string]Loader, error)
}

// Experiment is an initialized collaborator.
type Experiment interface {
	Data() DataSource
}

// Factory initializes experiments from a configuration document.
type Factory interface {
	New(ctx context.Context, doc Document) (Experiment, error)
}

// BatchCount is a Loader that only knows its length.
type BatchCount int

// Len returns the batch count.
func (b BatchCount) Len() int { return int(b) }
