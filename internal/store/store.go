// Package store persists rendered artifacts keyed by fingerprint.
package store

import (
	"context"

	"github.com/rcliao/devplan/internal/model"
)

// Producer renders the artifact for a fingerprint that is not stored yet.
// The returned record needs Format, Diagram, MimeType and Media; the store
// fills in the rest.
type Producer func(ctx context.Context) (*model.ArtifactRecord, error)

// ListParams holds filters for listing artifacts.
type ListParams struct {
	Format  model.Format
	Diagram model.Diagram
	Limit   int
}

// Store defines the artifact storage interface.
type Store interface {
	// GetOrCreate returns the stored artifact for fingerprint, calling
	// produce at most once across concurrent callers when it is missing.
	// The bool reports whether the artifact was produced by this call.
	GetOrCreate(ctx context.Context, fingerprint string, produce Producer) (*model.ArtifactRecord, bool, error)

	// Store persists rec. Storing identical bytes again is a no-op.
	Store(ctx context.Context, rec *model.ArtifactRecord) (*model.ArtifactRecord, error)

	// Get retrieves an artifact with its media.
	Get(ctx context.Context, fingerprint string) (*model.ArtifactRecord, error)

	// Has reports whether an artifact exists without touching access stats.
	Has(ctx context.Context, fingerprint string) (bool, error)

	// List returns artifact metadata, newest first. Media is not loaded.
	List(ctx context.Context, p ListParams) ([]model.ArtifactRecord, error)

	// Rm deletes an artifact.
	Rm(ctx context.Context, fingerprint string) error

	// Close closes the store.
	Close() error
}
