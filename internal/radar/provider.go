package radar

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrNotFound is returned when no sweep is available for a station.
	ErrNotFound = errors.New("no sweep found")

	// ErrDecode marks a sweep that cannot be parsed, lacks reflectivity,
	// or yields no usable gates.
	ErrDecode = errors.New("decode sweep")

	// ErrWrite marks a failure persisting an artifact.
	ErrWrite = errors.New("write artifact")

	// ErrStoreUnavailable marks a remote archive that cannot be reached.
	// It is cycle-scoped: the whole cycle aborts.
	ErrStoreUnavailable = errors.New("sweep archive unavailable")
)

// Rendering is what a Renderer hands back for one sweep.
type Rendering struct {
	Image image.Image
	Grid  GateGrid
}

// Locator finds the newest sweep for a station on the UTC day of asOf.
type Locator interface {
	FindLatest(ctx context.Context, station string, asOf time.Time) (SweepReference, error)
}

// Fetcher downloads the raw bytes of a located sweep.
type Fetcher interface {
	Fetch(ctx context.Context, ref SweepReference) ([]byte, error)
}

// Renderer decodes a raw sweep into an image plus its gate coordinates.
// Gates below opts.Floor are masked in both.
type Renderer interface {
	Render(raw []byte, opts RenderOptions) (Rendering, error)
}

// ArtifactWriter persists an image and its bounds for one station and cycle.
// Implementations may stage the pair and expose it under its final paths
// later; a failed Persist leaves any earlier pair untouched.
type ArtifactWriter interface {
	Persist(station string, cycleTime time.Time, img image.Image, bounds BoundingBox, sourceKey string) (RenderedArtifact, error)
}
