package radar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// Pipeline renders the newest sweep of a single station:
// locate, fetch, render, compute bounds, persist.
type Pipeline struct {
	locator  Locator
	fetcher  Fetcher
	renderer Renderer
	writer   ArtifactWriter
	opts     RenderOptions
	logger   *slog.Logger
}

// PipelineDeps wires the collaborators a Pipeline drives.
type PipelineDeps struct {
	Locator  Locator
	Fetcher  Fetcher
	Renderer Renderer
	Writer   ArtifactWriter
	Options  RenderOptions
	Logger   *slog.Logger
}

// NewPipeline creates a new Pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		locator:  deps.Locator,
		fetcher:  deps.Fetcher,
		renderer: deps.Renderer,
		writer:   deps.Writer,
		opts:     deps.Options,
		logger:   logger,
	}
}

// Run processes one station for the cycle starting at cycleTime.
//
// Station-scoped problems (nothing to fetch, a bad sweep, a failed write) come
// back as the Outcome. The error return is reserved for failures that affect
// the whole cycle, currently an unreachable archive.
func (p *Pipeline) Run(ctx context.Context, st StationConfig, cycleTime time.Time) (Outcome, error) {
	log := p.logger.With("station", st.ID)

	ref, err := p.locator.FindLatest(ctx, st.ID, cycleTime)
	switch {
	case errors.Is(err, ErrNotFound):
		log.Info("no sweep available; skipping station")
		return Skipped(st.ID, "no sweep available"), nil
	case errors.Is(err, ErrStoreUnavailable):
		return Outcome{}, fmt.Errorf("locate %s: %w", st.ID, err)
	case err != nil:
		return Failed(st.ID, fmt.Errorf("locate: %w", err)), nil
	}

	log.Info("processing sweep", "key", ref.Key, "size", humanize.Bytes(uint64(max(ref.Size, 0))))

	raw, err := p.fetcher.Fetch(ctx, ref)
	switch {
	case errors.Is(err, ErrNotFound):
		log.Info("sweep vanished before fetch; skipping station", "key", ref.Key)
		return Skipped(st.ID, "sweep vanished before fetch"), nil
	case errors.Is(err, ErrStoreUnavailable):
		return Outcome{}, fmt.Errorf("fetch %s: %w", ref.Key, err)
	case err != nil:
		return Failed(st.ID, fmt.Errorf("fetch %s: %w", ref.Key, err)), nil
	}

	rendering, err := p.render(raw)
	if err != nil {
		log.Warn("render failed", "key", ref.Key, "error", err)
		return Failed(st.ID, err), nil
	}

	bounds, err := ComputeBounds(rendering.Grid)
	if err != nil {
		log.Warn("bounds failed", "key", ref.Key, "error", err)
		return Failed(st.ID, err), nil
	}

	artifact, err := p.writer.Persist(st.ID, cycleTime, rendering.Image, bounds, ref.Key)
	if err != nil {
		log.Warn("persist failed", "error", err)
		return Failed(st.ID, err), nil
	}

	log.Info("rendered radar image",
		"image", artifact.ImagePath,
		"bounds", artifact.BoundsPath,
		"min_lat", bounds.MinLat, "max_lat", bounds.MaxLat,
		"min_lon", bounds.MinLon, "max_lon", bounds.MaxLon,
	)
	return Produced(artifact), nil
}

// render calls the renderer and turns a panic into a decode error so one
// malformed sweep cannot take down the cycle.
func (p *Pipeline) render(raw []byte) (r Rendering, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: renderer panic: %v", ErrDecode, rec)
		}
	}()

	r, err = p.renderer.Render(raw, p.opts)
	if err != nil && !errors.Is(err, ErrDecode) {
		err = fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return r, err
}
