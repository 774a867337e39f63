// Package nexrad locates and downloads Level II sweeps from the NOAA archive.
//
// Archive keys look like 2024/05/01/KLWX/KLWX20240501_123456_V06. Every key of
// a station-day shares the prefix up to the underscore and then carries a
// fixed-width HHMMSS, so sorting keys as strings sorts them by scan time. The
// locator relies on that; a scheme without the property needs parsed
// timestamps instead.
package nexrad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/i474232898/radar-imagery/internal/common"
	"github.com/i474232898/radar-imagery/internal/radar"
)

const keyTimeLayout = "20060102_150405"

// Archive implements radar.Locator and radar.Fetcher over an ObjectStore.
type Archive struct {
	store  ObjectStore
	logger *slog.Logger
}

var (
	_ radar.Locator = (*Archive)(nil)
	_ radar.Fetcher = (*Archive)(nil)
)

// NewArchive creates an Archive reading from store.
func NewArchive(store ObjectStore, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{store: store, logger: logger}
}

// DayPrefix returns the key prefix shared by every sweep of station on the
// UTC day of t.
func DayPrefix(station string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%s/%s%s_", t.Format("2006/01/02"), station, station, t.Format("20060102"))
}

// FindLatest returns the newest sweep of station on the UTC day of asOf.
func (a *Archive) FindLatest(ctx context.Context, station string, asOf time.Time) (radar.SweepReference, error) {
	prefix := DayPrefix(station, asOf)

	objects, err := a.store.List(ctx, prefix)
	if err != nil {
		return radar.SweepReference{}, fmt.Errorf("%w: list %s: %v", radar.ErrStoreUnavailable, prefix, err)
	}

	candidates := make([]Object, 0, len(objects))
	for _, obj := range objects {
		// _MDM objects hold metadata only.
		if !strings.HasPrefix(obj.Key, prefix) || common.HasAny(obj.Key, "_MDM") {
			continue
		}
		candidates = append(candidates, obj)
	}
	if len(candidates) == 0 {
		return radar.SweepReference{}, radar.ErrNotFound
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Key > candidates[j].Key })
	latest := candidates[0]

	ts, err := KeyTime(latest.Key)
	if err != nil {
		a.logger.Warn("cannot parse sweep time from key", "key", latest.Key, "error", err)
	}

	return radar.SweepReference{
		Station:   station,
		Key:       latest.Key,
		Timestamp: ts,
		Size:      latest.Size,
	}, nil
}

// Fetch downloads the sweep ref points at.
func (a *Archive) Fetch(ctx context.Context, ref radar.SweepReference) ([]byte, error) {
	raw, err := a.store.Get(ctx, ref.Key)
	switch {
	case err == nil:
		return raw, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case isPermanent(err):
		return nil, fmt.Errorf("%w: %s: %v", radar.ErrNotFound, ref.Key, err)
	default:
		return nil, fmt.Errorf("%w: get %s: %v", radar.ErrStoreUnavailable, ref.Key, err)
	}
}

// KeyTime parses the scan time out of an archive key.
func KeyTime(key string) (time.Time, error) {
	base := common.BaseName(key)
	// KLWX20240501_123456_V06: 4-letter site, then the timestamp.
	if len(base) < 4+len(keyTimeLayout) {
		return time.Time{}, fmt.Errorf("key %q too short", key)
	}
	return time.ParseInLocation(keyTimeLayout, base[4:4+len(keyTimeLayout)], time.UTC)
}
