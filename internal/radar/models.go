package radar

import (
	"time"
)

// TimestampLayout is the hour-granularity cycle stamp used in artifact names.
const TimestampLayout = "2006010215"

// StatusLayout formats GenerationStatus.LastUpdated for consumers.
const StatusLayout = "2006-01-02 15:04:05"

// StationConfig describes one radar site we render.
// Bounds is a static display fallback and is never recomputed.
type StationConfig struct {
	ID     string      `json:"id" yaml:"id" validate:"required,len=4,uppercase"`
	Lat    float64     `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon    float64     `json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
	Bounds BoundingBox `json:"bounds" yaml:"bounds"`
}

// BoundingBox is a geographic extent in degrees. Field order matches the
// persisted bounds document.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// Corners returns the box as [[minLat, minLon], [maxLat, maxLon]], the shape
// map overlays expect.
func (b BoundingBox) Corners() [2][2]float64 {
	return [2][2]float64{{b.MinLat, b.MinLon}, {b.MaxLat, b.MaxLon}}
}

// SweepReference identifies one sweep object found in the remote archive.
type SweepReference struct {
	Station   string
	Key       string
	Timestamp time.Time // parsed from Key, always UTC
	Size      int64
}

// RenderedArtifact is the persisted output of one station in one cycle.
type RenderedArtifact struct {
	Station    string      `json:"station"`
	CycleTime  time.Time   `json:"cycle_time"` // always UTC
	ImagePath  string      `json:"image_path"`
	BoundsPath string      `json:"bounds_path"`
	Bounds     BoundingBox `json:"bounds"`
	SourceKey  string      `json:"source_key"`
}

// Stamp returns the hour-granularity timestamp used in the artifact's file names.
func (a RenderedArtifact) Stamp() string {
	return a.CycleTime.UTC().Format(TimestampLayout)
}

// CycleResult is the set of artifacts current after one completed cycle,
// ordered by the configured station order.
type CycleResult struct {
	ID        string             `json:"id"`
	CycleTime time.Time          `json:"cycle_time"`
	Artifacts []RenderedArtifact `json:"artifacts"`
}

// Lookup returns the artifact for station, if the result holds one.
func (r CycleResult) Lookup(station string) (RenderedArtifact, bool) {
	for _, a := range r.Artifacts {
		if a.Station == station {
			return a, true
		}
	}
	return RenderedArtifact{}, false
}

// State is the scheduler's generation state.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateError      State = "error"
)

// GenerationStatus is the scheduler's externally visible state.
type GenerationStatus struct {
	State       State
	Message     string // set only in StateError
	LastUpdated time.Time
}

// String renders the status line shown to consumers.
func (s GenerationStatus) String() string {
	switch s.State {
	case StateGenerating:
		return "Generating radar images..."
	case StateError:
		return "Error: " + s.Message
	default:
		return "Idle"
	}
}

// OutcomeKind classifies what happened to one station during a cycle.
type OutcomeKind string

const (
	OutcomeProduced OutcomeKind = "produced"
	OutcomeSkipped  OutcomeKind = "skipped"
	OutcomeFailed   OutcomeKind = "failed"
)

// Outcome is the per-station result of a pipeline run. Station-scoped
// failures are carried here and never returned as errors.
type Outcome struct {
	Station  string
	Kind     OutcomeKind
	Artifact *RenderedArtifact // set when Kind is OutcomeProduced
	Reason   string            // set when Kind is OutcomeSkipped
	Err      error             // set when Kind is OutcomeFailed
}

// Produced reports a station that rendered and persisted artifact a.
func Produced(a RenderedArtifact) Outcome {
	return Outcome{Station: a.Station, Kind: OutcomeProduced, Artifact: &a}
}

// Skipped reports a station with nothing to render this cycle.
func Skipped(station, reason string) Outcome {
	return Outcome{Station: station, Kind: OutcomeSkipped, Reason: reason}
}

// Failed reports a station whose sweep could not be rendered or persisted.
func Failed(station string, err error) Outcome {
	return Outcome{Station: station, Kind: OutcomeFailed, Err: err}
}

// RenderOptions controls masking and color scaling of a rendered sweep.
type RenderOptions struct {
	Floor      float64 // reflectivity below this (dBZ) is masked
	DisplayMin float64
	DisplayMax float64
	Step       float64
}

// DefaultRenderOptions mirrors the NWS reflectivity display.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Floor: 5, DisplayMin: 15, DisplayMax: 75, Step: 5}
}

// GateGrid holds per-gate coordinates of a sweep in row-major order:
// one row per radial, one column per gate.
type GateGrid struct {
	Rows, Cols int
	Lat        []float64
	Lon        []float64
	Masked     []bool // nil means no gate is masked
}
