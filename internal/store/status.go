package store

import (
	"go.uber.org/atomic"

	"github.com/i474232898/radar-imagery/internal/radar"
)

// StatusStore holds the scheduler's generation status and the current cycle
// result. It has a single writer (the scheduler) and any number of readers.
//
// Both values are immutable snapshots behind atomic pointers: a writer builds
// a new value and swaps it in, so readers see either the old or the new value
// in full and never wait on the writer.
type StatusStore struct {
	status *atomic.Pointer[radar.GenerationStatus]
	result *atomic.Pointer[radar.CycleResult]
}

// NewStatusStore creates a store reporting Idle with an empty result.
func NewStatusStore() *StatusStore {
	return &StatusStore{
		status: atomic.NewPointer(&radar.GenerationStatus{State: radar.StateIdle}),
		result: atomic.NewPointer(&radar.CycleResult{}),
	}
}

// Status returns the current generation status.
func (s *StatusStore) Status() radar.GenerationStatus {
	return *s.status.Load()
}

// SetStatus replaces the generation status.
func (s *StatusStore) SetStatus(st radar.GenerationStatus) {
	s.status.Store(&st)
}

// Result returns the most recently published cycle result. Callers must not
// modify the returned Artifacts slice.
func (s *StatusStore) Result() radar.CycleResult {
	return *s.result.Load()
}

// Publish makes res the current cycle result. The artifacts are copied so
// later changes to the caller's slice cannot leak into readers.
func (s *StatusStore) Publish(res radar.CycleResult) {
	res.Artifacts = append([]radar.RenderedArtifact(nil), res.Artifacts...)
	s.result.Store(&res)
}

// Latest returns the current artifact for station.
func (s *StatusStore) Latest(station string) (radar.RenderedArtifact, bool) {
	return s.Result().Lookup(station)
}
