package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/i474232898/radar-imagery/internal/metrics"
	"github.com/i474232898/radar-imagery/internal/radar"
	"github.com/i474232898/radar-imagery/internal/store"
)

// ErrCycle marks a failure that aborted a whole cycle.
var ErrCycle = errors.New("cycle aborted")

// StationRunner processes one station for one cycle.
type StationRunner interface {
	Run(ctx context.Context, st radar.StationConfig, cycleTime time.Time) (radar.Outcome, error)
}

// OutputDir is the artifact directory the scheduler owns. Artifacts written
// during a cycle become visible under their final names only through Commit.
type OutputDir interface {
	Reset() error
	Commit(a radar.RenderedArtifact) error
	Prune(keep []radar.RenderedArtifact) (int, error)
}

// Scheduler runs the station pipeline over all stations, one cycle at a time,
// and is the only writer of the status store.
type Scheduler struct {
	stations []radar.StationConfig
	runner   StationRunner
	out      OutputDir
	status   *store.StatusStore

	policy  RetryPolicy
	trigger Trigger
	now     func() time.Time
	logger  *slog.Logger

	cycleMu  sync.Mutex
	prepared bool
	stopped  *atomic.Bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithPolicy sets the delay policy between cycles. Default: FixedDelay{DefaultInterval}.
func WithPolicy(p RetryPolicy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithTrigger replaces the gocron-backed trigger.
func WithTrigger(t Trigger) Option {
	return func(s *Scheduler) { s.trigger = t }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a new Scheduler.
func New(stations []radar.StationConfig, runner StationRunner, out OutputDir, status *store.StatusStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		stations: append([]radar.StationConfig(nil), stations...),
		runner:   runner,
		out:      out,
		status:   status,
		policy:   FixedDelay{Interval: DefaultInterval},
		now:      time.Now,
		logger:   slog.Default(),
		stopped:  atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.trigger == nil {
		s.trigger = NewCronTrigger()
	}
	return s
}

// Start runs the first cycle right away in the background and chains every
// later cycle through the trigger.
func (s *Scheduler) Start() error {
	if len(s.stations) == 0 {
		s.logger.Warn("no stations configured; nothing to schedule")
		return nil
	}
	if s.stopped.Load() {
		return ErrStopped
	}

	go s.fire()
	return nil
}

// Stop cancels the pending cycle. A cycle already running finishes.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	s.trigger.Stop()
}

func (s *Scheduler) fire() {
	err := s.RunOnce(context.Background())
	if s.stopped.Load() {
		return
	}

	d := s.policy.Delay(err)
	if err := s.trigger.After(d, s.fire); err != nil {
		if !errors.Is(err, ErrStopped) {
			s.logger.Error("could not schedule next cycle; scheduler halted", "error", err)
		}
		return
	}
	s.logger.Info("next cycle scheduled", "in", d.String())
}

// RunOnce executes exactly one cycle synchronously. The first call clears the
// output directory. It returns an error wrapping ErrCycle when the cycle was
// aborted, in which case the previously published result stays current.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := s.now().UTC()
	id := uuid.NewString()
	log := s.logger.With("cycle", id)

	s.status.SetStatus(radar.GenerationStatus{State: radar.StateGenerating, LastUpdated: start})
	log.Info("cycle started", "stations", len(s.stations))

	prev := s.status.Result()

	if !s.prepared {
		if err := s.out.Reset(); err != nil {
			return s.abort(log, start, prev, fmt.Errorf("%w: prepare output directory: %w", ErrCycle, err))
		}
		s.prepared = true
	}

	outcomes := make([]radar.Outcome, len(s.stations))
	for i, st := range s.stations {
		outcome, err := s.runner.Run(ctx, st, start)
		if err != nil {
			return s.abort(log, start, prev, fmt.Errorf("%w: %w", ErrCycle, err))
		}
		outcomes[i] = outcome
	}

	// Every station was attempted; only now do new files replace old ones.
	res := radar.CycleResult{ID: id, CycleTime: start}
	for i, st := range s.stations {
		outcome := outcomes[i]
		if outcome.Kind == radar.OutcomeProduced {
			if err := s.out.Commit(*outcome.Artifact); err != nil {
				outcome = radar.Failed(st.ID, err)
			}
		}
		metrics.IncStationOutcome(st.ID, string(outcome.Kind))

		switch outcome.Kind {
		case radar.OutcomeProduced:
			res.Artifacts = append(res.Artifacts, *outcome.Artifact)
			continue
		case radar.OutcomeFailed:
			log.Warn("station failed", "station", st.ID, "error", outcome.Err)
		case radar.OutcomeSkipped:
			log.Info("station skipped", "station", st.ID, "reason", outcome.Reason)
		}

		if a, ok := prev.Lookup(st.ID); ok {
			log.Info("keeping previous artifact", "station", st.ID, "stamp", a.Stamp())
			res.Artifacts = append(res.Artifacts, a)
		}
	}

	s.status.Publish(res)
	if _, err := s.out.Prune(res.Artifacts); err != nil {
		log.Warn("prune failed", "error", err)
	}

	end := s.now().UTC()
	s.status.SetStatus(radar.GenerationStatus{State: radar.StateIdle, LastUpdated: end})
	metrics.ObserveCycle("ok", end.Sub(start))
	metrics.SetLastSuccess(end)

	log.Info("cycle completed", "artifacts", len(res.Artifacts), "took", end.Sub(start).String())
	return nil
}

// abort reports a cycle-scoped failure. Nothing was committed, so pruning to
// the published result drops every pair the aborted cycle staged.
func (s *Scheduler) abort(log *slog.Logger, start time.Time, prev radar.CycleResult, err error) error {
	if _, perr := s.out.Prune(prev.Artifacts); perr != nil {
		log.Warn("prune after aborted cycle failed", "error", perr)
	}

	end := s.now().UTC()
	s.status.SetStatus(radar.GenerationStatus{State: radar.StateError, Message: err.Error(), LastUpdated: end})
	metrics.ObserveCycle("error", end.Sub(start))

	log.Error("cycle aborted", "error", err)
	return err
}
