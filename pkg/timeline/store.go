package timeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/timeline/pkg/common/logger"
)

type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

var ErrNotReady = errors.New("timeline not loaded")

// Outcome describes one finished load attempt.
type Outcome struct {
	RunID    string
	State    State
	Started  time.Time
	Elapsed  time.Duration
	Patients int
	Warning  string
	Err      error
}

// Observer is told about every load attempt after the store has settled.
type Observer interface {
	ObserveLoad(ctx context.Context, o Outcome)
}

type ObserverFunc func(ctx context.Context, o Outcome)

func (f ObserverFunc) ObserveLoad(ctx context.Context, o Outcome) { f(ctx, o) }

type flight struct {
	done     chan struct{}
	timeline *Timeline
	err      error
}

// Store owns the lifecycle of the reconciled timeline. At most one load runs
// at a time; concurrent callers wait for it and share its result. A failed
// load is retried by the next Ensure.
type Store struct {
	load      LoadFunc
	observers []Observer

	mu       sync.Mutex
	state    State
	timeline *Timeline
	err      error
	inflight *flight
}

func NewStore(load LoadFunc, observers ...Observer) *Store {
	return &Store{load: load, observers: observers}
}

// Ensure returns the loaded timeline, loading it first if needed. The load
// itself is not cancelled by ctx; only the wait is.
func (s *Store) Ensure(ctx context.Context) (*Timeline, error) {
	s.mu.Lock()
	switch s.state {
	case Ready:
		t := s.timeline
		s.mu.Unlock()
		return t, nil
	case Loading:
		f := s.inflight
		s.mu.Unlock()
		return wait(ctx, f)
	}

	f := &flight{done: make(chan struct{})}
	s.state = Loading
	s.inflight = f
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), f)
	return wait(ctx, f)
}

func wait(ctx context.Context, f *flight) (*Timeline, error) {
	select {
	case <-f.done:
		return f.timeline, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) run(ctx context.Context, f *flight) {
	outcome := Outcome{RunID: uuid.New().String(), Started: time.Now().UTC()}

	t, err := s.load(ctx)
	if err == nil && t == nil {
		err = errors.New("loader returned no timeline")
	}
	outcome.Elapsed = time.Since(outcome.Started)

	s.mu.Lock()
	if err != nil {
		s.state, s.err = Failed, err
		outcome.State, outcome.Err = Failed, err
	} else {
		s.state, s.timeline, s.err = Ready, t, nil
		outcome.State, outcome.Patients, outcome.Warning = Ready, t.Len(), t.MedicationWarning()
	}
	f.timeline, f.err = t, err
	if err != nil {
		f.timeline = nil
	}
	s.inflight = nil
	close(f.done)
	s.mu.Unlock()

	entry := logger.WithFields(map[string]interface{}{
		"run_id":     outcome.RunID,
		"state":      outcome.State.String(),
		"elapsed_ms": outcome.Elapsed.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("timeline load failed")
	} else {
		entry.WithField("patients", outcome.Patients).Info("timeline ready")
	}

	for _, o := range s.observers {
		o.ObserveLoad(ctx, outcome)
	}
}

// Snapshot reports the current state without blocking or loading.
func (s *Store) Snapshot() (State, *Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.timeline, s.err
}

// Current returns the timeline only when the store is ready.
func (s *Store) Current() (*Timeline, error) {
	state, t, err := s.Snapshot()
	switch state {
	case Ready:
		return t, nil
	case Failed:
		return nil, err
	default:
		return nil, ErrNotReady
	}
}
