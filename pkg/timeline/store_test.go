package timeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/synaptica-ai/timeline/pkg/common/models"
)

func sampleTimeline() *Timeline {
	return Build(Sources{
		Notes: map[string][]models.Note{"p1": notesAt(10, 20)},
		Labs:  map[string][]models.LabObservation{"p1": labsAt(12)},
	})
}

func TestStoreLoadsOnceUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	store := NewStore(func(ctx context.Context) (*Timeline, error) {
		calls.Add(1)
		<-gate
		return sampleTimeline(), nil
	})

	var wg sync.WaitGroup
	results := make(chan *Timeline, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tl, err := store.Ensure(context.Background())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- tl
		}()
	}

	// Let the callers pile up behind the in-flight load.
	for {
		if state, _, _ := store.Snapshot(); state == Loading {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(gate)
	wg.Wait()
	close(results)

	if calls.Load() != 1 {
		t.Fatalf("expected one load, got %d", calls.Load())
	}
	var first *Timeline
	for tl := range results {
		if first == nil {
			first = tl
		}
		if tl != first {
			t.Fatal("expected every caller to share the same timeline")
		}
	}
	if state, _, _ := store.Snapshot(); state != Ready {
		t.Fatalf("expected ready, got %s", state)
	}
}

func TestStoreRetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	var outcomes []Outcome
	var mu sync.Mutex
	observer := ObserverFunc(func(ctx context.Context, o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	})

	store := NewStore(func(ctx context.Context) (*Timeline, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("labs missing")
		}
		return sampleTimeline(), nil
	}, observer)

	if _, err := store.Current(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected not ready before first load, got %v", err)
	}

	if _, err := store.Ensure(context.Background()); err == nil {
		t.Fatal("expected first load to fail")
	}
	if state, _, err := store.Snapshot(); state != Failed || err == nil {
		t.Fatalf("expected failed state with error, got %s %v", state, err)
	}

	tl, err := store.Ensure(context.Background())
	if err != nil || tl.Len() != 1 {
		t.Fatalf("expected retry to succeed, got %v %v", tl, err)
	}
	if current, err := store.Current(); err != nil || current != tl {
		t.Fatalf("expected current timeline, got %v %v", current, err)
	}

	// Observers run after the waiters are released.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(outcomes)
		mu.Unlock()
		if n == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 2 {
		t.Fatalf("expected two observed outcomes, got %d", len(outcomes))
	}
	if outcomes[0].State != Failed || outcomes[1].State != Ready || outcomes[1].Patients != 1 {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if outcomes[0].RunID == "" || outcomes[0].RunID == outcomes[1].RunID {
		t.Fatal("expected distinct run ids")
	}
}

func TestStoreWaitHonoursContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	store := NewStore(func(ctx context.Context) (*Timeline, error) {
		<-gate
		return sampleTimeline(), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := store.Ensure(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestEventFor(t *testing.T) {
	eventType, data := EventFor(Outcome{RunID: "r1", State: Ready, Patients: 3, Warning: "w"})
	if eventType != "timeline.loaded" || data["patients"] != 3 || data["medication_warning"] != "w" {
		t.Fatalf("unexpected loaded event %s %v", eventType, data)
	}

	eventType, data = EventFor(Outcome{RunID: "r2", State: Failed, Err: errors.New("boom")})
	if eventType != "timeline.failed" || data["error"] != "boom" {
		t.Fatalf("unexpected failed event %s %v", eventType, data)
	}
}

type recordingPublisher struct {
	eventTypes []string
	err        error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error {
	p.eventTypes = append(p.eventTypes, eventType)
	return p.err
}

func TestNotifierPublishes(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	NewNotifier(pub).ObserveLoad(context.Background(), Outcome{RunID: "r", State: Ready})
	if len(pub.eventTypes) != 1 || pub.eventTypes[0] != "timeline.loaded" {
		t.Fatalf("expected one loaded event, got %v", pub.eventTypes)
	}
}

func TestNewLoadRun(t *testing.T) {
	run := NewLoadRun(Outcome{RunID: "r", State: Failed, Elapsed: 1500 * time.Millisecond, Err: errors.New("x")},
		Paths{Notes: "n.csv", Labs: "l.csv", Medications: "m.csv"})
	if run.ID != "r" || run.State != "failed" || run.Error != "x" || run.DurationMS != 1500 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Sources["labs"] != "l.csv" {
		t.Fatalf("expected sources to be recorded, got %v", run.Sources)
	}
	if run.TableName() != "timeline_load_runs" {
		t.Fatalf("unexpected table %s", run.TableName())
	}
}
