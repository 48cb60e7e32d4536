package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/settings"
)

type fakeCollections struct {
	items map[string][]domain.CachedImage
}

func (f *fakeCollections) Items(_ context.Context, id string) ([]domain.CachedImage, error) {
	items, ok := f.items[id]
	if !ok {
		return nil, ErrUnknownCollection
	}
	return items, nil
}

type fakePrompter struct {
	mu       sync.Mutex
	decision Decision
	err      error
	asked    []string
}

func (f *fakePrompter) Ask(_ context.Context, id string) (Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, id)
	return f.decision, f.err
}

type fixedProbe bool

func (p fixedProbe) IsActive() bool { return bool(p) }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type rotationFixture struct {
	sched    *RotationScheduler
	store    *settings.Service
	applier  *fakeApplier
	prompter *fakePrompter
	clock    *testClock
}

func newRotationFixture(t *testing.T, active bool, items map[string][]domain.CachedImage) *rotationFixture {
	t.Helper()
	f := &rotationFixture{
		store:    settings.NewService(settings.NewMemoryStore(), nil, logger.Discard()),
		applier:  &fakeApplier{},
		prompter: &fakePrompter{decision: DecisionRotateNow},
		clock:    &testClock{now: time.Date(2026, 3, 10, 0, 0, 5, 0, time.Local)},
	}
	f.sched = NewRotationScheduler(f.store, &fakeCollections{items: items}, f.applier, logger.Discard(), &RotationConfig{
		Surfaces: []string{"left", "right"},
		Prompter: f.prompter,
		Probe:    fixedProbe(active),
		Rand:     rand.New(rand.NewSource(7)),
		Now:      f.clock.Now,
	})
	t.Cleanup(f.sched.Dispose)
	return f
}

func (f *rotationFixture) enable(t *testing.T, id string) {
	t.Helper()
	st, _ := f.store.RotationState(context.Background())
	st.EnabledCollectionID = id
	if err := f.store.SaveRotationState(context.Background(), st); err != nil {
		t.Fatal(err)
	}
}

func feedItems(n int) map[string][]domain.CachedImage {
	var feed []domain.CachedImage
	for i := 0; i < n; i++ {
		feed = append(feed, img(string(rune('a'+i))))
	}
	return map[string][]domain.CachedImage{
		domain.CollectionFeed:      feed,
		domain.CollectionFavorites: {},
	}
}

func TestRotation_NoCollectionNoMutation(t *testing.T) {
	f := newRotationFixture(t, false, feedItems(3))

	outcome, err := f.sched.HandleBoundary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeNoCollection {
		t.Errorf("expected %s, got %s", OutcomeNoCollection, outcome)
	}
	st, _ := f.store.RotationState(context.Background())
	if st != (domain.RotationState{}) {
		t.Errorf("expected no mutation, got %+v", st)
	}
	if len(f.applier.Calls()) != 0 {
		t.Error("expected no apply")
	}
}

func TestRotation_InactiveRotatesImmediately(t *testing.T) {
	f := newRotationFixture(t, false, feedItems(5))
	f.enable(t, domain.CollectionFeed)

	outcome, err := f.sched.HandleBoundary(context.Background())
	if err != nil || outcome != OutcomeRotated {
		t.Fatalf("expected rotated, got %s, %v", outcome, err)
	}
	if len(f.prompter.asked) != 0 {
		t.Error("expected no prompt for inactive user")
	}

	calls := f.applier.Calls()
	if len(calls) != 2 || calls[0].surface != "left" || calls[1].surface != "right" {
		t.Fatalf("expected both surfaces applied, got %+v", calls)
	}
	if calls[0].paths[0] != calls[1].paths[0] {
		t.Errorf("expected the same pick on every surface, got %v and %v", calls[0].paths, calls[1].paths)
	}

	want := feedItems(5)[domain.CollectionFeed][rand.New(rand.NewSource(7)).Intn(5)].LocalPath
	if calls[0].paths[0] != want {
		t.Errorf("expected seeded pick %s, got %s", want, calls[0].paths[0])
	}

	st, _ := f.store.RotationState(context.Background())
	if st.LastRotationDate != "2026-03-10" {
		t.Errorf("expected date stamped, got %+v", st)
	}
}

func TestRotation_AlreadyRotatedToday(t *testing.T) {
	f := newRotationFixture(t, false, feedItems(2))
	_ = f.store.SaveRotationState(context.Background(), domain.RotationState{
		EnabledCollectionID: domain.CollectionFeed,
		LastRotationDate:    "2026-03-10",
	})

	outcome, err := f.sched.HandleBoundary(context.Background())
	if err != nil || outcome != OutcomeAlreadyRotated {
		t.Fatalf("expected already rotated, got %s, %v", outcome, err)
	}
	if len(f.applier.Calls()) != 0 {
		t.Error("expected no apply")
	}
}

func TestRotation_PromptDecisions(t *testing.T) {
	tests := []struct {
		name        string
		decision    Decision
		promptErr   error
		wantOutcome BoundaryOutcome
		wantApply   bool
		wantPending string
	}{
		{"rotate now", DecisionRotateNow, nil, OutcomeRotated, true, ""},
		{"defer", DecisionDefer, nil, OutcomeDeferred, false, domain.CollectionFeed},
		{"skip", DecisionSkip, nil, OutcomeSkipped, false, ""},
		{"dismissed", DecisionNone, nil, OutcomeSkipped, false, ""},
		{"prompt error", DecisionRotateNow, errors.New("no tty"), OutcomeSkipped, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRotationFixture(t, true, feedItems(3))
			f.enable(t, domain.CollectionFeed)
			f.prompter.decision = tt.decision
			f.prompter.err = tt.promptErr

			outcome, err := f.sched.HandleBoundary(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome != tt.wantOutcome {
				t.Errorf("expected %s, got %s", tt.wantOutcome, outcome)
			}
			if len(f.prompter.asked) != 1 || f.prompter.asked[0] != domain.CollectionFeed {
				t.Errorf("expected one prompt for feed, got %v", f.prompter.asked)
			}
			if got := len(f.applier.Calls()) > 0; got != tt.wantApply {
				t.Errorf("expected apply=%v, got %v", tt.wantApply, got)
			}

			st, _ := f.store.RotationState(context.Background())
			if st.LastRotationDate != "2026-03-10" {
				t.Errorf("expected today stamped, got %q", st.LastRotationDate)
			}
			if st.PendingRotationCollectionID != tt.wantPending {
				t.Errorf("expected pending %q, got %q", tt.wantPending, st.PendingRotationCollectionID)
			}

			// A second boundary on the same date is a no-op.
			again, _ := f.sched.HandleBoundary(context.Background())
			if again != OutcomeAlreadyRotated {
				t.Errorf("expected already rotated on repeat, got %s", again)
			}
		})
	}
}

func TestRotation_DeferThenInitialize(t *testing.T) {
	f := newRotationFixture(t, true, feedItems(3))
	f.enable(t, domain.CollectionFeed)
	f.prompter.decision = DecisionDefer

	if outcome, _ := f.sched.HandleBoundary(context.Background()); outcome != OutcomeDeferred {
		t.Fatalf("expected deferred, got %s", outcome)
	}
	if len(f.applier.Calls()) != 0 {
		t.Fatal("expected nothing applied on defer")
	}

	if err := f.sched.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.applier.Calls()) != 2 {
		t.Errorf("expected pending rotation applied to both surfaces, got %+v", f.applier.Calls())
	}
	st, _ := f.store.RotationState(context.Background())
	if st.PendingRotationCollectionID != "" {
		t.Errorf("expected pending marker cleared, got %+v", st)
	}
	if f.sched.Phase() != PhaseAwaitingMidnight {
		t.Errorf("expected awaiting midnight, got %s", f.sched.Phase())
	}
}

func TestRotation_EmptyCollectionNotStamped(t *testing.T) {
	f := newRotationFixture(t, false, feedItems(0))
	f.enable(t, domain.CollectionFavorites)

	outcome, err := f.sched.HandleBoundary(context.Background())
	if err != nil || outcome != OutcomeEmptyCollection {
		t.Fatalf("expected empty collection, got %s, %v", outcome, err)
	}
	st, _ := f.store.RotationState(context.Background())
	if st.LastRotationDate != "" {
		t.Errorf("expected no stamp, got %q", st.LastRotationDate)
	}
}

func TestRotation_SetEnabledCollection(t *testing.T) {
	f := newRotationFixture(t, false, feedItems(1))
	ctx := context.Background()

	if f.sched.Phase() != PhaseIdle {
		t.Fatalf("expected idle, got %s", f.sched.Phase())
	}
	if err := f.sched.SetEnabledCollection(ctx, "weekly"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("expected ErrUnknownCollection, got %v", err)
	}
	if err := f.sched.SetEnabledCollection(ctx, domain.CollectionFavorites); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, _ := f.store.RotationState(ctx)
	if st.EnabledCollectionID != domain.CollectionFavorites {
		t.Errorf("expected favorites enabled, got %+v", st)
	}
	status, err := f.sched.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Phase != "awaiting_midnight" || status.NextBoundary == nil {
		t.Fatalf("expected armed timer, got %+v", status)
	}
	if want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.Local); !status.NextBoundary.Equal(want) {
		t.Errorf("expected next boundary %s, got %s", want, status.NextBoundary)
	}
}

func TestRotation_Dispose(t *testing.T) {
	f := newRotationFixture(t, false, feedItems(1))
	f.sched.Schedule()
	f.sched.Dispose()
	f.sched.Dispose()

	if f.sched.Phase() != PhaseDisposed {
		t.Fatalf("expected disposed, got %s", f.sched.Phase())
	}
	f.sched.Schedule()
	if f.sched.Phase() != PhaseDisposed {
		t.Errorf("expected schedule after dispose to be a no-op")
	}
	if _, err := f.sched.HandleBoundary(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
	if err := f.sched.SetEnabledCollection(context.Background(), domain.CollectionFeed); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
	if err := f.sched.Initialize(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
}

func TestRotation_TimerFiresAtMidnight(t *testing.T) {
	f := newRotationFixture(t, false, feedItems(2))
	f.enable(t, domain.CollectionFeed)
	f.clock.mu.Lock()
	f.clock.now = time.Date(2026, 3, 10, 23, 59, 59, 950_000_000, time.Local)
	f.clock.mu.Unlock()

	if err := f.sched.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(f.applier.Calls()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(f.applier.Calls()) != 2 {
		t.Fatalf("expected rotation at the boundary, got %+v", f.applier.Calls())
	}
}
