package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/timeutil"
)

// RotationPhase is the state of a RotationScheduler.
type RotationPhase int

const (
	PhaseIdle RotationPhase = iota
	PhaseAwaitingMidnight
	PhaseDecidingAtBoundary
	PhaseDisposed
)

func (p RotationPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingMidnight:
		return "awaiting_midnight"
	case PhaseDecidingAtBoundary:
		return "deciding_at_boundary"
	case PhaseDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Decision is the user's answer to the midnight rotation prompt.
type Decision string

const (
	DecisionRotateNow Decision = "rotate_now"
	DecisionDefer     Decision = "defer"
	DecisionSkip      Decision = "skip"
	DecisionNone      Decision = ""
)

// Prompter asks the user whether to rotate now.
type Prompter interface {
	Ask(ctx context.Context, collectionID string) (Decision, error)
}

// ActivityProbe reports whether the user is present.
type ActivityProbe interface {
	IsActive() bool
}

// RotationStateStore persists the rotation state.
type RotationStateStore interface {
	RotationState(ctx context.Context) (domain.RotationState, error)
	SaveRotationState(ctx context.Context, st domain.RotationState) error
}

// CollectionSource lists the images of a collection.
type CollectionSource interface {
	Items(ctx context.Context, collectionID string) ([]domain.CachedImage, error)
}

// BoundaryOutcome describes what HandleBoundary did.
type BoundaryOutcome string

const (
	OutcomeNoCollection    BoundaryOutcome = "no_collection"
	OutcomeAlreadyRotated  BoundaryOutcome = "already_rotated"
	OutcomeRotated         BoundaryOutcome = "rotated"
	OutcomeDeferred        BoundaryOutcome = "deferred"
	OutcomeSkipped         BoundaryOutcome = "skipped"
	OutcomeEmptyCollection BoundaryOutcome = "empty_collection"
)

// RotationConfig holds the optional collaborators of a RotationScheduler.
type RotationConfig struct {
	Surfaces []string
	Prompter Prompter      // nil: never prompt
	Probe    ActivityProbe // nil: user treated as inactive
	Rand     *rand.Rand    // nil: seeded from the clock
	Now      func() time.Time
}

// RotationStatus is a point-in-time view of the scheduler.
type RotationStatus struct {
	Phase        string               `json:"phase"`
	State        domain.RotationState `json:"state"`
	NextBoundary *time.Time           `json:"next_boundary,omitempty"`
}

// RotationScheduler rotates the enabled collection onto every surface once
// per local calendar day, at midnight.
type RotationScheduler struct {
	store       RotationStateStore
	collections CollectionSource
	applier     Applier
	prompter    Prompter
	probe       ActivityProbe
	surfaces    []string
	logger      *logger.Logger
	now         func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	// decideMu serializes boundary decisions so a date is rotated at most once.
	decideMu sync.Mutex

	mu           sync.Mutex
	phase        RotationPhase
	timer        *time.Timer
	generation   uint64
	nextBoundary time.Time
	ctx          context.Context
}

// NewRotationScheduler creates an idle rotation scheduler.
func NewRotationScheduler(store RotationStateStore, collections CollectionSource, applier Applier, log *logger.Logger, cfg *RotationConfig) *RotationScheduler {
	if cfg == nil {
		cfg = &RotationConfig{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(now().UnixNano()))
	}
	return &RotationScheduler{
		store:       store,
		collections: collections,
		applier:     applier,
		prompter:    cfg.Prompter,
		probe:       cfg.Probe,
		surfaces:    append([]string(nil), cfg.Surfaces...),
		logger:      log.WithField(logger.FieldComponent, "rotation"),
		now:         now,
		rng:         rng,
		phase:       PhaseIdle,
		ctx:         context.Background(),
	}
}

// Phase returns the current state.
func (r *RotationScheduler) Phase() RotationPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Initialize applies a rotation deferred on a previous boundary, then arms
// the midnight timer.
func (r *RotationScheduler) Initialize(ctx context.Context) error {
	r.mu.Lock()
	if r.phase == PhaseDisposed {
		r.mu.Unlock()
		return ErrDisposed
	}
	r.ctx = ctx
	r.mu.Unlock()

	r.decideMu.Lock()
	err := r.applyPending(ctx)
	r.decideMu.Unlock()

	r.Schedule()
	return err
}

func (r *RotationScheduler) applyPending(ctx context.Context) error {
	st, err := r.store.RotationState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rotation state: %w", err)
	}
	pending := st.PendingRotationCollectionID
	if pending == "" {
		return nil
	}

	r.logger.WithField(logger.FieldCollection, pending).Info("Applying deferred rotation")
	st.PendingRotationCollectionID = ""
	if _, err := r.rotate(ctx, &st, pending); err != nil {
		r.logger.WithError(err).Warn("Deferred rotation failed")
	}
	if err := r.store.SaveRotationState(ctx, st); err != nil {
		return fmt.Errorf("failed to save rotation state: %w", err)
	}
	return nil
}

// Schedule (re)arms the timer for the next local midnight. It does nothing
// after Dispose.
func (r *RotationScheduler) Schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseDisposed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.generation++
	gen := r.generation

	now := r.now()
	r.nextBoundary = timeutil.NextMidnight(now)
	r.timer = time.AfterFunc(r.nextBoundary.Sub(now), func() { r.fire(gen) })
	r.phase = PhaseAwaitingMidnight
}

func (r *RotationScheduler) fire(gen uint64) {
	r.mu.Lock()
	if r.phase == PhaseDisposed || gen != r.generation {
		r.mu.Unlock()
		return
	}
	ctx := r.ctx
	r.mu.Unlock()

	if outcome, err := r.HandleBoundary(ctx); err != nil {
		r.logger.WithError(err).Warn("Midnight rotation failed")
	} else {
		r.logger.WithField(logger.FieldStatus, string(outcome)).Debug("Midnight boundary handled")
	}
	r.Schedule()
}

// HandleBoundary decides what to do at a day boundary. With no enabled
// collection nothing is changed. When the user is active the prompter picks
// between rotating now, deferring until the next Initialize, or skipping the
// day; otherwise the rotation happens immediately.
func (r *RotationScheduler) HandleBoundary(ctx context.Context) (BoundaryOutcome, error) {
	r.mu.Lock()
	if r.phase == PhaseDisposed {
		r.mu.Unlock()
		return "", ErrDisposed
	}
	prev := r.phase
	r.phase = PhaseDecidingAtBoundary
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.phase == PhaseDecidingAtBoundary {
			r.phase = prev
		}
		r.mu.Unlock()
	}()

	r.decideMu.Lock()
	defer r.decideMu.Unlock()

	st, err := r.store.RotationState(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load rotation state: %w", err)
	}
	collectionID := st.EnabledCollectionID
	if collectionID == "" {
		return OutcomeNoCollection, nil
	}

	today := timeutil.LocalDate(r.now())
	if st.LastRotationDate == today {
		return OutcomeAlreadyRotated, nil
	}

	decision := DecisionRotateNow
	if r.prompter != nil && r.probe != nil && r.probe.IsActive() {
		decision, err = r.prompter.Ask(ctx, collectionID)
		if err != nil {
			r.logger.WithError(err).Warn("Rotation prompt failed, skipping today")
			decision = DecisionNone
		}
	}

	var outcome BoundaryOutcome
	switch decision {
	case DecisionRotateNow:
		outcome, err = r.rotate(ctx, &st, collectionID)
		if err != nil {
			return "", err
		}
	case DecisionDefer:
		st.PendingRotationCollectionID = collectionID
		st.LastRotationDate = today
		outcome = OutcomeDeferred
	default:
		st.LastRotationDate = today
		outcome = OutcomeSkipped
	}

	if outcome == OutcomeEmptyCollection {
		return outcome, nil
	}
	if err := r.store.SaveRotationState(ctx, st); err != nil {
		return "", fmt.Errorf("failed to save rotation state: %w", err)
	}

	r.logger.WithFields(logger.Fields{
		logger.FieldCollection: collectionID,
		logger.FieldStatus:     string(outcome),
	}).Info("Rotation boundary handled")
	return outcome, nil
}

// rotate picks one image uniformly at random from the collection, applies it
// to every surface and stamps today's date on st. An empty collection is left
// unstamped.
func (r *RotationScheduler) rotate(ctx context.Context, st *domain.RotationState, collectionID string) (BoundaryOutcome, error) {
	items, err := r.collections.Items(ctx, collectionID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		r.logger.WithField(logger.FieldCollection, collectionID).Info("Collection is empty, nothing to rotate")
		return OutcomeEmptyCollection, nil
	}

	r.rngMu.Lock()
	pick := items[r.rng.Intn(len(items))]
	r.rngMu.Unlock()

	if r.applier != nil {
		for _, surface := range r.surfaces {
			if err := r.applier.Apply(ctx, surface, []string{pick.LocalPath}); err != nil {
				r.logger.WithError(err).WithField(logger.FieldSurface, surface).Warn("Failed to apply rotated wallpaper")
			}
		}
	}

	st.LastRotationDate = timeutil.LocalDate(r.now())
	r.logger.WithFields(logger.Fields{
		logger.FieldCollection: collectionID,
		"id":                   pick.ID,
	}).Info("Rotated wallpaper")
	return OutcomeRotated, nil
}

// SetEnabledCollection persists the collection to rotate ("" disables
// rotation) and rearms the timer.
func (r *RotationScheduler) SetEnabledCollection(ctx context.Context, collectionID string) error {
	if r.Phase() == PhaseDisposed {
		return ErrDisposed
	}
	if collectionID != "" {
		if _, err := r.collections.Items(ctx, collectionID); err != nil {
			return err
		}
	}

	r.decideMu.Lock()
	st, err := r.store.RotationState(ctx)
	if err == nil {
		st.EnabledCollectionID = collectionID
		err = r.store.SaveRotationState(ctx, st)
	}
	r.decideMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save enabled collection: %w", err)
	}

	r.logger.WithField(logger.FieldCollection, collectionID).Info("Rotation collection updated")
	r.Schedule()
	return nil
}

// Status returns the current phase, persisted state and next boundary.
func (r *RotationScheduler) Status(ctx context.Context) (RotationStatus, error) {
	st, err := r.store.RotationState(ctx)
	if err != nil {
		return RotationStatus{}, fmt.Errorf("failed to load rotation state: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	status := RotationStatus{Phase: r.phase.String(), State: st}
	if r.phase == PhaseAwaitingMidnight {
		next := r.nextBoundary
		status.NextBoundary = &next
	}
	return status, nil
}

// Dispose stops the timer. Further calls are no-ops.
func (r *RotationScheduler) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseDisposed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.generation++
	r.phase = PhaseDisposed
}
