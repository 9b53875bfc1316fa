package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// StatusTracker is the single write surface for per-connection sync state.
// Only the sync orchestrator calls the mutating methods; everything else polls
// Status.
type StatusTracker struct {
	store SyncStatusStore
	now   func() time.Time
}

type StatusTrackerOption func(*StatusTracker)

func WithStatusClock(now func() time.Time) StatusTrackerOption {
	return func(t *StatusTracker) {
		if t == nil || now == nil {
			return
		}
		t.now = now
	}
}

func NewStatusTracker(store SyncStatusStore, opts ...StatusTrackerOption) (*StatusTracker, error) {
	if store == nil {
		return nil, fmt.Errorf("core: sync status store is required")
	}
	tracker := &StatusTracker{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(tracker)
		}
	}
	return tracker, nil
}

// Begin moves the connection into InProgress. Terminal states restart
// directly, with no run queueing. Overlap protection for one connection lives
// in the ConnectionLocker, not here.
func (t *StatusTracker) Begin(ctx context.Context, connectionID string, totalSteps int) (SyncStatus, error) {
	if t == nil || t.store == nil {
		return SyncStatus{}, fmt.Errorf("core: status tracker is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return SyncStatus{}, syncErrorMapper(fmt.Errorf("core: connection id is required"))
	}
	if totalSteps < 1 {
		return SyncStatus{}, syncErrorMapper(fmt.Errorf("core: total steps must be at least 1"))
	}

	status, err := t.load(ctx, connectionID)
	if err != nil {
		return SyncStatus{}, err
	}

	now := t.now().UTC()
	if err := status.TransitionTo(SyncStateInProgress, now); err != nil {
		return SyncStatus{}, syncErrorMapper(err)
	}
	startedAt := now
	status.SyncStartedAt = &startedAt
	status.SyncCompletedAt = nil
	status.Error = ""
	status.CurrentStep = ""
	status.CurrentStepNumber = 0
	status.TotalSteps = totalSteps
	return t.save(ctx, status)
}

// Step records coarse progress while InProgress, e.g. step 2 of 4,
// "syncing organizations".
func (t *StatusTracker) Step(ctx context.Context, connectionID string, stepNumber int, label string) (SyncStatus, error) {
	if t == nil || t.store == nil {
		return SyncStatus{}, fmt.Errorf("core: status tracker is not configured")
	}
	status, err := t.load(ctx, strings.TrimSpace(connectionID))
	if err != nil {
		return SyncStatus{}, err
	}
	if status.State != SyncStateInProgress {
		return SyncStatus{}, syncErrorMapper(fmt.Errorf("%w: step outside of in_progress run", ErrInvalidSyncStateTransition))
	}
	status.CurrentStep = strings.TrimSpace(label)
	status.CurrentStepNumber = stepNumber
	status.UpdatedAt = t.now().UTC()
	return t.save(ctx, status)
}

func (t *StatusTracker) Complete(ctx context.Context, connectionID string) (SyncStatus, error) {
	if t == nil || t.store == nil {
		return SyncStatus{}, fmt.Errorf("core: status tracker is not configured")
	}
	status, err := t.load(ctx, strings.TrimSpace(connectionID))
	if err != nil {
		return SyncStatus{}, err
	}
	now := t.now().UTC()
	if err := status.TransitionTo(SyncStateCompleted, now); err != nil {
		return SyncStatus{}, syncErrorMapper(err)
	}
	completedAt := now
	status.SyncCompletedAt = &completedAt
	status.Error = ""
	return t.save(ctx, status)
}

// Fail records the failure and the step where it occurred. The message is the
// only channel failures surface on; callers never see the error re-thrown.
func (t *StatusTracker) Fail(ctx context.Context, connectionID string, cause error) (SyncStatus, error) {
	if t == nil || t.store == nil {
		return SyncStatus{}, fmt.Errorf("core: status tracker is not configured")
	}
	status, err := t.load(ctx, strings.TrimSpace(connectionID))
	if err != nil {
		return SyncStatus{}, err
	}
	now := t.now().UTC()
	if err := status.TransitionTo(SyncStateFailed, now); err != nil {
		return SyncStatus{}, syncErrorMapper(err)
	}
	message := "sync failed"
	if cause != nil {
		message = strings.TrimSpace(cause.Error())
	}
	status.Error = message
	completedAt := now
	status.SyncCompletedAt = &completedAt
	return t.save(ctx, status)
}

func (t *StatusTracker) Status(ctx context.Context, connectionID string) (SyncStatus, error) {
	if t == nil || t.store == nil {
		return SyncStatus{}, fmt.Errorf("core: status tracker is not configured")
	}
	return t.load(ctx, strings.TrimSpace(connectionID))
}

// load falls back to a NotStarted record so a connection that has never
// synced still reads coherently.
func (t *StatusTracker) load(ctx context.Context, connectionID string) (SyncStatus, error) {
	if connectionID == "" {
		return SyncStatus{}, syncErrorMapper(fmt.Errorf("core: connection id is required"))
	}
	status, err := t.store.GetByConnection(ctx, connectionID)
	if err == nil {
		return status, nil
	}
	if errorsIsNotFound(err) {
		return SyncStatus{
			ConnectionID: connectionID,
			State:        SyncStateNotStarted,
		}, nil
	}
	return SyncStatus{}, syncErrorMapper(err)
}

func (t *StatusTracker) save(ctx context.Context, status SyncStatus) (SyncStatus, error) {
	saved, err := t.store.Upsert(ctx, status)
	if err != nil {
		return SyncStatus{}, NewPersistenceFailedError(err)
	}
	return saved, nil
}

func errorsIsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSyncStatusNotFound) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

var _ StatusReader = (*StatusTracker)(nil)
