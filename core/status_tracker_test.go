package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStatusTracker_BeginStepCompleteLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newMemorySyncStatusStore()
	tracker, err := NewStatusTracker(store, WithStatusClock(fixedClock(now)))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	status, err := tracker.Begin(context.Background(), "conn_1", 4)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if status.State != SyncStateInProgress {
		t.Fatalf("expected in_progress, got %q", status.State)
	}
	if status.SyncStartedAt == nil || !status.SyncStartedAt.Equal(now) {
		t.Fatalf("expected start timestamp %v, got %v", now, status.SyncStartedAt)
	}
	if status.TotalSteps != 4 {
		t.Fatalf("expected 4 total steps, got %d", status.TotalSteps)
	}

	status, err = tracker.Step(context.Background(), "conn_1", 2, "syncing organizations")
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if status.CurrentStepNumber != 2 || status.CurrentStep != "syncing organizations" {
		t.Fatalf("unexpected step payload: %#v", status)
	}

	status, err = tracker.Complete(context.Background(), "conn_1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if status.State != SyncStateCompleted {
		t.Fatalf("expected completed, got %q", status.State)
	}
	if status.SyncCompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}
	if status.Error != "" {
		t.Fatalf("expected cleared error, got %q", status.Error)
	}
}

func TestStatusTracker_FailRecordsCauseAndStep(t *testing.T) {
	store := newMemorySyncStatusStore()
	tracker, err := NewStatusTracker(store)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	if _, err := tracker.Begin(context.Background(), "conn_1", 4); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tracker.Step(context.Background(), "conn_1", 3, "syncing networks"); err != nil {
		t.Fatalf("step: %v", err)
	}

	status, err := tracker.Fail(context.Background(), "conn_1", errors.New("provider returned 503"))
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if status.State != SyncStateFailed {
		t.Fatalf("expected failed, got %q", status.State)
	}
	if status.Error != "provider returned 503" {
		t.Fatalf("unexpected error message: %q", status.Error)
	}
	if status.CurrentStep != "syncing networks" || status.CurrentStepNumber != 3 {
		t.Fatalf("expected failing step retained, got %#v", status)
	}
}

func TestStatusTracker_TerminalStatesRestart(t *testing.T) {
	store := newMemorySyncStatusStore()
	tracker, err := NewStatusTracker(store)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	for _, terminal := range []func() error{
		func() error { _, err := tracker.Complete(context.Background(), "conn_1"); return err },
		func() error { _, err := tracker.Fail(context.Background(), "conn_1", errors.New("boom")); return err },
	} {
		if _, err := tracker.Begin(context.Background(), "conn_1", 4); err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := terminal(); err != nil {
			t.Fatalf("terminal transition: %v", err)
		}
	}

	status, err := tracker.Begin(context.Background(), "conn_1", 4)
	if err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	if status.State != SyncStateInProgress {
		t.Fatalf("expected restart into in_progress, got %q", status.State)
	}
	if status.Error != "" || status.SyncCompletedAt != nil {
		t.Fatalf("expected reset run fields, got %#v", status)
	}
}

func TestStatusTracker_InvalidTransitionsRejected(t *testing.T) {
	store := newMemorySyncStatusStore()
	tracker, err := NewStatusTracker(store)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	if _, err := tracker.Complete(context.Background(), "conn_1"); err == nil {
		t.Fatalf("expected complete without a run to fail")
	}
	if _, err := tracker.Step(context.Background(), "conn_1", 1, "resolving inventory client"); err == nil {
		t.Fatalf("expected step outside a run to fail")
	}
}

func TestStatusTracker_UnknownConnectionReadsNotStarted(t *testing.T) {
	store := newMemorySyncStatusStore()
	tracker, err := NewStatusTracker(store)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	status, err := tracker.Status(context.Background(), "conn_never_synced")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != SyncStateNotStarted {
		t.Fatalf("expected not_started, got %q", status.State)
	}
	if status.ConnectionID != "conn_never_synced" {
		t.Fatalf("unexpected connection id: %q", status.ConnectionID)
	}
}
