package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorConstructors_CarryTextCodes(t *testing.T) {
	cases := []struct {
		name     string
		err      *goerrors.Error
		textCode string
		status   int
	}{
		{"credential expired", NewCredentialExpiredError("conn_1"), SyncErrorCredentialExpired, http.StatusUnauthorized},
		{"refresh failed", NewRefreshFailedError(errors.New("boom")), SyncErrorRefreshFailed, http.StatusBadGateway},
		{"fetch failed", NewFetchFailedError(errors.New("boom"), "networks"), SyncErrorFetchFailed, http.StatusBadGateway},
		{"persistence failed", NewPersistenceFailedError(errors.New("boom")), SyncErrorPersistenceFailed, http.StatusInternalServerError},
		{"already running", NewSyncAlreadyRunningError("conn_1"), SyncErrorAlreadyRunning, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, tc.err.TextCode)
			}
			if tc.err.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, tc.err.Code)
			}
		})
	}
}

func TestErrorClassifiers(t *testing.T) {
	expired := NewCredentialExpiredError("conn_1")
	if !IsCredentialExpired(expired) {
		t.Fatalf("expected credential expired classification")
	}
	if IsCredentialExpired(NewRefreshFailedError(errors.New("boom"))) {
		t.Fatalf("refresh failure must not classify as expired")
	}

	running := NewSyncAlreadyRunningError("conn_1")
	if !IsSyncAlreadyRunning(running) {
		t.Fatalf("expected already running classification")
	}
	if !IsSyncAlreadyRunning(fmt.Errorf("wrapped: %w", running)) {
		t.Fatalf("expected classification through wrapping")
	}
	if IsSyncAlreadyRunning(errors.New("sync already in progress")) {
		t.Fatalf("plain errors carry no text code")
	}
}

func TestSyncErrorMapper_ClassifiesPlainErrors(t *testing.T) {
	cases := []struct {
		name     string
		input    error
		textCode string
	}{
		{"not found", errors.New("core: connection not found"), SyncErrorConnectionMissing},
		{"lock held", errors.New("sync already in progress for conn_1"), SyncErrorAlreadyRunning},
		{"bad input", errors.New("core: connection id is required"), SyncErrorBadInput},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := syncErrorMapper(tc.input)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected %q, got %q", tc.textCode, mapped.TextCode)
			}
		})
	}
}

func TestSyncErrorMapper_PreservesRichErrors(t *testing.T) {
	original := NewFetchFailedError(errors.New("timeout"), "devices")
	mapped := syncErrorMapper(original)
	if mapped.TextCode != SyncErrorFetchFailed {
		t.Fatalf("expected fetch text code preserved, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadGateway {
		t.Fatalf("expected bad gateway status, got %d", mapped.Code)
	}
}
