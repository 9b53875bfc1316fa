package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SyncErrorBadInput          = "SYNC_BAD_INPUT"
	SyncErrorConnectionMissing = "SYNC_CONNECTION_NOT_FOUND"
	SyncErrorCredentialExpired = "SYNC_CREDENTIAL_EXPIRED"
	SyncErrorRefreshFailed     = "SYNC_REFRESH_FAILED"
	SyncErrorFetchFailed       = "SYNC_FETCH_FAILED"
	SyncErrorPersistenceFailed = "SYNC_PERSISTENCE_FAILED"
	SyncErrorAlreadyRunning    = "SYNC_ALREADY_RUNNING"
	SyncErrorInternal          = "SYNC_INTERNAL_ERROR"
)

// NewCredentialExpiredError marks a refresh token that is past its own expiry.
// Unrecoverable without re-authorization.
func NewCredentialExpiredError(connectionID string) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.New("core: refresh token expired for connection "+connectionID+", reconnect required", goerrors.CategoryAuth).
			WithTextCode(SyncErrorCredentialExpired),
	)
}

// NewRefreshFailedError wraps a transient failure refreshing the access token.
func NewRefreshFailedError(err error) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryExternal, "core: access token refresh failed").
			WithTextCode(SyncErrorRefreshFailed),
	)
}

// NewFetchFailedError wraps an exhausted provider fetch at a hierarchy level.
func NewFetchFailedError(err error, level string) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryExternal, "core: provider fetch failed at "+level).
			WithTextCode(SyncErrorFetchFailed),
	)
}

// NewPersistenceFailedError wraps a cache write failure, fatal for the run.
func NewPersistenceFailedError(err error) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryInternal, "core: cache write failed").
			WithTextCode(SyncErrorPersistenceFailed),
	)
}

// NewSyncAlreadyRunningError reports an overlapping run for one connection.
func NewSyncAlreadyRunningError(connectionID string) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.New("core: sync already in progress for connection "+connectionID, goerrors.CategoryConflict).
			WithTextCode(SyncErrorAlreadyRunning),
	)
}

// IsCredentialExpired reports whether err carries the credential-expired code.
func IsCredentialExpired(err error) bool {
	return hasTextCode(err, SyncErrorCredentialExpired)
}

// IsSyncAlreadyRunning reports whether err carries the already-running code.
func IsSyncAlreadyRunning(err error) bool {
	return hasTextCode(err, SyncErrorAlreadyRunning)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

func syncErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSyncErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return ensureSyncErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryNotFound).
				WithTextCode(SyncErrorConnectionMissing),
		)
	case strings.Contains(msg, "already in progress"), strings.Contains(msg, "lock already held"):
		return ensureSyncErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryConflict).
				WithTextCode(SyncErrorAlreadyRunning),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return ensureSyncErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryBadInput).
				WithTextCode(SyncErrorBadInput),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSyncErrorEnvelope(mapped)
}

func ensureSyncErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = syncHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSyncTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSyncTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SyncErrorBadInput
	case goerrors.CategoryNotFound:
		return SyncErrorConnectionMissing
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return SyncErrorCredentialExpired
	case goerrors.CategoryConflict:
		return SyncErrorAlreadyRunning
	case goerrors.CategoryExternal:
		return SyncErrorFetchFailed
	default:
		return SyncErrorInternal
	}
}

func syncHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
