package sync

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-inventory-sync/core"
)

// Trigger starts one-off sync runs on demand, detached from the caller.
type Trigger struct {
	Runner core.SyncRunner
	Logger core.Logger
}

func NewTrigger(runner core.SyncRunner, logger core.Logger) (*Trigger, error) {
	if runner == nil {
		return nil, fmt.Errorf("sync: runner is required")
	}
	return &Trigger{
		Runner: runner,
		Logger: glog.Ensure(logger),
	}, nil
}

// Start launches the run in a background goroutine and returns immediately.
// The run outlives the caller's context; outcomes surface through the
// connection's status record, never through this call. Only a missing
// connection id is reported synchronously.
func (t *Trigger) Start(ctx context.Context, connectionID string) error {
	if t == nil || t.Runner == nil {
		return fmt.Errorf("sync: trigger is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return fmt.Errorf("sync: connection id is required")
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				t.Logger.Error("triggered sync panicked",
					"connection_id", connectionID,
					"panic", fmt.Sprint(recovered),
					"stack", string(debug.Stack()),
				)
			}
		}()

		err := t.Runner.SyncConnection(runCtx, connectionID)
		switch {
		case err == nil:
			t.Logger.Info("triggered sync completed", "connection_id", connectionID)
		case core.IsSyncAlreadyRunning(err):
			t.Logger.Info("triggered sync skipped, already running",
				"connection_id", connectionID,
			)
		default:
			t.Logger.Error("triggered sync failed",
				"connection_id", connectionID,
				"error", err.Error(),
			)
		}
	}()
	return nil
}
