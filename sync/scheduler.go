package sync

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-inventory-sync/core"
)

// Scheduler drives periodic syncs for every syncable connection. A cycle
// enumerates the active connections with an unexpired credential and runs
// each one in its own goroutine; one connection failing, or panicking, never
// touches the others. Cancellation is honored between cycles, so an in-flight
// cycle drains before Run returns.
type Scheduler struct {
	Runner      core.SyncRunner
	Connections core.ConnectionStore
	Logger      core.Logger
	Enabled     bool
	Interval    time.Duration
	WarmupDelay time.Duration
	Now         func() time.Time
}

func NewScheduler(
	runner core.SyncRunner,
	connections core.ConnectionStore,
	logger core.Logger,
	cfg core.SyncConfig,
) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("sync: runner is required")
	}
	if connections == nil {
		return nil, fmt.Errorf("sync: connection store is required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		Runner:      runner,
		Connections: connections,
		Logger:      glog.Ensure(logger),
		Enabled:     cfg.Enabled,
		Interval:    interval,
		WarmupDelay: cfg.WarmupDelay,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Run blocks until ctx is cancelled. The first cycle starts after the warm-up
// delay so the process finishes booting before sync traffic begins. When
// background sync is disabled Run returns nil without cycling; manual
// triggers and direct RunCycle calls stay available.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil || s.Runner == nil || s.Connections == nil {
		return fmt.Errorf("sync: scheduler is not configured")
	}
	if !s.Enabled {
		s.Logger.Info("background sync is disabled, scheduler not starting")
		return nil
	}

	if err := core.WaitWithContext(ctx, s.WarmupDelay); err != nil {
		return err
	}

	for {
		s.RunCycle(ctx)
		if err := core.WaitWithContext(ctx, s.Interval); err != nil {
			return err
		}
	}
}

// RunCycle executes one full pass over the syncable connections and waits for
// every per-connection goroutine to finish.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if s == nil || s.Runner == nil || s.Connections == nil {
		return
	}

	connections, err := s.Connections.ListSyncable(ctx, s.now())
	if err != nil {
		s.Logger.Error("listing syncable connections", "error", err.Error())
		return
	}
	if len(connections) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, connection := range connections {
		wg.Add(1)
		go func(connectionID string) {
			defer wg.Done()
			s.runOne(ctx, connectionID)
		}(connection.ID)
	}
	wg.Wait()
}

func (s *Scheduler) runOne(ctx context.Context, connectionID string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.Logger.Error("sync run panicked",
				"connection_id", connectionID,
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
		}
	}()

	err := s.Runner.SyncConnection(ctx, connectionID)
	if err == nil {
		return
	}
	if core.IsSyncAlreadyRunning(err) {
		s.Logger.Info("sync already running, skipping",
			"connection_id", connectionID,
		)
		return
	}
	// Failures are recorded on the connection's status row; here we only log
	// so the cycle keeps serving the other connections.
	s.Logger.Error("sync run failed",
		"connection_id", connectionID,
		"error", err.Error(),
	)
}

func (s *Scheduler) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
