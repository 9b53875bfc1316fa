package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-inventory-sync/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	// JobIDSyncRun identifies a full hierarchical sync of one connection.
	JobIDSyncRun = "inventory.sync.run"

	paramConnectionID = "connection_id"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// SyncMessage builds the queue message for a sync run. The idempotency key
// collapses duplicate triggers for the same connection that are still
// in flight.
func SyncMessage(connectionID string, dedupPolicy string) *job.ExecutionMessage {
	trimmed := strings.TrimSpace(connectionID)
	return &job.ExecutionMessage{
		JobID: JobIDSyncRun,
		Parameters: map[string]any{
			paramConnectionID: trimmed,
		},
		IdempotencyKey: JobIDSyncRun + "::" + trimmed,
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(dedupPolicy)),
	}
}

// ConnectionIDFromMessage extracts the connection id parameter from a sync
// run message.
func ConnectionIDFromMessage(msg *job.ExecutionMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("gojob: execution message is required")
	}
	raw, ok := msg.Parameters[paramConnectionID]
	if !ok {
		return "", fmt.Errorf("gojob: message %q is missing %s", msg.JobID, paramConnectionID)
	}
	id, ok := raw.(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("gojob: message %q has an invalid %s", msg.JobID, paramConnectionID)
	}
	return strings.TrimSpace(id), nil
}

// QueueTrigger starts sync runs by enqueueing them instead of spawning a
// goroutine in process. It satisfies the same starter contract the manual
// trigger does.
type QueueTrigger struct {
	enqueuer    queue.Enqueuer
	dedupPolicy string
}

func NewQueueTrigger(enqueuer queue.Enqueuer, dedupPolicy string) *QueueTrigger {
	return &QueueTrigger{enqueuer: enqueuer, dedupPolicy: dedupPolicy}
}

func (t *QueueTrigger) Start(ctx context.Context, connectionID string) error {
	if t == nil || t.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if strings.TrimSpace(connectionID) == "" {
		return fmt.Errorf("gojob: connection id is required")
	}
	return t.enqueuer.Enqueue(ctx, SyncMessage(connectionID, t.dedupPolicy))
}

// SyncJobProcessor drains sync run deliveries against a runner. A run that
// is already in progress acks the delivery; requeueing it would only race
// the holder of the lock.
type SyncJobProcessor struct {
	runner core.SyncRunner
	policy RetryPolicy
	logger core.Logger
}

func NewSyncJobProcessor(runner core.SyncRunner, policy RetryPolicy, logger core.Logger) *SyncJobProcessor {
	return &SyncJobProcessor{
		runner: runner,
		policy: policy,
		logger: glog.Ensure(logger),
	}
}

// Process handles a single delivery. attempt is the zero-based retry count
// for the message.
func (p *SyncJobProcessor) Process(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if p == nil || p.runner == nil {
		return fmt.Errorf("gojob: sync runner is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}

	connectionID, err := ConnectionIDFromMessage(delivery.Message())
	if err != nil {
		p.logger.Error("dropping malformed sync message", "error", err)
		return delivery.Nack(ctx, queue.NackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		})
	}

	runErr := p.runner.SyncConnection(ctx, connectionID)
	switch {
	case runErr == nil:
		return delivery.Ack(ctx)
	case core.IsSyncAlreadyRunning(runErr):
		p.logger.Info("sync already running, acking duplicate delivery",
			"connection_id", connectionID,
		)
		return delivery.Ack(ctx)
	default:
		p.logger.Error("sync run failed, nacking delivery",
			"connection_id", connectionID,
			"attempt", attempt,
			"error", runErr,
		)
		opts := p.policy.NormalizeAttempt(queue.NackOptions{
			Requeue: true,
			Reason:  runErr.Error(),
		}, attempt)
		return delivery.Nack(ctx, opts)
	}
}

// WorkerHookLogger surfaces worker lifecycle events through the service
// logger.
type WorkerHookLogger struct {
	logger core.Logger
}

func NewWorkerHookLogger(logger core.Logger) *WorkerHookLogger {
	return &WorkerHookLogger{logger: glog.Ensure(logger)}
}

func (h *WorkerHookLogger) OnStart(ctx context.Context, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	h.logger.Debug("job started", eventFields(event)...)
}

func (h *WorkerHookLogger) OnSuccess(ctx context.Context, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	h.logger.Info("job succeeded", eventFields(event)...)
}

func (h *WorkerHookLogger) OnFailure(ctx context.Context, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	fields := eventFields(event)
	fields = append(fields, "error", event.Err)
	h.logger.Error("job failed", fields...)
}

func (h *WorkerHookLogger) OnRetry(ctx context.Context, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	fields := eventFields(event)
	fields = append(fields, "delay", event.Delay.String(), "error", event.Err)
	h.logger.Warn("job retrying", fields...)
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := []any{"attempt", event.Attempt}
	if message != nil {
		fields = append(fields, "job_id", message.JobID)
		if id, ok := message.Parameters[paramConnectionID].(string); ok && id != "" {
			fields = append(fields, "connection_id", id)
		}
	}
	if event.Duration > 0 {
		fields = append(fields, "duration_ms", event.Duration.Milliseconds())
	}
	return fields
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

var _ worker.Hook = (*WorkerHookLogger)(nil)
