package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"crmflow_backend/internal/events"
	"crmflow_backend/platform/logger"
)

type testSchedulerConfig struct {
	redisURL    string
	queue       string
	maxAttempts int
	backoff     time.Duration
}

func (c testSchedulerConfig) GetRedisURL() string                       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool                 { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string                 { return c.queue }
func (c testSchedulerConfig) GetAsynqConcurrency() int                  { return 1 }
func (c testSchedulerConfig) GetInactivitySweepInterval() time.Duration { return time.Minute }
func (c testSchedulerConfig) GetSendRetryMaxAttempts() int              { return c.maxAttempts }
func (c testSchedulerConfig) GetSendRetryBackoff() time.Duration        { return c.backoff }

func startRedis(t *testing.T) (*miniredis.Miniredis, testSchedulerConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := testSchedulerConfig{
		redisURL:    "redis://" + mr.Addr(),
		queue:       "automation",
		maxAttempts: 3,
		backoff:     30 * time.Second,
	}
	return mr, cfg
}

func TestSendRetryPayloadRoundTrip(t *testing.T) {
	payload := SendRetryPayload{
		CompanyID: uuid.New().String(),
		RuleID:    uuid.New().String(),
		LeadID:    uuid.New().String(),
		Attempt:   2,
	}

	task, err := NewSendRetryTask(payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if task.Type() != TaskSendRetry {
		t.Fatalf("unexpected task type %q", task.Type())
	}

	parsed, err := ParseSendRetryPayload(task)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if parsed != payload {
		t.Fatalf("round trip mismatch: %+v != %+v", parsed, payload)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("empty redis url must be rejected")
	}
}

func TestClientEnqueuesSweepTasks(t *testing.T) {
	mr, cfg := startRedis(t)

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	if err := client.EnqueueTimeBasedTick(context.Background()); err != nil {
		t.Fatalf("enqueue tick: %v", err)
	}
	if err := client.EnqueueInactivitySweep(context.Background()); err != nil {
		t.Fatalf("enqueue sweep: %v", err)
	}

	var pending bool
	for _, key := range mr.Keys() {
		if strings.Contains(key, "automation") && strings.Contains(key, "pending") {
			pending = true
		}
	}
	if !pending {
		t.Fatalf("expected pending tasks on the automation queue, keys: %v", mr.Keys())
	}
}

func TestScheduleSendRetryLandsInScheduledSet(t *testing.T) {
	mr, cfg := startRedis(t)

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	payload := SendRetryPayload{
		CompanyID: uuid.New().String(),
		RuleID:    uuid.New().String(),
		LeadID:    uuid.New().String(),
		Attempt:   2,
	}
	if err := client.ScheduleSendRetry(context.Background(), payload, time.Minute); err != nil {
		t.Fatalf("schedule retry: %v", err)
	}

	var scheduled bool
	for _, key := range mr.Keys() {
		if strings.Contains(key, "automation") && strings.Contains(key, "scheduled") {
			scheduled = true
		}
	}
	if !scheduled {
		t.Fatalf("expected a scheduled task, keys: %v", mr.Keys())
	}
}

func failedSendEvent(attempt int) events.ExecutionRecorded {
	return events.ExecutionRecorded{
		BaseEvent:   events.NewBaseEvent(),
		ExecutionID: uuid.New(),
		RuleID:      uuid.New(),
		CompanyID:   uuid.New(),
		LeadID:      uuid.New(),
		ActionType:  "send_message",
		Success:     false,
		Attempt:     attempt,
	}
}

func TestRetrySchedulerSchedulesNextAttempt(t *testing.T) {
	mr, cfg := startRedis(t)

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	rs := NewRetryScheduler(cfg, client, logger.New("test"))
	if err := rs.onExecutionRecorded(context.Background(), failedSendEvent(1)); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	var scheduled bool
	for _, key := range mr.Keys() {
		if strings.Contains(key, "scheduled") {
			scheduled = true
		}
	}
	if !scheduled {
		t.Fatalf("expected a retry to be scheduled, keys: %v", mr.Keys())
	}
}

func TestRetrySchedulerStopsAtAttemptBudget(t *testing.T) {
	mr, cfg := startRedis(t)

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	rs := NewRetryScheduler(cfg, client, logger.New("test"))
	if err := rs.onExecutionRecorded(context.Background(), failedSendEvent(3)); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(mr.Keys()) != 0 {
		t.Fatalf("exhausted retry budget must enqueue nothing, keys: %v", mr.Keys())
	}
}

func TestRetrySchedulerIgnoresSuccessAndOtherActions(t *testing.T) {
	mr, cfg := startRedis(t)

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	rs := NewRetryScheduler(cfg, client, logger.New("test"))

	succeeded := failedSendEvent(1)
	succeeded.Success = true
	if err := rs.onExecutionRecorded(context.Background(), succeeded); err != nil {
		t.Fatalf("handle success: %v", err)
	}

	tagging := failedSendEvent(1)
	tagging.ActionType = "add_tag"
	if err := rs.onExecutionRecorded(context.Background(), tagging); err != nil {
		t.Fatalf("handle other action: %v", err)
	}

	if len(mr.Keys()) != 0 {
		t.Fatalf("only failed send_message executions are retried, keys: %v", mr.Keys())
	}
}
