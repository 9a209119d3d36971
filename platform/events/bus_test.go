package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crmflow_backend/platform/logger"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	var order []int
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, ev Event) error {
		order = append(order, 1)
		return nil
	}))
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, ev Event) error {
		order = append(order, 2)
		return nil
	}))

	if err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "thing.happened"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("handlers must run in subscription order, got %v", order)
	}
}

func TestPublishSyncCollectsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	boom := errors.New("boom")
	var secondRan bool
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, ev Event) error {
		return boom
	}))
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, ev Event) error {
		secondRan = true
		return nil
	}))

	err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "thing.happened"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if !secondRan {
		t.Fatal("one failing handler must not stop the others")
	}
}

func TestPublishSyncRecoversHandlerPanics(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, ev Event) error {
		panic("handler bug")
	}))

	err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "thing.happened"})
	if err == nil {
		t.Fatal("a panicking handler must surface as an error, not crash the publisher")
	}
}

func TestPublishDispatchesOnlyMatchingName(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	bus.Subscribe("lead.created", HandlerFunc(func(ctx context.Context, ev Event) error {
		mu.Lock()
		got = append(got, ev.EventName())
		mu.Unlock()
		close(done)
		return nil
	}))

	bus.Publish(context.Background(), testEvent{NewBaseEvent(), "lead.deleted"})
	bus.Publish(context.Background(), testEvent{NewBaseEvent(), "lead.created"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "lead.created" {
		t.Fatalf("only the subscribed event may be delivered, got %v", got)
	}
}

func TestPublishSurvivesCancelledPublisherContext(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	done := make(chan error, 1)
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, ev Event) error {
		done <- ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent{NewBaseEvent(), "thing.happened"})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("handlers must run on a detached context, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}
}
