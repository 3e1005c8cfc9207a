package events

import (
	"context"
	"errors"
	"testing"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishSync_RunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(nil)

	var got []int
	bus.Subscribe("order.test", HandlerFunc(func(ctx context.Context, e Event) error {
		got = append(got, 1)
		return nil
	}))
	bus.Subscribe("order.test", HandlerFunc(func(ctx context.Context, e Event) error {
		got = append(got, 2)
		return nil
	}))

	if err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "order.test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected handlers in order [1 2], got %v", got)
	}
}

func TestPublishSync_AllHandlersAttemptedOnError(t *testing.T) {
	bus := NewInMemoryBus(nil)

	wantErr := errors.New("boom")
	second := false
	bus.Subscribe("fail.test", HandlerFunc(func(ctx context.Context, e Event) error {
		return wantErr
	}))
	bus.Subscribe("fail.test", HandlerFunc(func(ctx context.Context, e Event) error {
		second = true
		return nil
	}))

	err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "fail.test"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected first handler error, got %v", err)
	}
	if !second {
		t.Fatal("second handler should still run after first fails")
	}
}

func TestPublishSync_PanicRecovered(t *testing.T) {
	bus := NewInMemoryBus(nil)

	bus.Subscribe("panic.test", HandlerFunc(func(ctx context.Context, e Event) error {
		panic("handler bug")
	}))

	err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "panic.test"})
	if err == nil {
		t.Fatal("expected error from panicking handler")
	}
}

func TestPublishSync_NoHandlersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(nil)
	if err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "nobody.home"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
