package logging_test

import (
	"context"
	"testing"
	"time"

	"gatewarden/internal/logging"
)

func TestStreamHubRingAndFetch(t *testing.T) {
	hub := logging.NewStreamHub(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		hub.Publish(logging.LogEvent{Message: msg})
	}
	if first := hub.FirstSequence(); first != 2 {
		t.Fatalf("expected oldest buffered sequence 2, got %d", first)
	}

	events, next, err := hub.Fetch(context.Background(), 2, 10, false)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(events) != 2 || events[0].Message != "c" || events[1].Message != "d" || next != 4 {
		t.Fatalf("unexpected fetch result: %+v next=%d", events, next)
	}
}

func TestStreamHubFetchWaitsForNewEvents(t *testing.T) {
	hub := logging.NewStreamHub(10)
	hub.Publish(logging.LogEvent{Message: "first"})

	go func() {
		time.Sleep(20 * time.Millisecond)
		hub.Publish(logging.LogEvent{Message: "second"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, _, err := hub.Fetch(ctx, 1, 10, true)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(events) != 1 || events[0].Message != "second" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestStreamHubFetchHonorsCancellation(t *testing.T) {
	hub := logging.NewStreamHub(10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := hub.Fetch(ctx, 0, 10, true); err == nil {
		t.Fatal("expected context error")
	}
}
