package events_test

import (
	"testing"
	"time"

	"github.com/open-rail/trackd-go/internal/events"
	"github.com/open-rail/trackd-go/internal/models"
)

func testState(mode string) models.State {
	return models.State{Tracks: []models.TrackStatus{{ID: "A", Mode: mode}}}
}

func TestSubscribeReceivesPublish(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("sub1")
	defer bus.Unsubscribe("sub1")

	bus.Publish(testState("on"))

	select {
	case state := <-ch:
		if state.Tracks[0].Mode != "on" {
			t.Errorf("mode = %q, want on", state.Tracks[0].Mode)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published state")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("sub1")
	bus.Unsubscribe("sub1")

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", bus.SubscriberCount())
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("slow")
	defer bus.Unsubscribe("slow")

	// Publish past the buffer; none of these may block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(testState("overload"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	// The buffered events are still readable.
	select {
	case <-ch:
	default:
		t.Error("expected at least one buffered event")
	}
	if bus.Dropped() == 0 {
		t.Error("Dropped() = 0, want skipped deliveries counted")
	}
}
