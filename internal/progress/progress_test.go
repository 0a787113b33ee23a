package progress

import (
	"testing"
	"time"
)

func TestTrackerEstimatesTotal(t *testing.T) {
	tr := NewTracker(1000)

	s := tr.Snapshot(90, 10, 0, 1, 250)
	if s.EstimatedTotal != 400 {
		t.Errorf("EstimatedTotal = %d, want 400", s.EstimatedTotal)
	}
	if s.Percentage != 25 {
		t.Errorf("Percentage = %f, want 25", s.Percentage)
	}

	// refined on the next batch
	s = tr.Snapshot(190, 10, 0, 2, 500)
	if s.EstimatedTotal != 400 {
		t.Errorf("EstimatedTotal = %d, want 400", s.EstimatedTotal)
	}
}

func TestTrackerWithoutTotalBytes(t *testing.T) {
	tr := NewTracker(0)

	s := tr.Snapshot(100, 0, 0, 1, 250)
	if s.EstimatedTotal != 0 {
		t.Errorf("EstimatedTotal = %d, want 0 when file size unknown", s.EstimatedTotal)
	}
	if s.Percentage != 0 {
		t.Errorf("Percentage = %f, want 0 when file size unknown", s.Percentage)
	}
}

func TestTrackerNeverEstimatesBelowSeen(t *testing.T) {
	tr := NewTracker(100)

	// decoder read ahead past the counted features
	s := tr.Snapshot(500, 0, 0, 1, 100)
	if s.EstimatedTotal < 500 {
		t.Errorf("EstimatedTotal = %d, want >= 500", s.EstimatedTotal)
	}
	if s.Percentage > 100 {
		t.Errorf("Percentage = %f, want capped at 100", s.Percentage)
	}
}

func TestTrackerThroughput(t *testing.T) {
	tr := NewTracker(1000)
	tr.startTime = time.Now().Add(-2 * time.Second)

	s := tr.Snapshot(100, 0, 0, 1, 10)
	if s.Throughput < 45 || s.Throughput > 55 {
		t.Errorf("Throughput = %f, want about 50/s", s.Throughput)
	}
	if s.Elapsed < 2*time.Second {
		t.Errorf("Elapsed = %v, want >= 2s", s.Elapsed)
	}
}

func TestBusRoutesByJob(t *testing.T) {
	bus := NewBus()

	chA, cancelA := bus.Subscribe("job-a", 4)
	defer cancelA()
	chAll, cancelAll := bus.Subscribe("", 4)
	defer cancelAll()

	bus.Publish(Event{Type: EventProgress, JobID: "job-a"})
	bus.Publish(Event{Type: EventProgress, JobID: "job-b"})

	select {
	case ev := <-chA:
		if ev.JobID != "job-a" {
			t.Errorf("job-a subscriber got event for %q", ev.JobID)
		}
	default:
		t.Fatal("job-a subscriber received nothing")
	}
	select {
	case ev := <-chA:
		t.Fatalf("job-a subscriber got foreign event %+v", ev)
	default:
	}

	for i := 0; i < 2; i++ {
		select {
		case <-chAll:
		default:
			t.Fatalf("firehose subscriber missing event %d", i)
		}
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe("job-a", 1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			bus.Publish(Event{Type: EventProgress, JobID: "job-a"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if len(ch) != 1 {
		t.Errorf("buffered events = %d, want 1", len(ch))
	}
}

func TestBusCancelStopsDelivery(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe("job-a", 4)
	cancel()
	cancel() // idempotent

	bus.Publish(Event{Type: EventProgress, JobID: "job-a"})

	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
}
