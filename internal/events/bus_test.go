package events

import "testing"

// TestBusSince verifies incremental event reads by sequence.
func TestBusSince(t *testing.T) {
	bus := NewBus(3)
	bus.Publish(Event{Type: TypePhase, Message: "1"})
	bus.Publish(Event{Type: TypePhase, Message: "2"})
	bus.Publish(Event{Type: TypeRecordCreated, Message: "3"})

	got := bus.Since(1)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Seq != 2 || got[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", got)
	}
}

// TestBusCapsHistory verifies buffer limit trimming behavior.
func TestBusCapsHistory(t *testing.T) {
	bus := NewBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	got := bus.Since(0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Message != "2" || got[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

// TestBusAssignsTimestamps verifies publish stamps missing timestamps.
func TestBusAssignsTimestamps(t *testing.T) {
	bus := NewBus(10)
	published := bus.Publish(Event{Type: TypeFileCompleted})
	if published.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be assigned")
	}
	if published.Seq != 1 {
		t.Fatalf("seq = %d, want 1", published.Seq)
	}
}
