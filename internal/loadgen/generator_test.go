package loadgen

import (
	"testing"
	"time"

	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/parsers"
	"github.com/vigilo/siem/internal/siem/syslog"
)

func TestEvents_CountAndShape(t *testing.T) {
	Seed(42)
	evs := Events(50)
	if len(evs) != 50 {
		t.Fatalf("got %d events, want 50", len(evs))
	}
	for _, ev := range evs {
		if ev.ID == "" {
			t.Error("event without id")
		}
		if !ev.Severity.Valid() {
			t.Errorf("invalid severity %q", ev.Severity)
		}
		if ev.Type == "" || ev.Message == "" {
			t.Errorf("incomplete event: %+v", ev)
		}
		if ev.Data == nil {
			t.Error("nil data map")
		}
	}
}

func TestEvents_Deterministic(t *testing.T) {
	Seed(7)
	first := Events(20)
	Seed(7)
	second := Events(20)

	for i := range first {
		if first[i].Type != second[i].Type ||
			first[i].Severity != second[i].Severity ||
			first[i].Message != second[i].Message {
			t.Fatalf("event %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestDatagram_MostlyDispatchable(t *testing.T) {
	Seed(7)
	d := parsers.NewDispatcher()
	dispatched := 0
	for i := 0; i < 100; i++ {
		env := syslog.ParseEnvelope(Datagram(), "192.0.2.1", time.Now())
		if d.Dispatch(env) != nil {
			dispatched++
		}
	}
	// Seven of the eight generator shapes carry vendor markers.
	if dispatched < 50 {
		t.Errorf("only %d/100 datagrams dispatched to a vendor parser", dispatched)
	}
}

func TestDatagram_NonEmpty(t *testing.T) {
	Seed(1)
	for i := 0; i < 100; i++ {
		if Datagram() == "" {
			t.Fatal("empty datagram")
		}
	}
}

func TestEvent_StateChangeHasEntity(t *testing.T) {
	Seed(3)
	found := false
	for i := 0; i < 200 && !found; i++ {
		ev := Event()
		if ev.Type == event.TypeStateChange {
			found = true
			if ev.EntityID == "" {
				t.Error("state_change event without entity id")
			}
			if ev.SourceIP != "" {
				t.Error("state_change event with network provenance")
			}
		}
	}
	if !found {
		t.Skip("no state_change generated in sample")
	}
}
