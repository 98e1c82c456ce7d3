package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalize(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	ev := Normalize(&Draft{
		Type:     TypeFirewallBlock,
		Severity: SeverityMedium,
		Message:  "blocked",
		SourceIP: "192.0.2.1",
	}, at)

	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Errorf("ID %q is not a uuid: %v", ev.ID, err)
	}
	if ev.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp zone = %v, want UTC", ev.Timestamp.Location())
	}
	if !ev.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want instant %v", ev.Timestamp, at)
	}
	if ev.Data == nil {
		t.Error("Data is nil, want empty map")
	}

	again := Normalize(&Draft{Type: TypeFirewallBlock}, at)
	if again.ID == ev.ID {
		t.Error("two normalizations produced the same ID")
	}
}

func TestNormalize_ClampsSeverity(t *testing.T) {
	tests := []struct {
		in   Severity
		want Severity
	}{
		{SeverityCritical, SeverityCritical},
		{SeverityHigh, SeverityHigh},
		{SeverityMedium, SeverityMedium},
		{SeverityLow, SeverityLow},
		{"", SeverityLow},
		{"extreme", SeverityLow},
		{"HIGH", SeverityLow},
	}
	for _, tt := range tests {
		ev := Normalize(&Draft{Severity: tt.in}, time.Now())
		if ev.Severity != tt.want {
			t.Errorf("Normalize severity %q = %q, want %q", tt.in, ev.Severity, tt.want)
		}
	}
}

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("%q rank %d not above %q rank %d",
				order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}
	if !SeverityHigh.Valid() {
		t.Error("high reported invalid")
	}
	if Severity("urgent").Valid() {
		t.Error("unknown severity reported valid")
	}
}
