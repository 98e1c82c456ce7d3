package syslog

import (
	"net"
	"testing"
	"time"
)

func startListener(t *testing.T, handler Handler) *Listener {
	t.Helper()
	l := NewListener("127.0.0.1", 0, handler)
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(l.Stop)
	return l
}

func sendDatagram(t *testing.T, addr net.Addr, payload string) {
	t.Helper()
	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial listener: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("send datagram: %v", err)
	}
}

func TestListener_DeliversEnvelope(t *testing.T) {
	got := make(chan *Envelope, 1)
	l := startListener(t, func(env *Envelope) { got <- env })

	sendDatagram(t, l.Addr(), "<134>2024-06-01T12:00:00Z fw01 kernel: link up")

	select {
	case env := <-got:
		if env.Facility != 16 || env.Priority != 6 {
			t.Errorf("pri = %d/%d, want 16/6", env.Facility, env.Priority)
		}
		if env.Hostname != "fw01" {
			t.Errorf("Hostname = %q, want fw01", env.Hostname)
		}
		if env.SourceIP == "" {
			t.Error("SourceIP not captured")
		}
		if env.ReceivedAt.IsZero() {
			t.Error("ReceivedAt not set")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestListener_DiscardsEmptyDatagram(t *testing.T) {
	got := make(chan *Envelope, 2)
	l := startListener(t, func(env *Envelope) { got <- env })

	sendDatagram(t, l.Addr(), "   ")
	sendDatagram(t, l.Addr(), "real payload here now")

	select {
	case env := <-got:
		if env.Raw != "real payload here now" {
			t.Errorf("Raw = %q, blank datagram should have been dropped", env.Raw)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestListener_HandlerPanicDoesNotKillListener(t *testing.T) {
	got := make(chan string, 2)
	l := startListener(t, func(env *Envelope) {
		if env.Raw == "boom" {
			panic("handler blew up")
		}
		got <- env.Raw
	})

	sendDatagram(t, l.Addr(), "boom")
	sendDatagram(t, l.Addr(), "still alive")

	select {
	case raw := <-got:
		if raw != "still alive" {
			t.Errorf("Raw = %q, want the follow-up datagram", raw)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listener stopped delivering after handler panic")
	}
}

func TestListener_StopIdempotent(t *testing.T) {
	l := startListener(t, func(env *Envelope) {})
	l.Stop()
	l.Stop()
}

func TestListener_StartTwice(t *testing.T) {
	l := startListener(t, func(env *Envelope) {})
	if err := l.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
}
