package app

import (
	"testing"

	"repram/internal/engine"
	"repram/internal/message"
)

type recordingApp struct {
	service  message.Port
	received []*message.Message
}

func (a *recordingApp) Service() message.Port { return a.service }
func (a *recordingApp) Deliver(now engine.Time, m *message.Message) {
	a.received = append(a.received, m)
}

func TestRegistryDeliversToMatchingService(t *testing.T) {
	reg := NewRegistry()
	a := &recordingApp{service: 7}
	reg.Register(a)

	m := &message.Message{ID: "x", DstService: 7}
	if err := reg.Deliver(0, m); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(a.received) != 1 || a.received[0].ID != "x" {
		t.Fatalf("app received %v, want one message 'x'", a.received)
	}
}

func TestRegistryAppMissing(t *testing.T) {
	reg := NewRegistry()
	m := &message.Message{ID: "x", DstService: 99}
	if err := reg.Deliver(0, m); err != ErrAppMissing {
		t.Fatalf("Deliver() error = %v, want ErrAppMissing", err)
	}
}

func TestRegistryHas(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&recordingApp{service: 3})
	if !reg.Has(3) {
		t.Fatal("Has(3) = false, want true after registering service 3")
	}
	if reg.Has(4) {
		t.Fatal("Has(4) = true, want false for an unregistered service")
	}
}
