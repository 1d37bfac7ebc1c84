package message

import "testing"

func TestUniqueID(t *testing.T) {
	m := &Message{ID: "m1", Src: 3, Created: 12.5}
	if got, want := m.UniqueID(), "m1-3-12.5"; got != want {
		t.Fatalf("UniqueID() = %q, want %q", got, want)
	}
}

func TestIsExpired(t *testing.T) {
	m := &Message{Created: 10, TTL: 5}
	if m.IsExpired(15) {
		t.Fatal("created+ttl == now should not be expired")
	}
	if !m.IsExpired(15.001) {
		t.Fatal("now just past created+ttl should be expired")
	}
	if m.IsExpired(14.999) {
		t.Fatal("now before created+ttl should not be expired")
	}
}

func TestIsBundle(t *testing.T) {
	m := &Message{}
	if !m.IsBundle() {
		t.Fatal("message with no metadata defaults to bundle")
	}
	m.Metadata = map[string]any{"bundle": false}
	if m.IsBundle() {
		t.Fatal("bundle=false should report control packet")
	}
}

func TestCloneIndependentMetadata(t *testing.T) {
	m := &Message{Metadata: map[string]any{"copies": 4}}
	c := m.Clone()
	c.Metadata["copies"] = 2
	if m.Metadata["copies"] != 4 {
		t.Fatal("clone mutated original metadata map")
	}
}
