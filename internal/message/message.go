// Package message defines the wire-level record carried through PONS: the
// Message, its node/port identifiers, and the operations derived from them
// (unique id, expiry, cloning for fan-out).
package message

import (
	"fmt"

	"repram/internal/engine"
)

// NodeID identifies a simulated node. It is the sole identifier used
// throughout PONS; there is no separate "address" concept layered on top.
type NodeID int

// Broadcast is the reserved destination id meaning "every current neighbour
// on the sending interface".
const Broadcast NodeID = -1

// Port is a small-integer service demultiplexer.
type Port int

// Message is the record store-and-forward routers exchange. Size is
// immutable once created; Hops only ever increases.
type Message struct {
	ID         string         `json:"id"`
	Src        NodeID         `json:"src"`
	Dst        NodeID         `json:"dst"`
	SrcService Port           `json:"src_service"`
	DstService Port           `json:"dst_service"`
	Size       int            `json:"size"`
	Created    engine.Time    `json:"created"`
	TTL        engine.Time    `json:"ttl"`
	Hops       int            `json:"hops"`
	Payload    []byte         `json:"payload,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// UniqueID returns the de-duplication key "{id}-{src}-{created}", stable
// across clones and forwards of the same message.
func (m *Message) UniqueID() string {
	return fmt.Sprintf("%s-%d-%g", m.ID, m.Src, float64(m.Created))
}

// IsExpired reports whether now is strictly past created+ttl.
func (m *Message) IsExpired(now engine.Time) bool {
	return now > m.Created+m.TTL
}

// IsBundle reports whether this message is a user bundle rather than a
// control packet (metadata bundle=false bypasses routing acceptance, e.g.
// a peer-discovery HELLO).
func (m *Message) IsBundle() bool {
	if m.Metadata == nil {
		return true
	}
	if v, ok := m.Metadata["bundle"]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return true
}

// Clone returns a header copy sharing the same payload slice: forwarding a
// message to multiple peers clones the per-router header state (hops,
// metadata) while the immutable payload bytes are shared.
func (m *Message) Clone() *Message {
	c := *m
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
