// Package app defines the per-node application hook: user code that
// receives messages addressed to a service port and may emit new ones.
package app

import (
	"errors"

	"repram/internal/engine"
	"repram/internal/message"
)

// ErrAppMissing is the sentinel a Registry reports when a delivered
// message's destination service matches no registered application. It is
// never fatal: the router logs APP_NOT_FOUND and moves on.
var ErrAppMissing = errors.New("app: no application bound to service")

// Sender is the capability an App uses to emit new traffic. It is
// typically implemented by a node's router.
type Sender interface {
	SendLocal(now engine.Time, m *message.Message) error
}

// App is user code bound to one service port on one node. Deliver is
// called by the router when a bundle's destination matches this app's
// service. The interface has no setup hook: an app that needs its own
// scheduled tasks (e.g. a ping timer) spawns them through the
// Sender/scheduler it was constructed with.
type App interface {
	Service() message.Port
	Deliver(now engine.Time, m *message.Message)
}

// Registry binds service ports to applications for a single node.
type Registry struct {
	apps map[message.Port]App
}

// NewRegistry returns an empty per-node application registry.
func NewRegistry() *Registry {
	return &Registry{apps: make(map[message.Port]App)}
}

// Register binds app at its own declared service port, overwriting any
// previous binding for that port.
func (r *Registry) Register(a App) {
	r.apps[a.Service()] = a
}

// Deliver routes m to the app bound to m.DstService. Returns ErrAppMissing
// if no app is bound there.
func (r *Registry) Deliver(now engine.Time, m *message.Message) error {
	a, ok := r.apps[m.DstService]
	if !ok {
		return ErrAppMissing
	}
	a.Deliver(now, m)
	return nil
}

// Has reports whether a is bound to the registry for a given service.
func (r *Registry) Has(service message.Port) bool {
	_, ok := r.apps[service]
	return ok
}
