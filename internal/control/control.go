// Package control exposes a small remote-control surface over a running
// simulation: pause, resume, abort, and a point-in-time stats snapshot.
// The transport is a bare gRPC server, wired the same vestigial way the
// teacher's gossip transport wires one — listening and serving before any
// service is registered against it — with the actual command dispatch
// kept as a plain Go method so it is testable without a network round
// trip.
package control

import (
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"

	"repram/internal/stats"
)

// Command is one of the four remote-control verbs.
type Command string

const (
	Pause    Command = "pause"
	Resume   Command = "resume"
	Abort    Command = "abort"
	Snapshot Command = "snapshot"
)

// Response is the result of dispatching a Command.
type Response struct {
	Success bool
	Error   string
	Stats   stats.Snapshot
}

// Handler is the simulator-side hook control dispatches to. Pause/Resume/
// Abort act on the run in progress; Snapshot never errors.
type Handler interface {
	Pause() error
	Resume() error
	Abort() error
	Snapshot() stats.Snapshot
}

// Server holds a Handler and, once Start is called, a listening gRPC
// server accepting control connections.
type Server struct {
	addr    string
	handler Handler

	mu     sync.Mutex
	server *grpc.Server
	lis    net.Listener
}

// NewServer returns a control Server bound to addr but not yet listening.
func NewServer(addr string, handler Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Dispatch runs one command against the handler. It is the actual control
// logic; Start/Stop only manage the network listener around it.
func (s *Server) Dispatch(cmd Command) Response {
	switch cmd {
	case Pause:
		if err := s.handler.Pause(); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Success: true}
	case Resume:
		if err := s.handler.Resume(); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Success: true}
	case Abort:
		if err := s.handler.Abort(); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Success: true}
	case Snapshot:
		return Response{Success: true, Stats: s.handler.Snapshot()}
	default:
		return Response{Error: fmt.Sprintf("control: unknown command %q", cmd)}
	}
}

// Start opens the control listener and begins serving. No service is
// registered on the returned grpc.Server yet — remote dispatch waits on a
// concrete wire protocol; Dispatch is reachable in-process today.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("control: listen on %s: %w", s.addr, err)
	}
	s.lis = lis
	s.server = grpc.NewServer()

	go func() {
		_ = s.server.Serve(lis)
	}()
	return nil
}

// Stop gracefully shuts down the control listener, if started.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		s.server.GracefulStop()
		s.server = nil
	}
	return nil
}
