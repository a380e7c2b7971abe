package rpcserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/runziggurat/zcash/log"
	"github.com/runziggurat/zcash/metrics"
	"github.com/runziggurat/zcash/topology"
)

// Server serves the crawler's JSON-RPC 2.0 surface and websocket telemetry
// stream.
type Server struct {
	net *topology.Network
	log log.Logger
	hub *Hub

	httpServer *http.Server
}

// New builds a Server over graph with a fresh telemetry hub. Call Serve to
// bind and start accepting.
func New(graph *topology.Network, logger log.Logger) *Server {
	return NewWithHub(graph, NewHub(), logger)
}

// NewWithHub builds a Server over graph using an already-constructed hub,
// e.g. one already wired as a crawler.ProbeObserver before the Network it
// will report on exists.
func NewWithHub(graph *topology.Network, hub *Hub, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Root()
	}
	s := &Server{net: graph, log: logger.New("component", "rpcserver"), hub: hub}

	router := httprouter.New()
	router.POST("/", s.handleRPC)
	router.GET("/ws", s.handleWS)

	s.httpServer = &http.Server{Handler: router}
	return s
}

// Hub returns the websocket telemetry hub, e.g. to register it as the
// crawler's ProbeObserver.
func (s *Server) Hub() *Hub { return s.hub }

// Serve binds addr and serves until the listener is closed or ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = s.httpServer.Close()
	}()
	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ServeListener serves over an already-bound listener, e.g. one bound to
// port 0 by the caller so the resolved ephemeral address can be read back
// before Serve takes ownership of it.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = s.httpServer.Close()
	}()
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, codeParseError, "invalid JSON-RPC request")
		return
	}

	switch req.Method {
	case "getmetrics":
		writeResult(w, req.ID, metrics.Compute(s.net))
	case "getnodes":
		writeResult(w, req.ID, s.nodesSnapshot())
	case "ping":
		writeResult(w, req.ID, "pong")
	default:
		writeError(w, req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

// nodeEntry is one row of the getnodes response.
type nodeEntry struct {
	Addr             string `json:"addr"`
	HandshakeOutcome string `json:"handshake_outcome"`
	ProtocolVersion  int32  `json:"protocol_version,omitempty"`
	UserAgent        string `json:"user_agent,omitempty"`
	LastSeenAttempt  string `json:"last_seen_attempt,omitempty"`
	LastSeenSuccess  string `json:"last_seen_success,omitempty"`
}

func (s *Server) nodesSnapshot() []nodeEntry {
	snap := s.net.Snapshot()
	out := make([]nodeEntry, 0, len(snap.Vertices))
	for addr, v := range snap.Vertices {
		e := nodeEntry{Addr: addr, HandshakeOutcome: v.HandshakeOutcome.String()}
		if v.HasVersion {
			e.ProtocolVersion = v.ProtocolVersion
			e.UserAgent = v.UserAgent
		}
		if !v.LastSeenAttempt.IsZero() {
			e.LastSeenAttempt = v.LastSeenAttempt.Format(time.RFC3339)
		}
		if !v.LastSeenSuccess.IsZero() {
			e.LastSeenSuccess = v.LastSeenSuccess.Format(time.RFC3339)
		}
		out = append(out, e)
	}
	return out
}
