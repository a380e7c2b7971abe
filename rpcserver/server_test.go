package rpcserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/runziggurat/zcash/topology"
)

func startTestServer(t *testing.T, graph *topology.Network) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := New(graph, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.ServeListener(ctx, ln)
	t.Cleanup(cancel)
	return s, ln.Addr().String()
}

func rpcCall(t *testing.T, addr, method string) response {
	t.Helper()
	body, _ := json.Marshal(request{JSONRPC: jsonrpcVersion, Method: method, ID: json.RawMessage("1")})
	resp, err := http.Post("http://"+addr+"/", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestPing(t *testing.T) {
	_, addr := startTestServer(t, topology.NewNetwork(0))
	out := rpcCall(t, addr, "ping")
	if out.Error != nil {
		t.Fatalf("unexpected error: %+v", out.Error)
	}
	result, ok := out.Result.(string)
	if !ok || result != "pong" {
		t.Errorf("ping result = %#v, want %q", out.Result, "pong")
	}
}

func TestGetMetricsAndGetNodes(t *testing.T) {
	netw := topology.NewNetwork(0)
	netw.RecordSuccess("1.2.3.4:8233", 170100, "/synth:0.1/", 1, time.Now())
	_, addr := startTestServer(t, netw)

	out := rpcCall(t, addr, "getmetrics")
	if out.Error != nil {
		t.Fatalf("getmetrics error: %+v", out.Error)
	}

	out = rpcCall(t, addr, "getnodes")
	if out.Error != nil {
		t.Fatalf("getnodes error: %+v", out.Error)
	}
	nodes, ok := out.Result.([]interface{})
	if !ok || len(nodes) != 1 {
		t.Fatalf("getnodes result = %#v, want a single-element list", out.Result)
	}
}

func TestUnknownMethod(t *testing.T) {
	_, addr := startTestServer(t, topology.NewNetwork(0))
	out := rpcCall(t, addr, "bogus")
	if out.Error == nil || out.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", out.Error)
	}
}

func TestWebsocketTelemetry(t *testing.T) {
	s, addr := startTestServer(t, topology.NewNetwork(0))

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine time to register the client before we
	// publish, since registration happens on accept, not on dial.
	time.Sleep(50 * time.Millisecond)
	s.Hub().ObserveProbe("10.0.0.1:8233", "ok")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read telemetry event: %v", err)
	}
	if evt.Addr != "10.0.0.1:8233" || evt.Outcome != "ok" {
		t.Errorf("unexpected event: %+v", evt)
	}
}
