package peer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runziggurat/zcash/p2p"
	"github.com/runziggurat/zcash/wire"
)

func testConfig(listenAddr string, cb MessageCallback) Config {
	return Config{
		Magic:            wire.MagicRegtest,
		Version:          wire.MinVersion,
		UserAgent:        "/test:0.1/",
		ListenAddr:       listenAddr,
		Policy:           p2p.DefaultPolicy(),
		HandshakeTimeout: 2 * time.Second,
		Callback:         cb,
	}
}

func TestConnectAndSendAndExpect(t *testing.T) {
	responses := make(chan struct{}, 1)
	server, err := Start(testConfig("127.0.0.1:0", func(source string, msg wire.Message, reply Reply) {
		if msg.Command() == wire.CmdGetAddr {
			_ = reply.Send(&wire.MsgAddr{Addrs: []*wire.NetworkAddress{
				{Services: 1, IP: []byte{127, 0, 0, 1}, Port: 8233},
			}})
			responses <- struct{}{}
		}
	}))
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer server.Shutdown(time.Second)

	client, err := Start(testConfig("", nil))
	if err != nil {
		t.Fatalf("start client: %v", err)
	}
	defer client.Shutdown(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	addr, err := client.Connect(ctx, server.ListenAddr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	reply, err := client.SendAndExpect(ctx, addr, wire.NewMsgGetAddr(), func(m wire.Message) bool {
		return m.Command() == wire.CmdAddr
	}, 2*time.Second)
	require.NoError(t, err, "send_and_expect")
	addrMsg, ok := reply.(*wire.MsgAddr)
	require.True(t, ok, "reply type = %T, want *wire.MsgAddr", reply)
	require.Len(t, addrMsg.Addrs, 1)

	select {
	case <-responses:
	case <-time.After(time.Second):
		t.Fatal("server callback never fired")
	}

	stats := client.Stats()
	if stats.SentByKind[wire.CmdGetAddr] != 1 {
		t.Errorf("client sent_by_kind[getaddr] = %d, want 1", stats.SentByKind[wire.CmdGetAddr])
	}
	if stats.ReceivedByKind[wire.CmdAddr] != 1 {
		t.Errorf("client received_by_kind[addr] = %d, want 1", stats.ReceivedByKind[wire.CmdAddr])
	}
}

// TestSendBeforeHandshakeEstablishedFails exercises the window between a
// connection being registered and its handshake completing: an operation
// against it must report NotEstablishedError rather than UnknownPeerError.
func TestSendBeforeHandshakeEstablishedFails(t *testing.T) {
	// A bare listener that accepts but never speaks, so the client's
	// handshake never progresses past StateVersionSent.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-make(chan struct{})
	}()

	cfg := testConfig("", nil)
	cfg.HandshakeTimeout = 200 * time.Millisecond
	client, err := Start(cfg)
	if err != nil {
		t.Fatalf("start client: %v", err)
	}
	defer client.Shutdown(time.Second)

	addr := ln.Addr().String()
	connectDone := make(chan struct{})
	go func() {
		defer close(connectDone)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = client.Connect(ctx, addr)
	}()

	deadline := time.After(time.Second)
	for {
		err := client.SendDirect(addr, wire.NewMsgGetAddr())
		var notEstablished *NotEstablishedError
		if errors.As(err, &notEstablished) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("SendDirect never reported NotEstablishedError, last err = %v", err)
		case <-time.After(time.Millisecond):
		}
	}

	<-connectDone
}

func TestDenyListDropsBeforeCallback(t *testing.T) {
	server, err := Start(testConfig("127.0.0.1:0", nil))
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer server.Shutdown(time.Second)

	seen := make(chan string, 4)
	clientCfg := testConfig("", func(source string, msg wire.Message, reply Reply) {
		seen <- msg.Command()
	})
	clientCfg.DenyList = map[string]bool{wire.CmdPing: true}
	client, err := Start(clientCfg)
	if err != nil {
		t.Fatalf("start client: %v", err)
	}
	defer client.Shutdown(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Connect(ctx, server.ListenAddr()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	server.Broadcast(&wire.MsgPing{Nonce: 1})

	select {
	case cmd := <-seen:
		t.Fatalf("callback fired for %q despite deny list", cmd)
	case <-time.After(300 * time.Millisecond):
	}

	server.Broadcast(&wire.MsgPong{Nonce: 1})

	select {
	case cmd := <-seen:
		if cmd != wire.CmdPong {
			t.Fatalf("callback fired for %q, want %q", cmd, wire.CmdPong)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never fired for non-denied command")
	}
}
