package wire

import (
	"bytes"
	"net"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// TestRoundTrip asserts decode(encode(m)) == m for every structured message
// variant this package implements.
func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"version", &MsgVersion{
			Version:   int32(MinVersion),
			Services:  1,
			Timestamp: 1700000000,
			AddrRecv:  NetworkAddress{Services: 1, IP: net.ParseIP("1.2.3.4"), Port: DefaultPort},
			AddrFrom:  NetworkAddress{Services: 1, IP: net.ParseIP("5.6.7.8"), Port: DefaultPort},
			Nonce:     0xdeadbeefcafef00d,
			UserAgent: "/synth:0.1/",
			StartHeight: 123456,
			Relay:       true,
		}},
		{"verack", NewMsgVerack()},
		{"ping", &MsgPing{Nonce: 42}},
		{"pong", &MsgPong{Nonce: 42}},
		{"getaddr", NewMsgGetAddr()},
		{"addr", &MsgAddr{Addrs: []*NetworkAddress{
			{Timestamp: 111, Services: 1, IP: net.ParseIP("9.9.9.9"), Port: 8233},
		}}},
		{"reject", &MsgReject{RejectedCommand: CmdVersion, Code: RejectObsolete, Reason: "obsolete"}},
		{"filteradd", &MsgFilterAdd{Data: []byte{1, 2, 3}}},
		{"filterclear", NewMsgFilterClear()},
		{"mempool", NewMsgMempool()},
		{"inv", NewMsgInv()},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, MagicMainnet, tc.msg); err != nil {
				t.Fatalf("Encode: %v", err)
			}

			got, err := Decode(&buf, MagicMainnet, 0)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if got.Command() != tc.msg.Command() {
				t.Fatalf("command mismatch: got %s want %s", got.Command(), tc.msg.Command())
			}

			var wantBuf, gotBuf bytes.Buffer
			_ = tc.msg.BtcEncode(&wantBuf)
			_ = got.BtcEncode(&gotBuf)
			if !bytes.Equal(wantBuf.Bytes(), gotBuf.Bytes()) {
				t.Errorf("round-trip mismatch for %s\n got: %s\nwant: %s",
					tc.name, spew.Sdump(gotBuf.Bytes()), spew.Sdump(wantBuf.Bytes()))
			}
		})
	}
}

// TestHeaderChecksum asserts the header checksum equals the first four bytes
// of double-SHA-256 over the payload.
func TestHeaderChecksum(t *testing.T) {
	msg := &MsgPing{Nonce: 7}
	var buf bytes.Buffer
	if err := Encode(&buf, MagicMainnet, msg); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	h, err := ReadHeader(bytes.NewReader(buf.Bytes()[:HeaderSize]), MagicMainnet)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	var payload bytes.Buffer
	_ = msg.BtcEncode(&payload)
	want := checksum(payload.Bytes())
	if h.Checksum != want {
		t.Errorf("checksum mismatch: got %x want %x", h.Checksum, want)
	}
}

func TestDecodeWrongMagic(t *testing.T) {
	var buf bytes.Buffer
	_ = Encode(&buf, MagicTestnet, NewMsgVerack())

	_, err := Decode(&buf, MagicMainnet, 0)
	if err != ErrWrongMagic {
		t.Fatalf("got %v, want ErrWrongMagic", err)
	}
}

func TestDecodeOversize(t *testing.T) {
	frame := WriteValidHeaderArbitraryBody(MagicMainnet, CmdPing, make([]byte, 16))
	var buf bytes.Buffer
	if err := frame.WriteFrame(&buf); err != nil {
		t.Fatal(err)
	}

	_, err := Decode(&buf, MagicMainnet, 8)
	if err != ErrOversize {
		t.Fatalf("got %v, want ErrOversize", err)
	}
}

func TestDecodeBadChecksumNonFatal(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	frame := WriteValidHeaderArbitraryBody(MagicMainnet, CmdPing, body)
	frame.Checksum[0] ^= 0xFF // flip a checksum byte

	var buf bytes.Buffer
	if err := frame.WriteFrame(&buf); err != nil {
		t.Fatal(err)
	}

	_, err := Decode(&buf, MagicMainnet, 0)
	if err != ErrBadChecksum {
		t.Fatalf("got %v, want ErrBadChecksum", err)
	}
}

func TestDecodeUnknownCommandNonFatal(t *testing.T) {
	frame := WriteValidHeaderArbitraryBody(MagicMainnet, "bogus", nil)
	var buf bytes.Buffer
	if err := frame.WriteFrame(&buf); err != nil {
		t.Fatal(err)
	}

	_, err := Decode(&buf, MagicMainnet, 0)
	var unknown *UnknownCommandError
	if err == nil {
		t.Fatal("expected an error")
	}
	if uc, ok := err.(*UnknownCommandError); !ok {
		t.Fatalf("got %T, want *UnknownCommandError", err)
	} else {
		unknown = uc
	}
	if unknown.Command != "bogus" {
		t.Errorf("got command %q, want %q", unknown.Command, "bogus")
	}
}
