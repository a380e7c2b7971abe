package wire

import (
	"encoding/binary"
	"io"
)

// MsgPing carries a nonce the peer is expected to echo back in a Pong.
type MsgPing struct {
	Nonce uint64
}

func (m *MsgPing) Command() string { return CmdPing }

func (m *MsgPing) BtcEncode(w io.Writer) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], m.Nonce)
	_, err := w.Write(buf[:])
	return err
}

func (m *MsgPing) BtcDecode(r io.Reader) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	m.Nonce = binary.LittleEndian.Uint64(buf[:])
	return nil
}

// MsgPong echoes the nonce from a Ping.
type MsgPong struct {
	Nonce uint64
}

func (m *MsgPong) Command() string { return CmdPong }

func (m *MsgPong) BtcEncode(w io.Writer) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], m.Nonce)
	_, err := w.Write(buf[:])
	return err
}

func (m *MsgPong) BtcDecode(r io.Reader) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	m.Nonce = binary.LittleEndian.Uint64(buf[:])
	return nil
}
