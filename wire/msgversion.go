package wire

import (
	"encoding/binary"
	"io"
)

// maxUserAgentLength bounds the varstr user agent field against hostile
// input; the Zcash reference clients cap it similarly.
const maxUserAgentLength = 256

// MsgVersion is the handshake's version payload.
type MsgVersion struct {
	Version     int32
	Services    uint64
	Timestamp   int64
	AddrRecv    NetworkAddress
	AddrFrom    NetworkAddress
	Nonce       uint64
	UserAgent   string
	StartHeight int32
	Relay       bool
}

func (m *MsgVersion) Command() string { return CmdVersion }

func (m *MsgVersion) BtcEncode(w io.Writer) error {
	var head [80]byte
	binary.LittleEndian.PutUint32(head[0:4], uint32(m.Version))
	binary.LittleEndian.PutUint64(head[4:12], m.Services)
	binary.LittleEndian.PutUint64(head[12:20], uint64(m.Timestamp))
	if _, err := w.Write(head[0:20]); err != nil {
		return err
	}
	if err := WriteNetworkAddress(w, &m.AddrRecv, false); err != nil {
		return err
	}
	if err := WriteNetworkAddress(w, &m.AddrFrom, false); err != nil {
		return err
	}
	var nonce [8]byte
	binary.LittleEndian.PutUint64(nonce[:], m.Nonce)
	if _, err := w.Write(nonce[:]); err != nil {
		return err
	}
	if err := WriteVarString(w, m.UserAgent); err != nil {
		return err
	}
	var tail [5]byte
	binary.LittleEndian.PutUint32(tail[0:4], uint32(m.StartHeight))
	if m.Relay {
		tail[4] = 1
	}
	_, err := w.Write(tail[:])
	return err
}

func (m *MsgVersion) BtcDecode(r io.Reader) error {
	var head [20]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return err
	}
	m.Version = int32(binary.LittleEndian.Uint32(head[0:4]))
	m.Services = binary.LittleEndian.Uint64(head[4:12])
	m.Timestamp = int64(binary.LittleEndian.Uint64(head[12:20]))

	recv, err := ReadNetworkAddress(r, false)
	if err != nil {
		return err
	}
	m.AddrRecv = *recv

	from, err := ReadNetworkAddress(r, false)
	if err != nil {
		return err
	}
	m.AddrFrom = *from

	var nonce [8]byte
	if _, err := io.ReadFull(r, nonce[:]); err != nil {
		return err
	}
	m.Nonce = binary.LittleEndian.Uint64(nonce[:])

	ua, err := ReadVarString(r, maxUserAgentLength)
	if err != nil {
		return err
	}
	m.UserAgent = ua

	var tail [5]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return err
	}
	m.StartHeight = int32(binary.LittleEndian.Uint32(tail[0:4]))
	m.Relay = tail[4] != 0
	return nil
}
