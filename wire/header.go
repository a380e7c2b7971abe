package wire

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
)

// Header is the fixed 24-byte prefix of every wire frame:
// magic || command (12 bytes, null-padded ASCII) || length || checksum.
type Header struct {
	Magic    Magic
	Command  string
	Length   uint32
	Checksum [4]byte
}

func checksum(payload []byte) [4]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	var out [4]byte
	copy(out[:], second[:4])
	return out
}

// encodeCommand returns the 12-byte null-padded ASCII form of cmd. A command
// longer than CommandSize is truncated, matching the wire format's fixed
// width; callers are expected to only ever pass the short, fixed command
// strings defined in this package.
func encodeCommand(cmd string) [CommandSize]byte {
	var out [CommandSize]byte
	n := copy(out[:], cmd)
	_ = n
	return out
}

func decodeCommand(raw [CommandSize]byte) string {
	n := 0
	for n < CommandSize && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

// Write encodes h to w in wire order.
func (h *Header) Write(w io.Writer) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Magic))
	cmd := encodeCommand(h.Command)
	copy(buf[4:16], cmd[:])
	binary.LittleEndian.PutUint32(buf[16:20], h.Length)
	copy(buf[20:24], h.Checksum[:])
	_, err := w.Write(buf[:])
	return err
}

// ReadHeader decodes a Header from r, validating the magic against want.
func ReadHeader(r io.Reader, want Magic) (*Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	h := &Header{
		Magic: Magic(binary.LittleEndian.Uint32(buf[0:4])),
	}
	var cmd [CommandSize]byte
	copy(cmd[:], buf[4:16])
	h.Command = decodeCommand(cmd)
	h.Length = binary.LittleEndian.Uint32(buf[16:20])
	copy(h.Checksum[:], buf[20:24])

	if h.Magic != want {
		return h, ErrWrongMagic
	}
	return h, nil
}
