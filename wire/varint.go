package wire

import (
	"encoding/binary"
	"io"
)

// Varint markers, following the Bitcoin-lineage wire convention also used by
// Zcash: a value below 0xFD is encoded in its single prefix byte; larger
// values use a marker byte followed by 2, 4, or 8 little-endian bytes.
const (
	varintMarker16 = 0xFD
	varintMarker32 = 0xFE
	varintMarker64 = 0xFF
)

// WriteVarInt writes n using the minimal varint encoding.
func WriteVarInt(w io.Writer, n uint64) error {
	switch {
	case n < varintMarker16:
		_, err := w.Write([]byte{byte(n)})
		return err
	case n <= 0xFFFF:
		buf := make([]byte, 3)
		buf[0] = varintMarker16
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
		_, err := w.Write(buf)
		return err
	case n <= 0xFFFFFFFF:
		buf := make([]byte, 5)
		buf[0] = varintMarker32
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf)
		return err
	default:
		buf := make([]byte, 9)
		buf[0] = varintMarker64
		binary.LittleEndian.PutUint64(buf[1:], n)
		_, err := w.Write(buf)
		return err
	}
}

// ReadVarInt reads a varint written by WriteVarInt.
func ReadVarInt(r io.Reader) (uint64, error) {
	var marker [1]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return 0, err
	}
	switch marker[0] {
	case varintMarker16:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(buf[:])), nil
	case varintMarker32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(buf[:])), nil
	case varintMarker64:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(buf[:]), nil
	default:
		return uint64(marker[0]), nil
	}
}

// WriteVarString writes a length-prefixed UTF-8 string.
func WriteVarString(w io.Writer, s string) error {
	if err := WriteVarInt(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadVarString reads a length-prefixed UTF-8 string, bounded by maxLen.
func ReadVarString(r io.Reader, maxLen uint64) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n > maxLen {
		return "", io.ErrShortBuffer
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteVarBytes writes a length-prefixed byte slice.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarBytes reads a length-prefixed byte slice, bounded by maxLen.
func ReadVarBytes(r io.Reader, maxLen uint64) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > maxLen {
		return nil, io.ErrShortBuffer
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
