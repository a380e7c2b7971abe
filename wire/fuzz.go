package wire

import "io"

// RawFrame lets a fuzz harness construct wire frames with independently
// controlled header fields and body bytes, bypassing the structured
// Message/Header coupling Encode enforces.
type RawFrame struct {
	Magic    Magic
	Command  string
	Length   uint32 // need not match len(Body); caller's choice
	Checksum [4]byte
	Body     []byte
}

// WriteValidHeaderArbitraryBody builds a RawFrame whose header fields are
// internally consistent (Length and Checksum computed from body) but whose
// body is caller-supplied arbitrary bytes.
func WriteValidHeaderArbitraryBody(magic Magic, command string, body []byte) *RawFrame {
	return &RawFrame{
		Magic:    magic,
		Command:  command,
		Length:   uint32(len(body)),
		Checksum: checksum(body),
		Body:     body,
	}
}

// WriteFrame encodes f verbatim: whatever Length/Checksum/Body it carries is
// written as-is, with no recomputation, so the caller can produce any
// length/checksum combination independently of the body's actual content.
func (f *RawFrame) WriteFrame(w io.Writer) error {
	h := &Header{Magic: f.Magic, Command: f.Command, Length: f.Length, Checksum: f.Checksum}
	if err := h.Write(w); err != nil {
		return err
	}
	_, err := w.Write(f.Body)
	return err
}

// WriteRawBytes writes data to w with no header at all.
func WriteRawBytes(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}
