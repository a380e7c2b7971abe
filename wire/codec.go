package wire

import (
	"bytes"
	"io"
)

// messageFactories maps a command string to a constructor for the Message
// implementation that decodes it.
var messageFactories = map[string]func() Message{
	CmdVersion:     func() Message { return &MsgVersion{} },
	CmdVerack:      func() Message { return NewMsgVerack() },
	CmdPing:        func() Message { return &MsgPing{} },
	CmdPong:        func() Message { return &MsgPong{} },
	CmdGetAddr:     func() Message { return NewMsgGetAddr() },
	CmdAddr:        func() Message { return &MsgAddr{} },
	CmdInv:         func() Message { return NewMsgInv() },
	CmdGetData:     func() Message { return NewMsgGetData() },
	CmdNotFound:    func() Message { return NewMsgNotFound() },
	CmdGetBlocks:   func() Message { return NewMsgGetBlocks() },
	CmdGetHeaders:  func() Message { return NewMsgGetHeaders() },
	CmdHeaders:     func() Message { return NewMsgHeaders() },
	CmdBlock:       func() Message { return NewMsgBlock() },
	CmdTx:          func() Message { return NewMsgTx() },
	CmdMempool:     func() Message { return NewMsgMempool() },
	CmdReject:      func() Message { return &MsgReject{} },
	CmdFilterLoad:  func() Message { return NewMsgFilterLoad() },
	CmdFilterAdd:   func() Message { return NewMsgFilterAdd() },
	CmdFilterClear: func() Message { return NewMsgFilterClear() },
}

// Encode serialises m into the header+payload wire form for the given
// network magic and writes it to w.
func Encode(w io.Writer, magic Magic, m Message) error {
	var payload bytes.Buffer
	if err := m.BtcEncode(&payload); err != nil {
		return err
	}
	h := &Header{
		Magic:    magic,
		Command:  m.Command(),
		Length:   uint32(payload.Len()),
		Checksum: checksum(payload.Bytes()),
	}
	if err := h.Write(w); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// Decode reads one header+payload frame from r. maxPayload bounds the
// accepted Length field (0 uses MaxPayloadSize).
//
// A non-nil error is one of three kinds: ErrWrongMagic and ErrOversize are
// fatal to the connection; ErrBadChecksum, *UnknownCommandError, and
// *BadPayloadError are not — the caller should drop the frame and keep
// reading; any other error is an I/O error from r, returned as-is.
func Decode(r io.Reader, magic Magic, maxPayload uint32) (Message, error) {
	if maxPayload == 0 {
		maxPayload = MaxPayloadSize
	}

	h, err := ReadHeader(r, magic)
	if err != nil {
		return nil, err
	}
	if h.Length > maxPayload {
		return nil, ErrOversize
	}

	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	if checksum(payload) != h.Checksum {
		return nil, ErrBadChecksum
	}

	factory, ok := messageFactories[h.Command]
	if !ok {
		return nil, &UnknownCommandError{Command: h.Command}
	}

	m := factory()
	if err := m.BtcDecode(bytes.NewReader(payload)); err != nil {
		return nil, &BadPayloadError{Command: h.Command, Err: err}
	}
	return m, nil
}
