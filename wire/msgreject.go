package wire

import "io"

// Reject codes, as used by the Zcash/Bitcoin-lineage reject message.
const (
	RejectMalformed       = 0x01
	RejectInvalid         = 0x10
	RejectObsolete        = 0x11
	RejectDuplicate       = 0x12
	RejectNonstandard     = 0x40
	RejectDust            = 0x41
	RejectInsufficientFee = 0x42
	RejectCheckpoint      = 0x43
)

// MsgReject explains why a previous message from this connection was
// refused.
type MsgReject struct {
	RejectedCommand string
	Code            byte
	Reason          string
}

func (m *MsgReject) Command() string { return CmdReject }

func (m *MsgReject) BtcEncode(w io.Writer) error {
	if err := WriteVarString(w, m.RejectedCommand); err != nil {
		return err
	}
	if _, err := w.Write([]byte{m.Code}); err != nil {
		return err
	}
	return WriteVarString(w, m.Reason)
}

func (m *MsgReject) BtcDecode(r io.Reader) error {
	cmd, err := ReadVarString(r, CommandSize*2)
	if err != nil {
		return err
	}
	m.RejectedCommand = cmd

	var code [1]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return err
	}
	m.Code = code[0]

	reason, err := ReadVarString(r, 256)
	if err != nil {
		return err
	}
	m.Reason = reason
	return nil
}
