package wire

import "io"

// OpaquePayload stores a message's payload as the raw bytes carried on the
// wire, for commands whose payload this engine round-trips without
// interpreting: Inv, GetData, NotFound, GetBlocks, GetHeaders, Headers,
// Block, Tx, FilterLoad. This engine has no use for their structured
// fields, since it does no block, transaction, or proof validation — it
// only needs to frame, checksum, and pass them through untouched, which
// OpaquePayload does losslessly.
type OpaquePayload struct {
	cmd string
	Raw []byte
}

func (m *OpaquePayload) Command() string { return m.cmd }

func (m *OpaquePayload) BtcEncode(w io.Writer) error {
	_, err := w.Write(m.Raw)
	return err
}

func (m *OpaquePayload) BtcDecode(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.Raw = raw
	return nil
}

func newOpaque(cmd string) func() Message {
	return func() Message { return &OpaquePayload{cmd: cmd} }
}

// Constructors mirroring the spec's per-command variants. Each returns a
// fresh OpaquePayload stamped with its command so Connection/Codec dispatch
// stays symmetric with the structured message types.
var (
	NewMsgInv        = newOpaque(CmdInv)
	NewMsgGetData    = newOpaque(CmdGetData)
	NewMsgNotFound   = newOpaque(CmdNotFound)
	NewMsgGetBlocks  = newOpaque(CmdGetBlocks)
	NewMsgGetHeaders = newOpaque(CmdGetHeaders)
	NewMsgHeaders    = newOpaque(CmdHeaders)
	NewMsgBlock      = newOpaque(CmdBlock)
	NewMsgTx         = newOpaque(CmdTx)
	NewMsgFilterLoad = newOpaque(CmdFilterLoad)
)

// NewMsgFilterAdd returns a new, empty filteradd message.
func NewMsgFilterAdd() Message { return &MsgFilterAdd{} }
