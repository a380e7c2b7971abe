package wire

import "io"

// maxAddrEntries bounds the number of addresses a single Addr payload may
// carry, guarding against a hostile peer forcing unbounded allocation.
const maxAddrEntries = 2000

// MsgAddr carries a set of NetworkAddress entries, each with a timestamp of
// last activity as observed by the sender.
type MsgAddr struct {
	Addrs []*NetworkAddress
}

func (m *MsgAddr) Command() string { return CmdAddr }

func (m *MsgAddr) BtcEncode(w io.Writer) error {
	if err := WriteVarInt(w, uint64(len(m.Addrs))); err != nil {
		return err
	}
	for _, a := range m.Addrs {
		if err := WriteNetworkAddress(w, a, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgAddr) BtcDecode(r io.Reader) error {
	n, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > maxAddrEntries {
		return io.ErrShortBuffer
	}
	addrs := make([]*NetworkAddress, 0, n)
	for i := uint64(0); i < n; i++ {
		a, err := ReadNetworkAddress(r, true)
		if err != nil {
			return err
		}
		addrs = append(addrs, a)
	}
	m.Addrs = addrs
	return nil
}
