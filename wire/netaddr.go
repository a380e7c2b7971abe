package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// NetworkAddress is the Zcash wire encoding of a peer's reachable address.
// Timestamp is only present on entries inside an Addr payload; the
// addr_recv/addr_from fields of a VersionPayload omit it.
type NetworkAddress struct {
	Timestamp uint32 // seconds since epoch; ignored when withTimestamp is false
	Services  uint64
	IP        net.IP // always stored as a 16-byte (v6-mapped) address
	Port      uint16
}

func (a *NetworkAddress) writeBody(w io.Writer) error {
	var buf [26]byte
	binary.LittleEndian.PutUint64(buf[0:8], a.Services)
	ip := a.IP.To16()
	if ip == nil {
		ip = net.IPv6zero
	}
	copy(buf[8:24], ip)
	// Port is big-endian on the wire, matching the Bitcoin-lineage
	// convention this header layout derives from.
	binary.BigEndian.PutUint16(buf[24:26], a.Port)
	_, err := w.Write(buf[:])
	return err
}

func (a *NetworkAddress) readBody(r io.Reader) error {
	var buf [26]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	a.Services = binary.LittleEndian.Uint64(buf[0:8])
	ip := make(net.IP, 16)
	copy(ip, buf[8:24])
	a.IP = ip
	a.Port = binary.BigEndian.Uint16(buf[24:26])
	return nil
}

// WriteNetworkAddress encodes a NetworkAddress, optionally including the
// 4-byte timestamp prefix used by Addr payload entries.
func WriteNetworkAddress(w io.Writer, a *NetworkAddress, withTimestamp bool) error {
	if withTimestamp {
		var tbuf [4]byte
		binary.LittleEndian.PutUint32(tbuf[:], a.Timestamp)
		if _, err := w.Write(tbuf[:]); err != nil {
			return err
		}
	}
	return a.writeBody(w)
}

// ReadNetworkAddress decodes a NetworkAddress written by WriteNetworkAddress.
func ReadNetworkAddress(r io.Reader, withTimestamp bool) (*NetworkAddress, error) {
	a := &NetworkAddress{}
	if withTimestamp {
		var tbuf [4]byte
		if _, err := io.ReadFull(r, tbuf[:]); err != nil {
			return nil, err
		}
		a.Timestamp = binary.LittleEndian.Uint32(tbuf[:])
	}
	if err := a.readBody(r); err != nil {
		return nil, err
	}
	return a, nil
}

// String renders the address as host:port, unwrapping v4-mapped v6 addresses.
func (a *NetworkAddress) String() string {
	ip := a.IP
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	return fmt.Sprintf("%s:%d", ip.String(), a.Port)
}
