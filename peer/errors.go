package peer

import "fmt"

// UnknownPeerError reports an operation against an address this peer has no
// connection to.
type UnknownPeerError struct {
	Addr string
}

func (e *UnknownPeerError) Error() string {
	return fmt.Sprintf("peer: no connection to %s", e.Addr)
}

// NotEstablishedError reports an operation against a connection that exists
// but has not completed its handshake.
type NotEstablishedError struct {
	Addr string
}

func (e *NotEstablishedError) Error() string {
	return fmt.Sprintf("peer: connection to %s is not established", e.Addr)
}
