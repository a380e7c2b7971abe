// Copyright 2024 by the Authors
// This file is part of the zcash-network-stack library.
//
// The zcash-network-stack library is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public License
// as published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// The zcash-network-stack library is distributed in the hope that it will be
// useful, but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU Lesser
// General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the zcash-network-stack library. If not, see
// <http://www.gnu.org/licenses/>.

package p2p

import "errors"

// Handshake errors.
var (
	ErrTimeout         = errors.New("p2p: handshake timed out")
	ErrPeerClosedEarly = errors.New("p2p: peer closed connection during handshake")
	ErrVersionMismatch = errors.New("p2p: peer protocol version below minimum")
	ErrSelfConnection  = errors.New("p2p: peer nonce matches a local nonce")
	ErrPolicyReject    = errors.New("p2p: handshake aborted by policy hook")
)

// Runtime errors.
var (
	ErrQueueFull      = errors.New("p2p: outbound queue full")
	ErrNotEstablished = errors.New("p2p: connection is not established")
	ErrClosed         = errors.New("p2p: connection is closed")
)
