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

package wire

// Magic is the 4-byte network identifier that prefixes every message header.
type Magic uint32

// Known Zcash network magics.
const (
	MagicMainnet Magic = 0x6427E924
	MagicTestnet Magic = 0xBFF91AFA
	MagicRegtest Magic = 0xFA1AF9BF
)

// MinVersion is the lowest protocol version this engine will accept during
// handshake (NU5, NO_BLOOM_VERSION and above).
const MinVersion int32 = 170015

// DefaultPort is the Zcash mainnet listening port.
const DefaultPort = 8233

// MaxPayloadSize is the default ceiling on a single message's payload, in
// bytes. Decode rejects any header claiming a larger length.
const MaxPayloadSize = 2 * 1024 * 1024

// HeaderSize is the fixed, encoded size of a Header in bytes:
// magic(4) + command(12) + length(4) + checksum(4).
const HeaderSize = 24

// CommandSize is the fixed width of the null-padded ASCII command field.
const CommandSize = 12
