// This file is part of duskchain.
//
// duskchain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// duskchain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with duskchain. If not, see <http://www.gnu.org/licenses/>.

// Package network implements the gossip protocol nodes use to synchronize
// chains and relay transactions: one framed message per TCP connection, a
// 12-byte zero-padded ASCII command name followed by a gob-encoded payload.
package network

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"duskchain/core/chainerrors"
)

const protocol = "tcp"
const nodeVersion = 1
const cmdLen = 12

// Command names, matching the bytes sent on the wire.
const (
	cmdVersion   = "version"
	cmdAddr      = "addr"
	cmdInv       = "inv"
	cmdGetBlocks = "getblocks"
	cmdGetData   = "getdata"
	cmdBlock     = "block"
	cmdTx        = "tx"
)

// versionMessage lets a peer compare chain heights and discover the
// sender's address.
type versionMessage struct {
	Version    int
	Height     int
	SenderAddr string
}

// addrMessage shares known peer addresses.
type addrMessage struct {
	AddrList []string
}

// inventoryMessage advertises hashes of blocks or transactions the sender
// has available.
type inventoryMessage struct {
	SenderAddr string
	Kind       string // "block" or "tx"
	Items      [][]byte
}

// getBlocksMessage asks the receiver for every block hash it knows.
type getBlocksMessage struct {
	SenderAddr string
}

// getDataMessage asks the receiver for one specific block or transaction.
type getDataMessage struct {
	SenderAddr string
	Kind       string
	ID         []byte
}

// blockMessage carries one serialized block.
type blockMessage struct {
	SenderAddr string
	Block      []byte
}

// txMessage carries one serialized transaction.
type txMessage struct {
	SenderAddr  string
	Transaction []byte
}

// encodeCommand renders a command name as the fixed-width, zero-padded
// prefix every message starts with.
func encodeCommand(cmd string) []byte {
	var buf [cmdLen]byte
	copy(buf[:], cmd)
	return buf[:]
}

// decodeCommand strips the zero padding from a command prefix.
func decodeCommand(raw []byte) string {
	end := bytes.IndexByte(raw, 0x00)
	if end == -1 {
		end = len(raw)
	}
	return string(raw[:end])
}

// gobEncode gob-encodes v, panicking only on a programmer error (an
// unencodable type), matching the other gob call sites in this codebase.
func gobEncode(v interface{}) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		panic(errors.Wrap(err, "gob-encode wire message"))
	}
	return buf.Bytes()
}

// frame builds a complete wire message: command prefix followed by the
// gob-encoded payload.
func frame(cmd string, payload interface{}) []byte {
	return append(encodeCommand(cmd), gobEncode(payload)...)
}

// decodePayload gob-decodes the portion of raw after the command prefix
// into dst.
func decodePayload(raw []byte, dst interface{}) error {
	if len(raw) < cmdLen {
		return errors.WithStack(chainerrors.ErrMalformed)
	}
	if err := gob.NewDecoder(bytes.NewReader(raw[cmdLen:])).Decode(dst); err != nil {
		return errors.Wrap(err, "decode wire payload")
	}
	return nil
}
