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

// Package chainerrors collects the sentinel errors raised by the chain,
// UTXO, and gossip layers so callers can distinguish failure kinds with
// errors.Is instead of matching on message text.
package chainerrors

import "errors"

// Configuration errors.
var (
	ErrNodeIDMissing      = errors.New("chainerrors: NODE_ID is not set")
	ErrInvalidAddress     = errors.New("chainerrors: address has an invalid checksum")
	ErrAlreadyInitialized = errors.New("chainerrors: blockchain already initialized for this node")
	ErrNotInitialized     = errors.New("chainerrors: no blockchain found for this node")
)

// Cryptographic errors.
var (
	ErrBadSignature = errors.New("chainerrors: signature verification failed")
	ErrKeyDecode    = errors.New("chainerrors: could not decode key material")
)

// Transaction errors.
var (
	ErrInputUnknown      = errors.New("chainerrors: referenced previous transaction is unknown")
	ErrInsufficientFunds = errors.New("chainerrors: accumulated inputs are less than the requested amount")
	ErrDoubleSpend       = errors.New("chainerrors: output already spent")
	ErrInvalidCoinbase   = errors.New("chainerrors: malformed coinbase transaction")
)

// Chain errors.
var (
	// ErrBlockAlreadyPresent is never returned to a caller as a failure; it is
	// used only to decide whether AddBlock should log-and-skip.
	ErrBlockAlreadyPresent = errors.New("chainerrors: block already present")
	ErrNotFound            = errors.New("chainerrors: not found")
)

// Network errors.
var (
	ErrConnectFailed = errors.New("chainerrors: could not connect to peer")
	ErrMalformed     = errors.New("chainerrors: malformed message")
)

// Mining errors.
var (
	ErrMiningExhausted = errors.New("chainerrors: nonce space exhausted before a valid hash was found")
)

// Wallet errors.
var (
	ErrWalletNotFound = errors.New("chainerrors: no wallet for that address")
)
