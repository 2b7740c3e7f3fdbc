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

// Package wallet holds key material and address derivation, kept separate
// from core so that the consensus and replication code never needs to know
// how (or whether) a signing key is persisted to disk.
package wallet

import (
	"crypto/ecdsa"

	"github.com/pkg/errors"

	"duskchain/core"
)

// Wallet is a single P-256 key pair together with the address it derives.
type Wallet struct {
	PrivateKey ecdsa.PrivateKey
	PubKey     []byte
}

// New generates a fresh wallet.
func New() (*Wallet, error) {
	priv, pub, err := core.GenerateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "generate wallet key pair")
	}
	return &Wallet{PrivateKey: priv, PubKey: pub}, nil
}

// Address derives this wallet's base58check address from its public key.
func (w *Wallet) Address() string {
	return core.AddressFromPubKeyHash(core.HashPubKey(w.PubKey))
}
