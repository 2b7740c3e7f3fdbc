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

package wallet

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"duskchain/core"
	"duskchain/core/chainerrors"
	"duskchain/utils"
)

func walletFilePath(nodeID string) string {
	return fmt.Sprintf("wallet_%s.dat", nodeID)
}

// record is the on-disk form of a Wallet: the private key PKCS#8-encoded
// rather than gob-encoded directly, so the file format doesn't depend on
// gob's representation of ecdsa.PrivateKey's unexported curve internals.
type record struct {
	PrivateKeyDER []byte
	PubKey        []byte
}

// Wallets is the set of key pairs a node holds, persisted to a per-node
// file on disk.
type Wallets struct {
	nodeID string
	byAddr map[string]*Wallet
}

// Load opens (or initializes, if none exists yet) the wallet file for
// nodeID.
func Load(nodeID string) (*Wallets, error) {
	ws := &Wallets{nodeID: nodeID, byAddr: make(map[string]*Wallet)}

	exists, err := utils.FileExists(walletFilePath(nodeID))
	if err != nil {
		return nil, errors.Wrap(err, "check for existing wallet file")
	}
	if !exists {
		return ws, nil
	}

	data, err := os.ReadFile(walletFilePath(nodeID))
	if err != nil {
		return nil, errors.Wrap(err, "read wallet file")
	}

	var records map[string]record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "decode wallet file")
	}

	for addr, rec := range records {
		priv, err := core.UnmarshalPrivateKeyPKCS8(rec.PrivateKeyDER)
		if err != nil {
			return nil, errors.Wrapf(err, "decode private key for %s", addr)
		}
		ws.byAddr[addr] = &Wallet{PrivateKey: priv, PubKey: rec.PubKey}
	}
	return ws, nil
}

// Save writes the full wallet set back to ws's file.
func (ws *Wallets) Save() error {
	records := make(map[string]record, len(ws.byAddr))
	for addr, w := range ws.byAddr {
		der, err := core.MarshalPrivateKeyPKCS8(&w.PrivateKey)
		if err != nil {
			return errors.Wrapf(err, "encode private key for %s", addr)
		}
		records[addr] = record{PrivateKeyDER: der, PubKey: w.PubKey}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return errors.Wrap(err, "encode wallet file")
	}
	if err := os.WriteFile(walletFilePath(ws.nodeID), buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "write wallet file")
	}
	return nil
}

// CreateWallet generates a new wallet, adds it to ws, and returns its
// address. The caller is responsible for calling Save.
func (ws *Wallets) CreateWallet() (string, error) {
	w, err := New()
	if err != nil {
		return "", err
	}
	addr := w.Address()
	ws.byAddr[addr] = w
	return addr, nil
}

// Addresses returns every address ws holds a key for.
func (ws *Wallets) Addresses() []string {
	addrs := make([]string, 0, len(ws.byAddr))
	for addr := range ws.byAddr {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Get returns the wallet for address, or ErrWalletNotFound.
func (ws *Wallets) Get(address string) (*Wallet, error) {
	w, ok := ws.byAddr[address]
	if !ok {
		return nil, errors.WithStack(chainerrors.ErrWalletNotFound)
	}
	return w, nil
}
