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

package core

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"duskchain/core/chainerrors"
)

// Subsidy is the number of coins a coinbase transaction mints. It does not
// halve; this system has no issuance schedule.
const Subsidy = int64(10)

// Transaction is an atomic transfer: zero or more inputs spending prior
// outputs, one or more new outputs, and an ID that is the SHA-256 digest of
// its own serialization with ID cleared.
type Transaction struct {
	ID   []byte
	Vin  []TXInput
	Vout []TXOutput
}

// TXInput references one output of an earlier transaction and proves the
// right to spend it.
type TXInput struct {
	TxID      []byte
	OutIndex  int
	Signature []byte
	PubKey    []byte
}

// UsesKey reports whether in was signed by the key whose hash is pubKeyHash.
func (in *TXInput) UsesKey(pubKeyHash []byte) bool {
	return bytes.Equal(HashPubKey(in.PubKey), pubKeyHash)
}

// TXOutput is a value locked to whoever can produce a signature verifying
// against PubKeyHash.
type TXOutput struct {
	Value      int64
	PubKeyHash []byte
}

// Lock sets out's PubKeyHash from a base58check address.
func (out *TXOutput) Lock(address string) error {
	pubKeyHash, err := PubKeyHashFromAddress(address)
	if err != nil {
		return errors.Wrap(err, "lock output")
	}
	out.PubKeyHash = pubKeyHash
	return nil
}

// IsLockedWithKey reports whether out can be spent by pubKeyHash.
func (out *TXOutput) IsLockedWithKey(pubKeyHash []byte) bool {
	return bytes.Equal(out.PubKeyHash, pubKeyHash)
}

// NewTXOutput builds an output of value locked to address.
func NewTXOutput(value int64, address string) (*TXOutput, error) {
	out := &TXOutput{Value: value}
	if err := out.Lock(address); err != nil {
		return nil, err
	}
	return out, nil
}

// IsCoinbase reports whether tx is a block-reward transaction: exactly one
// input with an empty TxID and OutIndex -1.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Vin) == 1 && len(tx.Vin[0].TxID) == 0 && tx.Vin[0].OutIndex == -1
}

// Serialize gob-encodes tx, ID field included.
func (tx Transaction) Serialize() []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tx); err != nil {
		panic(errors.Wrap(err, "serialize transaction"))
	}
	return buf.Bytes()
}

// DeserializeTransaction decodes a transaction previously produced by
// Serialize.
func DeserializeTransaction(data []byte) (Transaction, error) {
	var tx Transaction
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&tx); err != nil {
		return Transaction{}, errors.Wrap(err, "deserialize transaction")
	}
	return tx, nil
}

// hash returns SHA-256 of tx's serialization with ID cleared: the value
// that becomes tx.ID once a transaction is finished being built.
func (tx *Transaction) hash() []byte {
	txCopy := *tx
	txCopy.ID = []byte{}
	return Sha256(txCopy.Serialize())
}

// SetID assigns tx.ID from its own content.
func (tx *Transaction) SetID() {
	tx.ID = tx.hash()
}

// trimmedCopy returns a copy of tx with every input's Signature and PubKey
// cleared, used as the basis for the per-input signing hash (§4.3).
func (tx *Transaction) trimmedCopy() Transaction {
	vin := make([]TXInput, len(tx.Vin))
	for i, in := range tx.Vin {
		vin[i] = TXInput{TxID: in.TxID, OutIndex: in.OutIndex}
	}
	vout := make([]TXOutput, len(tx.Vout))
	for i, out := range tx.Vout {
		vout[i] = TXOutput{Value: out.Value, PubKeyHash: out.PubKeyHash}
	}
	return Transaction{ID: tx.ID, Vin: vin, Vout: vout}
}

// Sign fills in tx.Vin[*].Signature following §4.3: for each input, the
// trimmed copy is stamped with the referenced output's locking hash, its ID
// is recomputed from that state, the stamp is cleared again, and the
// recomputed ID is what gets signed. prevTxs must carry every transaction
// referenced by tx.Vin, keyed by hex-encoded TxID.
func (tx *Transaction) Sign(priv ecdsa.PrivateKey, prevTxs map[string]Transaction) error {
	if tx.IsCoinbase() {
		return nil
	}

	for _, in := range tx.Vin {
		if _, ok := prevTxs[hex.EncodeToString(in.TxID)]; !ok {
			return errors.WithStack(chainerrors.ErrInputUnknown)
		}
	}

	trimmed := tx.trimmedCopy()
	for i, in := range tx.Vin {
		prevTx := prevTxs[hex.EncodeToString(in.TxID)]
		if in.OutIndex < 0 || in.OutIndex >= len(prevTx.Vout) {
			return errors.WithStack(chainerrors.ErrInputUnknown)
		}

		trimmed.Vin[i].PubKey = prevTx.Vout[in.OutIndex].PubKeyHash
		trimmed.ID = trimmed.hash()
		trimmed.Vin[i].PubKey = nil

		sig, err := Sign(&priv, trimmed.ID)
		if err != nil {
			return errors.Wrapf(err, "sign input %d", i)
		}
		tx.Vin[i].Signature = sig
	}
	return nil
}

// Verify checks every input's signature against the locking hash of the
// output it claims to spend, mirroring the exact steps Sign used to produce
// the digest it signed.
func (tx *Transaction) Verify(prevTxs map[string]Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}

	for _, in := range tx.Vin {
		if _, ok := prevTxs[hex.EncodeToString(in.TxID)]; !ok {
			return false, errors.WithStack(chainerrors.ErrInputUnknown)
		}
	}

	trimmed := tx.trimmedCopy()
	for i, in := range tx.Vin {
		prevTx := prevTxs[hex.EncodeToString(in.TxID)]
		if in.OutIndex < 0 || in.OutIndex >= len(prevTx.Vout) {
			return false, errors.WithStack(chainerrors.ErrInputUnknown)
		}

		trimmed.Vin[i].PubKey = prevTx.Vout[in.OutIndex].PubKeyHash
		trimmed.ID = trimmed.hash()
		trimmed.Vin[i].PubKey = nil

		pub := UnmarshalPubKey(in.PubKey)
		if !Verify(pub, trimmed.ID, in.Signature) {
			return false, nil
		}
	}
	return true, nil
}

// String renders tx for printchain-style human inspection, resolving every
// input's and output's locking hash to its base58check address.
func (tx Transaction) String() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("  transaction %x:", tx.ID))
	for i, in := range tx.Vin {
		lines = append(lines, fmt.Sprintf("    input %d:", i))
		lines = append(lines, fmt.Sprintf("      from tx:   %x", in.TxID))
		lines = append(lines, fmt.Sprintf("      out index: %d", in.OutIndex))
		lines = append(lines, fmt.Sprintf("      signature: %x", in.Signature))
		if in.IsCoinbaseInput() {
			lines = append(lines, fmt.Sprintf("      data:      %s", in.PubKey))
		} else {
			lines = append(lines, fmt.Sprintf("      address:   %s", AddressFromPubKeyHash(HashPubKey(in.PubKey))))
		}
	}
	for i, out := range tx.Vout {
		lines = append(lines, fmt.Sprintf("    output %d:", i))
		lines = append(lines, fmt.Sprintf("      value:   %d", out.Value))
		lines = append(lines, fmt.Sprintf("      address: %s", AddressFromPubKeyHash(out.PubKeyHash)))
	}
	return strings.Join(lines, "\n")
}

// IsCoinbaseInput reports whether in is the synthetic input of a coinbase
// transaction, the one case where PubKey carries arbitrary data rather than
// a real public key.
func (in *TXInput) IsCoinbaseInput() bool {
	return len(in.TxID) == 0 && in.OutIndex == -1
}

// NewCoinbaseTransaction builds the reward transaction for the miner of a
// new block: one input carrying no reference (just an arbitrary data field),
// one output of Subsidy coins locked to to.
func NewCoinbaseTransaction(to string) (*Transaction, error) {
	data := fmt.Sprintf("reward to %s", to)
	in := TXInput{TxID: []byte{}, OutIndex: -1, Signature: nil, PubKey: []byte(data)}
	out, err := NewTXOutput(Subsidy, to)
	if err != nil {
		return nil, errors.Wrap(err, "build coinbase output")
	}

	tx := &Transaction{Vin: []TXInput{in}, Vout: []TXOutput{*out}}
	tx.SetID()
	return tx, nil
}

// spendableLookup is the minimal view NewUTXOTransaction needs of the UTXO
// index, satisfied by *UTXOSet.
type spendableLookup interface {
	FindSpendableOutputs(pubKeyHash []byte, amount int64) (int64, map[string][]int, error)
}

// NewUTXOTransaction builds a transaction paying amount to to from the holder
// of pubKey, drawing on utxos for spendable inputs. It fails with
// ErrInsufficientFunds if the sender's known UTXOs don't cover amount. The
// inputs are left unsigned and priv is not used; the caller signs the
// result, e.g. with BlockChain.SignTransaction.
func NewUTXOTransaction(priv ecdsa.PrivateKey, pubKey []byte, to string, amount int64, utxos spendableLookup) (*Transaction, error) {
	pubKeyHash := HashPubKey(pubKey)
	accumulated, unspent, err := utxos.FindSpendableOutputs(pubKeyHash, amount)
	if err != nil {
		return nil, errors.Wrap(err, "find spendable outputs")
	}
	if accumulated < amount {
		return nil, errors.WithStack(chainerrors.ErrInsufficientFunds)
	}

	var vin []TXInput
	for txID, outIndices := range unspent {
		decodedTxID, err := hex.DecodeString(txID)
		if err != nil {
			return nil, errors.Wrap(err, "decode utxo transaction id")
		}
		for _, outIdx := range outIndices {
			vin = append(vin, TXInput{TxID: decodedTxID, OutIndex: outIdx, PubKey: pubKey})
		}
	}

	var vout []TXOutput
	toOut, err := NewTXOutput(amount, to)
	if err != nil {
		return nil, errors.Wrap(err, "build destination output")
	}
	vout = append(vout, *toOut)

	if accumulated > amount {
		changeOut, err := NewTXOutput(accumulated-amount, AddressFromPubKeyHash(pubKeyHash))
		if err != nil {
			return nil, errors.Wrap(err, "build change output")
		}
		vout = append(vout, *changeOut)
	}

	tx := &Transaction{Vin: vin, Vout: vout}
	tx.SetID()
	return tx, nil
}
