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
	"encoding/gob"
	"encoding/hex"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// chainstateBucket holds, per transaction ID, the set of that transaction's
// outputs not yet claimed by any known input.
const chainstateBucket = "chainstate"

// utxoOutputs is the value stored per transaction ID in chainstateBucket. It
// is keyed by output index rather than held as a re-packed slice so that a
// partial spend never shifts a surviving output's index out from under a
// TXInput.OutIndex that still names it.
type utxoOutputs struct {
	Outputs map[int]TXOutput
}

func (o utxoOutputs) serialize() []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(o); err != nil {
		panic(errors.Wrap(err, "serialize utxo outputs"))
	}
	return buf.Bytes()
}

func deserializeUTXOOutputs(data []byte) (utxoOutputs, error) {
	var o utxoOutputs
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&o); err != nil {
		return utxoOutputs{}, errors.Wrap(err, "deserialize utxo outputs")
	}
	return o, nil
}

// UTXOSet is a cache of unspent outputs, keyed by owning transaction, kept
// in its own BoltDB bucket so FindSpendableOutputs and FindUTXO don't have
// to replay the whole chain on every call. It holds only the shared db
// handle, not a BlockChain value, so the two types never need to reference
// each other as struct fields: Reindex and Update take whatever chain data
// they need as arguments instead.
type UTXOSet struct {
	db *bolt.DB
}

// NewUTXOSet wraps db, which must be the same database a BlockChain over
// the same node was opened against.
func NewUTXOSet(db *bolt.DB) *UTXOSet {
	return &UTXOSet{db: db}
}

// computeUTXO walks bc from tip to genesis and returns, for every
// transaction, the outputs no later input in the chain spends.
func computeUTXO(bc *BlockChain) (map[string]utxoOutputs, error) {
	utxo := make(map[string]utxoOutputs)
	spent := make(map[string]map[int]bool)

	iter := bc.Iterator()
	for {
		block, err := iter.Next()
		if err != nil {
			return nil, err
		}

		for _, tx := range block.Transactions {
			txID := hex.EncodeToString(tx.ID)

			outputs := utxoOutputs{Outputs: make(map[int]TXOutput)}
			for i, out := range tx.Vout {
				if spent[txID] != nil && spent[txID][i] {
					continue
				}
				outputs.Outputs[i] = out
			}
			if len(outputs.Outputs) > 0 {
				utxo[txID] = outputs
			}

			if !tx.IsCoinbase() {
				for _, in := range tx.Vin {
					inTxID := hex.EncodeToString(in.TxID)
					if spent[inTxID] == nil {
						spent[inTxID] = make(map[int]bool)
					}
					spent[inTxID][in.OutIndex] = true
				}
			}
		}

		if block.IsGenesis() {
			break
		}
	}

	return utxo, nil
}

// Reindex discards the current UTXO cache and rebuilds it from scratch by
// walking bc.
func (set *UTXOSet) Reindex(bc *BlockChain) error {
	fresh, err := computeUTXO(bc)
	if err != nil {
		return err
	}

	return set.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(chainstateBucket)); err != nil && err != bolt.ErrBucketNotFound {
			return errors.Wrap(err, "drop stale chainstate bucket")
		}
		bucket, err := tx.CreateBucket([]byte(chainstateBucket))
		if err != nil {
			return errors.Wrap(err, "create chainstate bucket")
		}

		for txID, outputs := range fresh {
			key, err := hex.DecodeString(txID)
			if err != nil {
				return errors.Wrap(err, "decode transaction id")
			}
			if err := bucket.Put(key, outputs.serialize()); err != nil {
				return errors.Wrap(err, "store utxo entry")
			}
		}
		return nil
	})
}

// Update folds a newly mined or received block into the cache
// incrementally: every input it spends is removed from its transaction's
// entry, and every output it creates becomes a fresh entry.
func (set *UTXOSet) Update(block *Block) error {
	return set.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(chainstateBucket))

		for _, txn := range block.Transactions {
			if !txn.IsCoinbase() {
				for _, in := range txn.Vin {
					data := bucket.Get(in.TxID)
					if data == nil {
						continue
					}
					outputs, err := deserializeUTXOOutputs(data)
					if err != nil {
						return err
					}
					delete(outputs.Outputs, in.OutIndex)

					if len(outputs.Outputs) == 0 {
						if err := bucket.Delete(in.TxID); err != nil {
							return errors.Wrap(err, "drop exhausted utxo entry")
						}
					} else if err := bucket.Put(in.TxID, outputs.serialize()); err != nil {
						return errors.Wrap(err, "update utxo entry")
					}
				}
			}

			fresh := utxoOutputs{Outputs: make(map[int]TXOutput, len(txn.Vout))}
			for i, out := range txn.Vout {
				fresh.Outputs[i] = out
			}
			if err := bucket.Put(txn.ID, fresh.serialize()); err != nil {
				return errors.Wrap(err, "store new utxo entry")
			}
		}
		return nil
	})
}

// IsUnspent reports whether outIndex of the transaction txID is still
// present in the cache, i.e. spendable. A caller sealing a block into the
// chain uses this to refuse an input that double-spends an output already
// claimed by an earlier transaction.
func (set *UTXOSet) IsUnspent(txID []byte, outIndex int) (bool, error) {
	var unspent bool
	err := set.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(chainstateBucket)).Get(txID)
		if data == nil {
			return nil
		}
		outputs, err := deserializeUTXOOutputs(data)
		if err != nil {
			return err
		}
		_, unspent = outputs.Outputs[outIndex]
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "check utxo entry")
	}
	return unspent, nil
}

// FindSpendableOutputs accumulates outputs locked to pubKeyHash until their
// total reaches amount (or the cache is exhausted), returning the total
// found and the output indices to spend, by transaction ID.
func (set *UTXOSet) FindSpendableOutputs(pubKeyHash []byte, amount int64) (int64, map[string][]int, error) {
	unspent := make(map[string][]int)
	var accumulated int64

	err := set.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(chainstateBucket)).Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			if accumulated >= amount {
				return nil
			}
			outputs, err := deserializeUTXOOutputs(value)
			if err != nil {
				return err
			}
			txID := hex.EncodeToString(key)
			for idx, out := range outputs.Outputs {
				if accumulated >= amount {
					break
				}
				if out.IsLockedWithKey(pubKeyHash) {
					accumulated += out.Value
					unspent[txID] = append(unspent[txID], idx)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, errors.Wrap(err, "find spendable outputs")
	}
	return accumulated, unspent, nil
}

// FindUTXO returns every output in the cache locked to pubKeyHash.
func (set *UTXOSet) FindUTXO(pubKeyHash []byte) ([]TXOutput, error) {
	var result []TXOutput
	err := set.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(chainstateBucket)).Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			outputs, err := deserializeUTXOOutputs(value)
			if err != nil {
				return err
			}
			for _, out := range outputs.Outputs {
				if out.IsLockedWithKey(pubKeyHash) {
					result = append(result, out)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "find utxo")
	}
	return result, nil
}

// CountTransactions returns the number of transactions with at least one
// unspent output in the cache.
func (set *UTXOSet) CountTransactions() (int, error) {
	count := 0
	err := set.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(chainstateBucket)).Cursor()
		for key, _ := cursor.First(); key != nil; key, _ = cursor.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "count utxo transactions")
	}
	return count, nil
}
