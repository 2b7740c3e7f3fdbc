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
	"encoding/hex"
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"duskchain/core/chainerrors"
	"duskchain/utils"
)

const blocksBucket = "blocks"
const txIndexBucket = "txindex"
const tipKey = "l"

// dbPath returns the per-node database file name: each simulated node gets
// its own file so a single machine can run several nodes side by side.
func dbPath(nodeID string) string {
	return fmt.Sprintf("blockchain_%s.db", nodeID)
}

// BlockChain is a hash-linked, height-ordered sequence of blocks backed by
// a BoltDB file. It has no in-memory cache of the tip: every read goes
// through the db so concurrent writers (gossip-driven AddBlock calls) never
// observe a stale pointer.
type BlockChain struct {
	db     *bolt.DB
	nodeID string
	log    *zap.Logger
}

// CreateBlockChain creates a brand-new chain for nodeID, seeded with a
// genesis block whose coinbase pays address. It fails with
// ErrAlreadyInitialized if a database already exists for this node.
func CreateBlockChain(address, nodeID string, log *zap.Logger) (*BlockChain, error) {
	path := dbPath(nodeID)
	exists, err := utils.FileExists(path)
	if err != nil {
		return nil, errors.Wrap(err, "check for existing chain database")
	}
	if exists {
		return nil, errors.WithStack(chainerrors.ErrAlreadyInitialized)
	}

	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open chain database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucket([]byte(blocksBucket))
		if err != nil {
			return errors.Wrap(err, "create blocks bucket")
		}
		if _, err := tx.CreateBucket([]byte(txIndexBucket)); err != nil {
			return errors.Wrap(err, "create txindex bucket")
		}

		coinbase, err := NewCoinbaseTransaction(address)
		if err != nil {
			return errors.Wrap(err, "build genesis coinbase")
		}
		genesis, err := NewGenesisBlock(coinbase)
		if err != nil {
			return errors.Wrap(err, "mine genesis block")
		}

		if err := bucket.Put(genesis.Hash, genesis.Serialize()); err != nil {
			return errors.Wrap(err, "store genesis block")
		}
		if err := bucket.Put([]byte(tipKey), genesis.Hash); err != nil {
			return errors.Wrap(err, "store tip pointer")
		}
		return indexTransactions(tx, genesis)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if log != nil {
		log.Info("created blockchain", zap.String("node_id", nodeID), zap.String("address", address))
	}
	return &BlockChain{db: db, nodeID: nodeID, log: log}, nil
}

// OpenBlockChain opens the existing chain database for nodeID. It fails
// with ErrNotInitialized if no such database exists.
func OpenBlockChain(nodeID string, log *zap.Logger) (*BlockChain, error) {
	path := dbPath(nodeID)
	exists, err := utils.FileExists(path)
	if err != nil {
		return nil, errors.Wrap(err, "check for existing chain database")
	}
	if !exists {
		return nil, errors.WithStack(chainerrors.ErrNotInitialized)
	}

	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open chain database")
	}
	return &BlockChain{db: db, nodeID: nodeID, log: log}, nil
}

// Close releases the underlying database handle.
func (bc *BlockChain) Close() error {
	return bc.db.Close()
}

// DB exposes the underlying handle so a UTXOSet opened against the same
// file can share it without BlockChain and UTXOSet holding long-lived
// pointers to each other.
func (bc *BlockChain) DB() *bolt.DB {
	return bc.db
}

// GetTip returns the current tip block's hash.
func (bc *BlockChain) GetTip() ([]byte, error) {
	var tip []byte
	err := bc.db.View(func(tx *bolt.Tx) error {
		tip = tx.Bucket([]byte(blocksBucket)).Get([]byte(tipKey))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read tip")
	}
	return tip, nil
}

// BestHeight returns the height of the tip block.
func (bc *BlockChain) BestHeight() (int, error) {
	tip, err := bc.GetTip()
	if err != nil {
		return 0, err
	}
	block, err := bc.getBlock(tip)
	if err != nil {
		return 0, err
	}
	return block.Height, nil
}

func (bc *BlockChain) getBlock(hash []byte) (*Block, error) {
	var data []byte
	err := bc.db.View(func(tx *bolt.Tx) error {
		data = tx.Bucket([]byte(blocksBucket)).Get(hash)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read block")
	}
	if data == nil {
		return nil, errors.WithStack(chainerrors.ErrNotFound)
	}
	return DeserializeBlock(data)
}

// GetBlock returns the stored block with the given hash.
func (bc *BlockChain) GetBlock(hash []byte) (*Block, error) {
	return bc.getBlock(hash)
}

// AddBlock stores block if it is not already present and, when block's
// height exceeds the current tip's, advances the tip to it (the
// longest-height-wins reconciliation rule). Re-adding an already-stored
// block is a no-op, not an error.
func (bc *BlockChain) AddBlock(block *Block) error {
	var alreadyPresentErr error
	err := bc.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(blocksBucket))
		if bucket.Get(block.Hash) != nil {
			alreadyPresentErr = chainerrors.ErrBlockAlreadyPresent
			return nil
		}

		if err := bucket.Put(block.Hash, block.Serialize()); err != nil {
			return errors.Wrap(err, "store block")
		}
		if err := indexTransactions(tx, block); err != nil {
			return err
		}

		tipHeight := -1
		if tipHash := bucket.Get([]byte(tipKey)); tipHash != nil {
			tipData := bucket.Get(tipHash)
			if tipData == nil {
				return errors.WithStack(chainerrors.ErrNotFound)
			}
			tipBlock, err := DeserializeBlock(tipData)
			if err != nil {
				return err
			}
			tipHeight = tipBlock.Height
		}

		if block.Height > tipHeight {
			if err := bucket.Put([]byte(tipKey), block.Hash); err != nil {
				return errors.Wrap(err, "advance tip")
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "add block")
	}

	if bc.log != nil {
		if errors.Is(alreadyPresentErr, chainerrors.ErrBlockAlreadyPresent) {
			bc.log.Debug("block already present", zap.String("hash", hex.EncodeToString(block.Hash)), zap.Error(alreadyPresentErr))
		} else {
			bc.log.Info("added block", zap.String("hash", hex.EncodeToString(block.Hash)), zap.Int("height", block.Height))
		}
	}
	return nil
}

// MineBlock verifies txs, checks every non-coinbase input against utxoSet
// and against the rest of the batch for a double-spend, seals them into a
// new block on top of the current tip, and adds it to the chain.
func (bc *BlockChain) MineBlock(txs []*Transaction, utxoSet *UTXOSet) (*Block, error) {
	claimed := make(map[string]map[int]bool)
	for _, tx := range txs {
		if !tx.IsCoinbase() {
			for _, in := range tx.Vin {
				key := hex.EncodeToString(in.TxID)
				if claimed[key][in.OutIndex] {
					return nil, errors.WithStack(chainerrors.ErrDoubleSpend)
				}
				unspent, err := utxoSet.IsUnspent(in.TxID, in.OutIndex)
				if err != nil {
					return nil, errors.Wrap(err, "check input against utxo set")
				}
				if !unspent {
					return nil, errors.WithStack(chainerrors.ErrDoubleSpend)
				}
				if claimed[key] == nil {
					claimed[key] = make(map[int]bool)
				}
				claimed[key][in.OutIndex] = true
			}
		}

		ok, err := bc.VerifyTransaction(tx)
		if err != nil {
			return nil, errors.Wrap(err, "verify transaction before mining")
		}
		if !ok {
			return nil, errors.WithStack(chainerrors.ErrBadSignature)
		}
	}

	tipHash, err := bc.GetTip()
	if err != nil {
		return nil, err
	}
	tipBlock, err := bc.getBlock(tipHash)
	if err != nil {
		return nil, err
	}

	block, err := NewBlock(txs, tipHash, tipBlock.Height+1)
	if err != nil {
		return nil, err
	}
	if err := bc.AddBlock(block); err != nil {
		return nil, err
	}
	return block, nil
}

// indexTransactions records every transaction of block in the txindex
// bucket, keyed by its hex-encoded ID, so FindTransaction can look one up
// without a linear scan of the chain.
func indexTransactions(tx *bolt.Tx, block *Block) error {
	bucket := tx.Bucket([]byte(txIndexBucket))
	for _, txn := range block.Transactions {
		if err := bucket.Put([]byte(hex.EncodeToString(txn.ID)), txn.Serialize()); err != nil {
			return errors.Wrap(err, "index transaction")
		}
	}
	return nil
}

// FindTransaction returns the transaction with the given ID. It consults
// the txindex bucket first; if the index lacks the transaction (or the
// bucket does not exist, e.g. a database written before the index was
// added) it falls back to a linear scan of the chain, which is acceptable
// for a didactic node's block counts.
func (bc *BlockChain) FindTransaction(id []byte) (Transaction, error) {
	var data []byte
	err := bc.db.View(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket([]byte(txIndexBucket)); bucket != nil {
			data = bucket.Get([]byte(hex.EncodeToString(id)))
		}
		return nil
	})
	if err != nil {
		return Transaction{}, errors.Wrap(err, "read txindex")
	}
	if data != nil {
		return DeserializeTransaction(data)
	}

	iter := bc.Iterator()
	for {
		block, err := iter.Next()
		if err != nil {
			return Transaction{}, err
		}
		for _, txn := range block.Transactions {
			if bytes.Equal(txn.ID, id) {
				return *txn, nil
			}
		}
		if block.IsGenesis() {
			break
		}
	}
	return Transaction{}, errors.WithStack(chainerrors.ErrNotFound)
}

func (bc *BlockChain) prevTransactions(tx *Transaction) (map[string]Transaction, error) {
	prevTxs := make(map[string]Transaction)
	for _, in := range tx.Vin {
		prevTx, err := bc.FindTransaction(in.TxID)
		if err != nil {
			return nil, errors.Wrap(err, "find referenced transaction")
		}
		prevTxs[hex.EncodeToString(prevTx.ID)] = prevTx
	}
	return prevTxs, nil
}

// SignTransaction signs every input of tx with priv, resolving referenced
// outputs through the chain's transaction index.
func (bc *BlockChain) SignTransaction(tx *Transaction, priv ecdsa.PrivateKey) error {
	prevTxs, err := bc.prevTransactions(tx)
	if err != nil {
		return err
	}
	return tx.Sign(priv, prevTxs)
}

// VerifyTransaction checks tx's signatures against the outputs it claims to
// spend.
func (bc *BlockChain) VerifyTransaction(tx *Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}
	prevTxs, err := bc.prevTransactions(tx)
	if err != nil {
		return false, err
	}
	return tx.Verify(prevTxs)
}

// PrevTransactions exposes the set of transactions referenced by tx's
// inputs, for callers (wallet send flows) that need to sign before
// submitting.
func (bc *BlockChain) PrevTransactions(tx *Transaction) (map[string]Transaction, error) {
	return bc.prevTransactions(tx)
}

// BlockIterator walks a chain from its tip back to genesis.
type BlockIterator struct {
	currentHash []byte
	db          *bolt.DB
}

// Iterator returns an iterator starting at the current tip. Advancing it
// past genesis returns ErrNotFound.
func (bc *BlockChain) Iterator() *BlockIterator {
	tip, _ := bc.GetTip()
	return &BlockIterator{currentHash: tip, db: bc.db}
}

// Next returns the current block and advances the iterator toward genesis.
func (iter *BlockIterator) Next() (*Block, error) {
	var data []byte
	err := iter.db.View(func(tx *bolt.Tx) error {
		data = tx.Bucket([]byte(blocksBucket)).Get(iter.currentHash)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read block")
	}
	if data == nil {
		return nil, errors.WithStack(chainerrors.ErrNotFound)
	}

	block, err := DeserializeBlock(data)
	if err != nil {
		return nil, err
	}
	iter.currentHash = block.PrevBlockHash
	return block, nil
}

// BlockHashes returns every block hash from the tip down to genesis.
func (bc *BlockChain) BlockHashes() ([][]byte, error) {
	var hashes [][]byte
	iter := bc.Iterator()
	for {
		block, err := iter.Next()
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, block.Hash)
		if block.IsGenesis() {
			break
		}
	}
	return hashes, nil
}
