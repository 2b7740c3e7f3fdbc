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
	"time"

	"github.com/pkg/errors"
)

// Block is the header-plus-body record described in §3: a timestamp, an
// ordered list of transactions, a link to its parent, its own content hash,
// the nonce that sealed it, and its height in the chain.
type Block struct {
	Timestamp     int64
	PrevBlockHash []byte
	Hash          []byte
	Nonce         int64
	Height        int
	Transactions  []*Transaction
}

// NewBlock builds and proof-of-work-seals a block at height on top of
// prevHash. txs must be non-empty (a coinbase is always present).
func NewBlock(txs []*Transaction, prevHash []byte, height int) (*Block, error) {
	block := &Block{
		Timestamp:     time.Now().UnixMilli(),
		PrevBlockHash: prevHash,
		Transactions:  txs,
		Height:        height,
	}

	pow := NewProofOfWork(block)
	nonce, hash, err := pow.Run()
	if err != nil {
		return nil, errors.Wrapf(err, "mine block at height %d", height)
	}
	block.Nonce = nonce
	block.Hash = hash
	return block, nil
}

// NewGenesisBlock builds the height-0 block whose only transaction is
// coinbaseTx.
func NewGenesisBlock(coinbaseTx *Transaction) (*Block, error) {
	return NewBlock([]*Transaction{coinbaseTx}, []byte{}, 0)
}

// IsGenesis reports whether block has no parent.
func (b *Block) IsGenesis() bool {
	return len(b.PrevBlockHash) == 0
}

// HashTransactions returns the Merkle root over the block's serialized
// transactions (§4.2).
func (b *Block) HashTransactions() []byte {
	leaves := make([][]byte, len(b.Transactions))
	for i, tx := range b.Transactions {
		leaves[i] = tx.Serialize()
	}
	return NewMerkleTree(leaves).RootHash()
}

// Validate checks invariant 1 from §8: the stored hash is exactly
// SHA-256(header bytes) and, read as a big-endian uint256, is below the PoW
// target.
func (b *Block) Validate() bool {
	pow := NewProofOfWork(b)
	return pow.Validate() && bytes.Equal(pow.RecomputedHash(), b.Hash)
}

// Serialize gob-encodes the block.
func (b *Block) Serialize() []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		panic(errors.Wrap(err, "serialize block"))
	}
	return buf.Bytes()
}

// DeserializeBlock decodes a block previously produced by Serialize.
func DeserializeBlock(data []byte) (*Block, error) {
	var block Block
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&block); err != nil {
		return nil, errors.Wrap(err, "deserialize block")
	}
	return &block, nil
}
