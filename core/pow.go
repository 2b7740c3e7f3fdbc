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
	"math"
	"math/big"

	"duskchain/core/chainerrors"
	"duskchain/utils"
)

// TargetBits is the fixed proof-of-work difficulty: a valid block hash,
// read as a big-endian 256-bit unsigned integer, must be strictly less than
// 1 << (256 - TargetBits). The reference value is small on purpose so a
// didactic node can mine blocks in well under a second; a production
// deployment would use something closer to 24.
const TargetBits = 4

// maxNonce bounds the search so it cannot wrap a signed 64-bit counter.
const maxNonce = math.MaxInt64

// ProofOfWork seals a single block: it searches for a nonce whose header
// hash satisfies the target, and it can later re-validate that search.
type ProofOfWork struct {
	block  *Block
	target *big.Int
}

// NewProofOfWork builds the PoW context for block.
func NewProofOfWork(block *Block) *ProofOfWork {
	target := big.NewInt(1)
	target.Lsh(target, uint(256-TargetBits))
	return &ProofOfWork{block: block, target: target}
}

// headerBytes is the exact byte string hashed by both mining and
// validation: prevHash || merkleRoot || be_i64(timestamp) || be_i32(bits) ||
// be_i64(nonce).
func (pow *ProofOfWork) headerBytes(nonce int64) []byte {
	return bytes.Join([][]byte{
		pow.block.PrevBlockHash,
		pow.block.HashTransactions(),
		utils.Int64ToBytes(pow.block.Timestamp),
		utils.Int32ToBytes(TargetBits),
		utils.Int64ToBytes(nonce),
	}, nil)
}

// Run searches for a nonce satisfying the target and returns (nonce, hash).
// It fails with ErrMiningExhausted if no such nonce exists below maxNonce,
// which in practice only happens if TargetBits is misconfigured.
func (pow *ProofOfWork) Run() (int64, []byte, error) {
	var hashInt big.Int

	var nonce int64
	for nonce < maxNonce {
		hash := Sha256(pow.headerBytes(nonce))
		hashInt.SetBytes(hash)

		if hashInt.Cmp(pow.target) == -1 {
			return nonce, hash, nil
		}
		nonce++
	}
	return 0, nil, chainerrors.ErrMiningExhausted
}

// RecomputedHash independently recomputes the header hash at the block's
// stored nonce, trusting neither the block's Hash field nor its own search.
func (pow *ProofOfWork) RecomputedHash() []byte {
	return Sha256(pow.headerBytes(pow.block.Nonce))
}

// Validate recomputes the header hash at the block's stored nonce and
// checks it against the target; it does not trust the block's stored Hash
// field.
func (pow *ProofOfWork) Validate() bool {
	var hashInt big.Int
	hashInt.SetBytes(pow.RecomputedHash())
	return hashInt.Cmp(pow.target) == -1
}
