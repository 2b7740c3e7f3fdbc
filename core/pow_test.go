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
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlock(t *testing.T) *Block {
	t.Helper()
	coinbase, err := NewCoinbaseTransaction(testAddress("test"))
	require.NoError(t, err)
	return &Block{
		Timestamp:     1700000000000,
		PrevBlockHash: []byte{},
		Height:        0,
		Transactions:  []*Transaction{coinbase},
	}
}

func TestProofOfWorkRunProducesValidHash(t *testing.T) {
	block := testBlock(t)
	pow := NewProofOfWork(block)

	nonce, hash, err := pow.Run()
	require.NoError(t, err)
	block.Nonce = nonce
	block.Hash = hash

	assert.True(t, pow.Validate())

	var hashInt big.Int
	hashInt.SetBytes(hash)
	assert.Equal(t, -1, hashInt.Cmp(pow.target))
}

func TestProofOfWorkValidateRejectsWrongNonce(t *testing.T) {
	block := testBlock(t)
	pow := NewProofOfWork(block)
	nonce, hash, err := pow.Run()
	require.NoError(t, err)

	block.Nonce = nonce + 1
	block.Hash = hash
	assert.False(t, NewProofOfWork(block).Validate())
}

func TestProofOfWorkHeaderBytesIncludeNonce(t *testing.T) {
	block := testBlock(t)
	pow := NewProofOfWork(block)
	assert.NotEqual(t, pow.headerBytes(0), pow.headerBytes(1))
}
