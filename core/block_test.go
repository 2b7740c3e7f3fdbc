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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenesisBlockIsValidAndRootless(t *testing.T) {
	coinbase, err := NewCoinbaseTransaction(testAddress("genesis"))
	require.NoError(t, err)

	block, err := NewGenesisBlock(coinbase)
	require.NoError(t, err)

	assert.True(t, block.IsGenesis())
	assert.Equal(t, 0, block.Height)
	assert.True(t, block.Validate())
}

func TestBlockSerializeRoundTrip(t *testing.T) {
	coinbase, err := NewCoinbaseTransaction(testAddress("payee"))
	require.NoError(t, err)
	block, err := NewGenesisBlock(coinbase)
	require.NoError(t, err)

	data := block.Serialize()
	decoded, err := DeserializeBlock(data)
	require.NoError(t, err)

	assert.Equal(t, block.Hash, decoded.Hash)
	assert.Equal(t, block.Height, decoded.Height)
	assert.Equal(t, block.Transactions[0].ID, decoded.Transactions[0].ID)
}

func TestBlockValidateDetectsTamperedHash(t *testing.T) {
	coinbase, err := NewCoinbaseTransaction(testAddress("payee"))
	require.NoError(t, err)
	block, err := NewGenesisBlock(coinbase)
	require.NoError(t, err)

	block.Hash[0] ^= 0xff
	assert.False(t, block.Validate())
}

func TestNewBlockChildHeightIncrements(t *testing.T) {
	coinbase, err := NewCoinbaseTransaction(testAddress("payee"))
	require.NoError(t, err)
	genesis, err := NewGenesisBlock(coinbase)
	require.NoError(t, err)

	child, err := NewBlock([]*Transaction{coinbase}, genesis.Hash, genesis.Height+1)
	require.NoError(t, err)

	assert.Equal(t, 1, child.Height)
	assert.Equal(t, genesis.Hash, child.PrevBlockHash)
	assert.False(t, child.IsGenesis())
}
