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
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duskchain/core/chainerrors"
)

// withTempWorkdir runs the test body inside a fresh temp directory so a
// chain's node-ID-named db file never collides with another test's.
func withTempWorkdir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(original) })
}

func uniqueNodeID(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("test-%s", t.Name())
}

// testAddress derives a well-formed base58check address from label, for
// tests that need a payee but no key pair to spend with.
func testAddress(label string) string {
	return AddressFromPubKeyHash(Sha256([]byte(label))[:20])
}

func TestCreateBlockChainSeedsGenesis(t *testing.T) {
	withTempWorkdir(t)
	nodeID := uniqueNodeID(t)

	chain, err := CreateBlockChain(testAddress("genesis"), nodeID, nil)
	require.NoError(t, err)
	defer chain.Close()

	height, err := chain.BestHeight()
	require.NoError(t, err)
	assert.Equal(t, 0, height)

	tip, err := chain.GetTip()
	require.NoError(t, err)
	block, err := chain.GetBlock(tip)
	require.NoError(t, err)
	assert.True(t, block.IsGenesis())
}

func TestCreateBlockChainTwiceFails(t *testing.T) {
	withTempWorkdir(t)
	nodeID := uniqueNodeID(t)

	chain, err := CreateBlockChain(testAddress("genesis"), nodeID, nil)
	require.NoError(t, err)
	chain.Close()

	_, err = CreateBlockChain(testAddress("genesis"), nodeID, nil)
	assert.ErrorIs(t, err, chainerrors.ErrAlreadyInitialized)
}

func TestOpenBlockChainMissingFails(t *testing.T) {
	withTempWorkdir(t)
	_, err := OpenBlockChain(uniqueNodeID(t), nil)
	assert.ErrorIs(t, err, chainerrors.ErrNotInitialized)
}

func TestMineBlockAdvancesTip(t *testing.T) {
	withTempWorkdir(t)
	nodeID := uniqueNodeID(t)

	chain, err := CreateBlockChain(testAddress("genesis"), nodeID, nil)
	require.NoError(t, err)
	defer chain.Close()

	coinbase, err := NewCoinbaseTransaction(testAddress("miner"))
	require.NoError(t, err)

	utxoSet := NewUTXOSet(chain.DB())
	block, err := chain.MineBlock([]*Transaction{coinbase}, utxoSet)
	require.NoError(t, err)
	assert.Equal(t, 1, block.Height)

	height, err := chain.BestHeight()
	require.NoError(t, err)
	assert.Equal(t, 1, height)
}

func TestAddBlockIsIdempotent(t *testing.T) {
	withTempWorkdir(t)
	nodeID := uniqueNodeID(t)

	chain, err := CreateBlockChain(testAddress("genesis"), nodeID, nil)
	require.NoError(t, err)
	defer chain.Close()

	coinbase, err := NewCoinbaseTransaction(testAddress("miner"))
	require.NoError(t, err)
	utxoSet := NewUTXOSet(chain.DB())
	block, err := chain.MineBlock([]*Transaction{coinbase}, utxoSet)
	require.NoError(t, err)

	require.NoError(t, chain.AddBlock(block))

	height, err := chain.BestHeight()
	require.NoError(t, err)
	assert.Equal(t, 1, height)
}

func TestAddBlockLongestHeightWins(t *testing.T) {
	withTempWorkdir(t)
	nodeID := uniqueNodeID(t)

	chain, err := CreateBlockChain(testAddress("genesis"), nodeID, nil)
	require.NoError(t, err)
	defer chain.Close()

	tip, err := chain.GetTip()
	require.NoError(t, err)
	genesis, err := chain.GetBlock(tip)
	require.NoError(t, err)

	coinbase, err := NewCoinbaseTransaction(testAddress("miner"))
	require.NoError(t, err)

	shortFork, err := NewBlock([]*Transaction{coinbase}, genesis.Hash, genesis.Height+1)
	require.NoError(t, err)
	require.NoError(t, chain.AddBlock(shortFork))

	tallerFork, err := NewBlock([]*Transaction{coinbase}, genesis.Hash, genesis.Height+2)
	require.NoError(t, err)
	require.NoError(t, chain.AddBlock(tallerFork))

	newTip, err := chain.GetTip()
	require.NoError(t, err)
	assert.Equal(t, tallerFork.Hash, newTip)
}

func TestFindTransactionUsesIndexAndFallback(t *testing.T) {
	withTempWorkdir(t)
	nodeID := uniqueNodeID(t)

	chain, err := CreateBlockChain(testAddress("genesis"), nodeID, nil)
	require.NoError(t, err)
	defer chain.Close()

	tip, err := chain.GetTip()
	require.NoError(t, err)
	genesis, err := chain.GetBlock(tip)
	require.NoError(t, err)

	found, err := chain.FindTransaction(genesis.Transactions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, genesis.Transactions[0].ID, found.ID)

	_, err = chain.FindTransaction([]byte("unknown-id"))
	assert.ErrorIs(t, err, chainerrors.ErrNotFound)
}
