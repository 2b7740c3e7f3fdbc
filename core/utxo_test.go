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
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTXOSetReindexFindsGenesisOutput(t *testing.T) {
	withTempWorkdir(t)
	nodeID := uniqueNodeID(t)

	_, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	address := AddressFromPubKeyHash(HashPubKey(pub))

	chain, err := CreateBlockChain(address, nodeID, nil)
	require.NoError(t, err)
	defer chain.Close()

	utxoSet := NewUTXOSet(chain.DB())
	require.NoError(t, utxoSet.Reindex(chain))

	outputs, err := utxoSet.FindUTXO(HashPubKey(pub))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, Subsidy, outputs[0].Value)
}

func TestUTXOSetUpdatePreservesSurvivingIndices(t *testing.T) {
	withTempWorkdir(t)
	nodeID := uniqueNodeID(t)

	minerPriv, minerPub, err := GenerateKeyPair()
	require.NoError(t, err)
	minerAddr := AddressFromPubKeyHash(HashPubKey(minerPub))

	chain, err := CreateBlockChain(minerAddr, nodeID, nil)
	require.NoError(t, err)
	defer chain.Close()

	utxoSet := NewUTXOSet(chain.DB())
	require.NoError(t, utxoSet.Reindex(chain))

	_, recipientPub, err := GenerateKeyPair()
	require.NoError(t, err)
	recipientAddr := AddressFromPubKeyHash(HashPubKey(recipientPub))

	tip, err := chain.GetTip()
	require.NoError(t, err)
	genesis, err := chain.GetBlock(tip)
	require.NoError(t, err)
	coinbaseTx := genesis.Transactions[0]

	// Spend the genesis coinbase output, leaving a change output back to the
	// miner alongside the payment to the recipient.
	payment, err := NewTXOutput(3, recipientAddr)
	require.NoError(t, err)
	change, err := NewTXOutput(Subsidy-3, minerAddr)
	require.NoError(t, err)

	spend := &Transaction{
		Vin:  []TXInput{{TxID: coinbaseTx.ID, OutIndex: 0, PubKey: minerPub}},
		Vout: []TXOutput{*payment, *change},
	}
	spend.SetID()
	require.NoError(t, spend.Sign(minerPriv, map[string]Transaction{hex.EncodeToString(coinbaseTx.ID): *coinbaseTx}))

	reward, err := NewCoinbaseTransaction(minerAddr)
	require.NoError(t, err)

	block, err := chain.MineBlock([]*Transaction{reward, spend}, utxoSet)
	require.NoError(t, err)
	require.NoError(t, utxoSet.Update(block))

	// The spent genesis output is gone, and both of spend's outputs are
	// stored under their original indices: 0 for the payment, 1 for change.
	genesisUnspent, err := utxoSet.IsUnspent(coinbaseTx.ID, 0)
	require.NoError(t, err)
	assert.False(t, genesisUnspent)
	for idx := range spend.Vout {
		unspent, err := utxoSet.IsUnspent(spend.ID, idx)
		require.NoError(t, err)
		assert.True(t, unspent)
	}

	minerOutputs, err := utxoSet.FindUTXO(HashPubKey(minerPub))
	require.NoError(t, err)
	var minerTotal int64
	for _, out := range minerOutputs {
		minerTotal += out.Value
	}
	assert.Equal(t, Subsidy+(Subsidy-3), minerTotal)

	recipientOutputs, err := utxoSet.FindUTXO(HashPubKey(recipientPub))
	require.NoError(t, err)
	require.Len(t, recipientOutputs, 1)
	assert.Equal(t, int64(3), recipientOutputs[0].Value)
}

func TestFindSpendableOutputsStopsAtAmount(t *testing.T) {
	withTempWorkdir(t)
	nodeID := uniqueNodeID(t)

	_, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	address := AddressFromPubKeyHash(HashPubKey(pub))

	chain, err := CreateBlockChain(address, nodeID, nil)
	require.NoError(t, err)
	defer chain.Close()

	utxoSet := NewUTXOSet(chain.DB())
	require.NoError(t, utxoSet.Reindex(chain))

	accumulated, unspent, err := utxoSet.FindSpendableOutputs(HashPubKey(pub), Subsidy)
	require.NoError(t, err)
	assert.Equal(t, Subsidy, accumulated)
	assert.Len(t, unspent, 1)
}
