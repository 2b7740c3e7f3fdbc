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

func TestCoinbaseTransactionIsCoinbase(t *testing.T) {
	tx, err := NewCoinbaseTransaction(testAddress("miner"))
	require.NoError(t, err)

	assert.True(t, tx.IsCoinbase())
	assert.Equal(t, Subsidy, tx.Vout[0].Value)
	ok, err := tx.Verify(nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransactionSignAndVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	coinbase, err := NewCoinbaseTransaction(AddressFromPubKeyHash(HashPubKey(pub)))
	require.NoError(t, err)

	spend := &Transaction{
		Vin: []TXInput{{
			TxID:     coinbase.ID,
			OutIndex: 0,
			PubKey:   pub,
		}},
		Vout: []TXOutput{{Value: Subsidy, PubKeyHash: HashPubKey(pub)}},
	}
	spend.SetID()

	prevTxs := map[string]Transaction{hex.EncodeToString(coinbase.ID): *coinbase}
	require.NoError(t, spend.Sign(priv, prevTxs))

	ok, err := spend.Verify(prevTxs)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransactionVerifyRejectsTamperedSignature(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	coinbase, err := NewCoinbaseTransaction(AddressFromPubKeyHash(HashPubKey(pub)))
	require.NoError(t, err)

	spend := &Transaction{
		Vin:  []TXInput{{TxID: coinbase.ID, OutIndex: 0, PubKey: pub}},
		Vout: []TXOutput{{Value: Subsidy, PubKeyHash: HashPubKey(pub)}},
	}
	spend.SetID()

	prevTxs := map[string]Transaction{hex.EncodeToString(coinbase.ID): *coinbase}
	require.NoError(t, spend.Sign(priv, prevTxs))

	spend.Vin[0].Signature[0] ^= 0xff
	ok, err := spend.Verify(prevTxs)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransactionSignRejectsUnknownInput(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	spend := &Transaction{
		Vin:  []TXInput{{TxID: []byte("does-not-exist"), OutIndex: 0, PubKey: pub}},
		Vout: []TXOutput{{Value: 1, PubKeyHash: HashPubKey(pub)}},
	}
	spend.SetID()

	err = spend.Sign(priv, map[string]Transaction{})
	assert.Error(t, err)
}

func TestTransactionSerializeRoundTrip(t *testing.T) {
	tx, err := NewCoinbaseTransaction(testAddress("payee"))
	require.NoError(t, err)

	decoded, err := DeserializeTransaction(tx.Serialize())
	require.NoError(t, err)
	assert.Equal(t, tx.ID, decoded.ID)
	assert.Equal(t, tx.Vout[0].Value, decoded.Vout[0].Value)
}
