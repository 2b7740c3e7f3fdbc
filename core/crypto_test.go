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

func TestBase58RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{0x00, 0x01, 0x02, 0x03},
		{0xff, 0xff, 0xff},
		{0x00, 0x00, 0x01},
		Sha256([]byte("round trip me")),
	}
	for _, in := range inputs {
		encoded := Base58Encode(in)
		decoded := Base58Decode(encoded)
		assert.Equal(t, in, decoded)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	pubKeyHash := HashPubKey(pub)
	addr := AddressFromPubKeyHash(pubKeyHash)

	assert.True(t, ValidateAddress(addr))

	recovered, err := PubKeyHashFromAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, pubKeyHash, recovered)
}

func TestValidateAddressRejectsTamperedChecksum(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	addr := AddressFromPubKeyHash(HashPubKey(pub))
	tampered := []byte(addr)
	tampered[0] ^= 0x01
	assert.False(t, ValidateAddress(string(tampered)))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	digest := Sha256([]byte("a transaction digest"))
	sig, err := Sign(&priv, digest)
	require.NoError(t, err)

	assert.True(t, Verify(UnmarshalPubKey(pub), digest, sig))
	assert.False(t, Verify(UnmarshalPubKey(pub), Sha256([]byte("different digest")), sig))
}

func TestPrivateKeyPKCS8RoundTrip(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)

	der, err := MarshalPrivateKeyPKCS8(&priv)
	require.NoError(t, err)

	recovered, err := UnmarshalPrivateKeyPKCS8(der)
	require.NoError(t, err)
	assert.Equal(t, priv.D, recovered.D)
}
