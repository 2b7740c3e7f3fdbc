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

package wallet

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duskchain/core/chainerrors"
)

func withTempWorkdir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(original) })
}

func TestNewWalletAddressIsStable(t *testing.T) {
	w, err := New()
	require.NoError(t, err)

	addr1 := w.Address()
	addr2 := w.Address()
	assert.Equal(t, addr1, addr2)
	assert.NotEmpty(t, addr1)
}

func TestLoadMissingFileReturnsEmptySet(t *testing.T) {
	withTempWorkdir(t)

	ws, err := Load("missing-node")
	require.NoError(t, err)
	assert.Empty(t, ws.Addresses())
}

func TestWalletsCreateSaveLoadRoundTrip(t *testing.T) {
	withTempWorkdir(t)
	nodeID := "round-trip"

	ws, err := Load(nodeID)
	require.NoError(t, err)

	addr, err := ws.CreateWallet()
	require.NoError(t, err)
	require.NoError(t, ws.Save())

	reloaded, err := Load(nodeID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{addr}, reloaded.Addresses())

	original, err := ws.Get(addr)
	require.NoError(t, err)
	restored, err := reloaded.Get(addr)
	require.NoError(t, err)

	assert.Equal(t, original.PubKey, restored.PubKey)
	assert.Equal(t, original.PrivateKey.D, restored.PrivateKey.D)
	assert.Equal(t, original.Address(), restored.Address())
}

func TestWalletsGetUnknownAddressFails(t *testing.T) {
	withTempWorkdir(t)

	ws, err := Load("another-node")
	require.NoError(t, err)

	_, err = ws.Get("nonexistent-address")
	assert.ErrorIs(t, err, chainerrors.ErrWalletNotFound)
}
