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
)

func TestMerkleTreeSingleLeaf(t *testing.T) {
	tree := NewMerkleTree([][]byte{[]byte("only")})
	// An odd leaf count duplicates the last leaf, so the root pairs the
	// single leaf's digest with itself.
	leaf := Sha256([]byte("only"))
	assert.Equal(t, Sha256(append(append([]byte{}, leaf...), leaf...)), tree.RootHash())
}

func TestMerkleTreeDeterministic(t *testing.T) {
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	first := NewMerkleTree(data).RootHash()
	second := NewMerkleTree(data).RootHash()
	assert.Equal(t, first, second)
}

func TestMerkleTreeOddCountDiffersFromEven(t *testing.T) {
	odd := NewMerkleTree([][]byte{[]byte("a"), []byte("b"), []byte("c")}).RootHash()
	even := NewMerkleTree([][]byte{[]byte("a"), []byte("b")}).RootHash()
	assert.NotEqual(t, odd, even)
}

func TestMerkleTreeSensitiveToOrder(t *testing.T) {
	forward := NewMerkleTree([][]byte{[]byte("a"), []byte("b")}).RootHash()
	backward := NewMerkleTree([][]byte{[]byte("b"), []byte("a")}).RootHash()
	assert.NotEqual(t, forward, backward)
}
