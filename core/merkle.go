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

// MerkleNode is one node of a Merkle tree. Children are owned top-down;
// there are no back-pointers to a parent.
type MerkleNode struct {
	Left  *MerkleNode
	Right *MerkleNode
	Data  []byte
}

// newMerkleLeaf hashes data to produce a leaf node.
func newMerkleLeaf(data []byte) *MerkleNode {
	return &MerkleNode{Data: Sha256(data)}
}

// newMerkleInner hashes the concatenation of two children's digests.
func newMerkleInner(left, right *MerkleNode) *MerkleNode {
	combined := append(append([]byte{}, left.Data...), right.Data...)
	return &MerkleNode{Left: left, Right: right, Data: Sha256(combined)}
}

// MerkleTree is a balanced binary tree of SHA-256 digests over a list of
// byte-strings (serialized transactions, in this system's only caller).
type MerkleTree struct {
	Root *MerkleNode
}

// NewMerkleTree builds the tree described in §4.2: an odd leaf count is
// padded by duplicating the last element, then leaves are paired upward
// until a single root remains. data must be non-empty.
func NewMerkleTree(data [][]byte) *MerkleTree {
	if len(data) == 0 {
		return &MerkleTree{}
	}
	if len(data)%2 != 0 {
		data = append(data, data[len(data)-1])
	}

	level := make([]*MerkleNode, len(data))
	for i, d := range data {
		level[i] = newMerkleLeaf(d)
	}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		var next []*MerkleNode
		for i := 0; i < len(level); i += 2 {
			next = append(next, newMerkleInner(level[i], level[i+1]))
		}
		level = next
	}

	return &MerkleTree{Root: level[0]}
}

// RootHash returns the tree's root digest, or nil for an empty tree.
func (t *MerkleTree) RootHash() []byte {
	if t.Root == nil {
		return nil
	}
	return t.Root.Data
}
