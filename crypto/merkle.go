package crypto

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrLeafNotFound = errors.New("leaf not in tree")

// ParticipantLeaf is the 32-byte Merkle leaf for an address: the address
// followed by twelve zero bytes.
func ParticipantLeaf(addr common.Address) (leaf common.Hash) {
	copy(leaf[:common.AddressLength], addr[:])
	return
}

// LeafAddress inverts ParticipantLeaf. ok is false when the padding is not
// zero.
func LeafAddress(leaf common.Hash) (addr common.Address, ok bool) {
	for _, b := range leaf[common.AddressLength:] {
		if b != 0 {
			return addr, false
		}
	}
	copy(addr[:], leaf[:common.AddressLength])
	return addr, true
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// VerifyProof folds proof into leaf with sorted-pair keccak256 and compares
// the result with root. An empty proof verifies iff leaf == root.
func VerifyProof(proof []common.Hash, root, leaf common.Hash) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

// MerkleTree builds sorted-pair trees over unhashed leaves. An odd node at
// the end of a layer is promoted unchanged.
type MerkleTree struct {
	layers [][]common.Hash
}

func NewMerkleTree(leaves []common.Hash) *MerkleTree {
	t := &MerkleTree{}
	layer := append([]common.Hash(nil), leaves...)
	t.layers = append(t.layers, layer)
	for len(layer) > 1 {
		next := make([]common.Hash, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, hashPair(layer[i], layer[i+1]))
		}
		t.layers = append(t.layers, next)
		layer = next
	}
	return t
}

func NewParticipantTree(addrs []common.Address) *MerkleTree {
	leaves := make([]common.Hash, len(addrs))
	for i, addr := range addrs {
		leaves[i] = ParticipantLeaf(addr)
	}
	return NewMerkleTree(leaves)
}

func (t *MerkleTree) Root() common.Hash {
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return common.Hash{}
	}
	return top[0]
}

func (t *MerkleTree) Proof(leaf common.Hash) ([]common.Hash, error) {
	idx := -1
	for i, l := range t.layers[0] {
		if l == leaf {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrLeafNotFound
	}
	proof := make([]common.Hash, 0, len(t.layers))
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := idx ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		idx /= 2
	}
	return proof, nil
}
