package accounts

import (
	"sort"

	"github.com/fortiblox/X1-Harness/internal/types"
)

// ComputeAccountHash computes the hash of a single account:
// blake3(binary form || pubkey)
//
// Zero-lamport accounts hash to the zero hash so that a closed account and
// an absent one are indistinguishable in state digests.
func ComputeAccountHash(pubkey types.Pubkey, account *Account) types.Hash {
	if account == nil || account.Lamports == 0 {
		return types.Hash{}
	}

	buf := account.AppendBinary(make([]byte, 0, account.EncodedLen()+types.PubkeySize))
	return types.ComputeHash(append(buf, pubkey[:]...))
}

// ComputeStateHash digests a set of accounts independent of input order.
func ComputeStateHash(list []KeyedAccount) types.Hash {
	sorted := make([]KeyedAccount, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Pubkey.Compare(sorted[j].Pubkey) < 0
	})

	hashes := make([]types.Hash, 0, len(sorted))
	for i, k := range sorted {
		// The last occurrence of a key wins, matching Store seeding.
		if i+1 < len(sorted) && sorted[i+1].Pubkey == k.Pubkey {
			continue
		}
		hashes = append(hashes, ComputeAccountHash(k.Pubkey, k.Account))
	}
	return ComputeMerkleRoot(hashes)
}

// ComputeMerkleRoot computes a binary Merkle root over hashes.
//
// Tree structure:
// - Leaf: blake3(0x00 || hash)
// - Node: blake3(0x01 || left || right)
// - If odd number of nodes, last node is paired with zero hash
func ComputeMerkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.Hash{}
	}

	level := make([]types.Hash, len(hashes))
	for i, h := range hashes {
		level[i] = computeLeafHash(h)
	}

	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			var right types.Hash
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, computeNodeHash(level[i], right))
		}
		level = next
	}

	return level[0]
}

func computeLeafHash(h types.Hash) types.Hash {
	buf := make([]byte, 1+types.HashSize)
	buf[0] = 0x00
	copy(buf[1:], h[:])
	return types.ComputeHash(buf)
}

func computeNodeHash(left, right types.Hash) types.Hash {
	buf := make([]byte, 1+2*types.HashSize)
	buf[0] = 0x01
	copy(buf[1:], left[:])
	copy(buf[1+types.HashSize:], right[:])
	return types.ComputeHash(buf)
}
