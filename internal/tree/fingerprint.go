package tree

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	merkletree "github.com/txaty/go-merkletree"

	"ansa-fs/internal/hash"
)

// leaf is a single file entry fed into the merkle tree.
type leaf struct {
	path   string
	digest string
}

func (l leaf) Serialize() ([]byte, error) {
	return []byte(l.path + "\x00" + l.digest), nil
}

// Fingerprint computes a merkle root over every file below root.
// Following the classic algorithm:
// 1. Sort files by relative path
// 2. Use the content hash (or size when no hash was collected) as the leaf value
// 3. Pair and hash levels up to a single root
// Two trees with the same fingerprint have identical file sets and contents.
func Fingerprint(root *Node) (string, error) {
	var leaves []leaf
	root.Walk(func(rel string, node *Node) bool {
		if !node.IsFile() {
			return true
		}
		digest := node.Hash
		if digest == "" && node.Size != nil {
			digest = "size:" + strconv.FormatInt(*node.Size, 10)
		}
		leaves = append(leaves, leaf{path: rel, digest: digest})
		return true
	})

	sort.Slice(leaves, func(i, j int) bool {
		return leaves[i].path < leaves[j].path
	})

	// go-merkletree needs at least two blocks
	switch len(leaves) {
	case 0:
		sum, err := hash.XXHashFunc([]byte("empty-tree"))
		if err != nil {
			return "", fmt.Errorf("failed to create empty tree hash: %w", err)
		}
		return hex.EncodeToString(sum), nil
	case 1:
		data, _ := leaves[0].Serialize()
		sum, err := hash.XXHashFunc(data)
		if err != nil {
			return "", fmt.Errorf("failed to hash leaf: %w", err)
		}
		return hex.EncodeToString(sum), nil
	}

	blocks := make([]merkletree.DataBlock, len(leaves))
	for i := range leaves {
		blocks[i] = leaves[i]
	}

	mt, err := merkletree.New(&merkletree.Config{
		HashFunc: hash.XXHashFunc,
		Mode:     merkletree.ModeTreeBuild,
	}, blocks)
	if err != nil {
		return "", fmt.Errorf("failed to build merkle tree: %w", err)
	}
	return hex.EncodeToString(mt.Root), nil
}
