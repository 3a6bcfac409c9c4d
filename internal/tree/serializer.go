package tree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ansa-fs/internal/hash"
)

const Generator = "ansa-fs"

// Snapshot is the on-disk form of an extracted tree.
type Snapshot struct {
	Generator   string    `json:"generator"`
	Created     time.Time `json:"created"`
	Root        string    `json:"root"`
	Fingerprint string    `json:"fingerprint"`

	// HashAlgorithm produced the file hashes in Tree. Empty when the tree
	// carries no hashes.
	HashAlgorithm hash.Algorithm `json:"hashAlgorithm,omitempty"`
	Tree          *Node          `json:"tree"`
}

func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// NewSnapshot fingerprints root. algo names the algorithm the tree was
// hashed with and is dropped when no file carries a hash.
func NewSnapshot(root *Node, algo hash.Algorithm) (*Snapshot, error) {
	fp, err := Fingerprint(root)
	if err != nil {
		return nil, err
	}
	if !hasHashes(root) {
		algo = ""
	}
	return &Snapshot{
		Generator:     Generator,
		Created:       time.Now(),
		Root:          root.Path,
		Fingerprint:   fp,
		HashAlgorithm: algo,
		Tree:          root,
	}, nil
}

func hasHashes(root *Node) bool {
	found := false
	root.Walk(func(_ string, n *Node) bool {
		if n.IsFile() && n.Hash != "" {
			found = true
		}
		return !found
	})
	return found
}

func Save(snapshot *Snapshot, path string) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snapshot.Tree == nil {
		return nil, fmt.Errorf("snapshot %s has no tree", path)
	}
	if snapshot.Tree.Type != TypeDirectory {
		return nil, fmt.Errorf("snapshot %s root is not a directory", path)
	}

	return &snapshot, nil
}

// IsSnapshotFile reports whether path is a regular file that looks like a
// saved snapshot rather than a directory to extract.
func IsSnapshotFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return filepath.Ext(path) == ".json"
}
