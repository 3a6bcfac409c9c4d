package tree

import (
	"path"
	"time"
)

type NodeType string

const (
	TypeFile      NodeType = "file"
	TypeDirectory NodeType = "directory"
)

// Node is one file or directory in an extracted structure.
// A tree of Nodes is never mutated after the walker returns it.
type Node struct {
	Name         string           `json:"name"`
	Path         string           `json:"path"`
	Type         NodeType         `json:"type"`
	Extension    string           `json:"extension,omitempty"`
	Children     []*Node          `json:"children,omitempty"`
	Size         *int64           `json:"size,omitempty"`
	ModifiedTime *time.Time       `json:"modifiedTime,omitempty"`
	Hash         string           `json:"hash,omitempty"`
	Content      *ContentAnalysis `json:"content,omitempty"`
}

type ContentAnalysis struct {
	Language *string  `json:"language"`
	Stats    Stats    `json:"stats"`
	Imports  []Import `json:"imports"`
}

type Stats struct {
	Lines        int `json:"lines"`
	CodeLines    int `json:"codeLines"`
	CommentLines int `json:"commentLines"`
	BlankLines   int `json:"blankLines"`
	Complexity   int `json:"complexity"`
}

type Import struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (n *Node) IsDir() bool  { return n != nil && n.Type == TypeDirectory }
func (n *Node) IsFile() bool { return n != nil && n.Type == TypeFile }

// Walk visits n and its descendants depth-first in child order. rel is the
// slash-separated path relative to the root of the walk ("" for the root).
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(rel string, node *Node) bool) {
	if n == nil {
		return
	}
	var visit func(rel string, node *Node)
	visit = func(rel string, node *Node) {
		if !fn(rel, node) {
			return
		}
		for _, child := range node.Children {
			visit(path.Join(rel, child.Name), child)
		}
	}
	visit("", n)
}

// Flatten indexes every descendant of n by its root-relative path.
// The root itself is not included.
func (n *Node) Flatten() map[string]*Node {
	index := make(map[string]*Node)
	n.Walk(func(rel string, node *Node) bool {
		if rel != "" {
			index[rel] = node
		}
		return true
	})
	return index
}

// FileCount returns the number of file nodes below n.
func (n *Node) FileCount() int {
	count := 0
	n.Walk(func(_ string, node *Node) bool {
		if node.IsFile() {
			count++
		}
		return true
	})
	return count
}

// SizeOf returns the node size or 0 when sizes were not collected.
func (n *Node) SizeOf() int64 {
	if n == nil || n.Size == nil {
		return 0
	}
	return *n.Size
}

// Int64 returns a pointer to v, for optional numeric fields.
func Int64(v int64) *int64 { return &v }
