// Package export renders extracted trees and diffs for people and tools.
package export

import (
	"strings"

	"ansa-fs/internal/tree"
)

type TreeOptions struct {
	ShowSize bool
	// FilesOnly prunes directories that contain no files.
	FilesOnly bool
}

// FormatAsTree draws node and its descendants with box-drawing connectors.
func FormatAsTree(node *tree.Node, opts TreeOptions) string {
	if node == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(label(node, opts))
	b.WriteString("\n")
	writeChildren(&b, node, "", opts)
	return b.String()
}

func writeChildren(b *strings.Builder, node *tree.Node, prefix string, opts TreeOptions) {
	children := node.Children
	if opts.FilesOnly {
		children = make([]*tree.Node, 0, len(node.Children))
		for _, child := range node.Children {
			if child.IsFile() || containsFiles(child) {
				children = append(children, child)
			}
		}
	}

	for i, child := range children {
		connector, indent := "├── ", "│   "
		if i == len(children)-1 {
			connector, indent = "└── ", "    "
		}
		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(label(child, opts))
		b.WriteString("\n")
		if child.IsDir() {
			writeChildren(b, child, prefix+indent, opts)
		}
	}
}

func label(node *tree.Node, opts TreeOptions) string {
	name := node.Name
	if node.IsDir() {
		name += "/"
	}
	if opts.ShowSize && node.Size != nil {
		name += " (" + tree.FormatSize(*node.Size) + ")"
	}
	return name
}

func containsFiles(node *tree.Node) bool {
	found := false
	node.Walk(func(_ string, n *tree.Node) bool {
		if n.IsFile() {
			found = true
		}
		return !found
	})
	return found
}

// KeepFiles returns a copy of node without the directories that hold no
// files. node is not modified and the root is always kept.
func KeepFiles(node *tree.Node) *tree.Node {
	if node == nil {
		return nil
	}
	clone := *node
	if node.Children == nil {
		return &clone
	}
	clone.Children = make([]*tree.Node, 0, len(node.Children))
	for _, child := range node.Children {
		switch {
		case child.IsFile():
			clone.Children = append(clone.Children, child)
		case containsFiles(child):
			clone.Children = append(clone.Children, KeepFiles(child))
		}
	}
	return &clone
}
