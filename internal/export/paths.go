package export

import "ansa-fs/internal/tree"

type PathOptions struct {
	FilesOnly bool
	DirsOnly  bool
}

// ToPaths lists root-relative slash paths in traversal order. Directory paths
// end with "/" and the root itself is excluded.
func ToPaths(node *tree.Node, opts PathOptions) []string {
	paths := make([]string, 0)
	node.Walk(func(rel string, n *tree.Node) bool {
		if rel == "" {
			return true
		}
		if n.IsDir() {
			if !opts.FilesOnly {
				paths = append(paths, rel+"/")
			}
			return true
		}
		if !opts.DirsOnly {
			paths = append(paths, rel)
		}
		return true
	})
	return paths
}
