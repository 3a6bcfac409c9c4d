package compare

import (
	"fmt"
	"sort"
	"strings"

	"ansa-fs/internal/tree"
)

// Options selects the predicates used for files present in both trees.
type Options struct {
	CompareContent         bool
	CompareSize            bool
	CompareModifiedTime    bool
	IgnoreEmptyDirectories bool
}

func DefaultOptions() Options {
	return Options{
		CompareSize:            true,
		IgnoreEmptyDirectories: true,
	}
}

// Changes flags each predicate that disagreed.
type Changes struct {
	Type         bool `json:"type,omitempty"`
	Content      bool `json:"content,omitempty"`
	Size         bool `json:"size,omitempty"`
	ModifiedTime bool `json:"modifiedTime,omitempty"`
}

func (c Changes) Any() bool {
	return c.Type || c.Content || c.Size || c.ModifiedTime
}

func (c Changes) String() string {
	var kinds []string
	if c.Type {
		kinds = append(kinds, "type")
	}
	if c.Content {
		kinds = append(kinds, "content")
	}
	if c.Size {
		kinds = append(kinds, "size")
	}
	if c.ModifiedTime {
		kinds = append(kinds, "modifiedTime")
	}
	return strings.Join(kinds, ", ")
}

type ModifiedNode struct {
	Name    string        `json:"name"`
	Path    string        `json:"path"`
	Type    tree.NodeType `json:"type"`
	OldSize *int64        `json:"oldSize,omitempty"`
	NewSize *int64        `json:"newSize,omitempty"`
	OldHash string        `json:"oldHash,omitempty"`
	NewHash string        `json:"newHash,omitempty"`
	Changes Changes       `json:"changes"`
}

type Summary struct {
	AddedCount     int `json:"addedCount"`
	RemovedCount   int `json:"removedCount"`
	ModifiedCount  int `json:"modifiedCount"`
	UnchangedCount int `json:"unchangedCount"`
	TotalChanges   int `json:"totalChanges"`
}

// Result partitions the union of both trees' paths. Nodes in Added, Removed
// and Unchanged are childless copies whose Path is relative to the compared
// root.
type Result struct {
	Added     []*tree.Node   `json:"added"`
	Removed   []*tree.Node   `json:"removed"`
	Modified  []ModifiedNode `json:"modified"`
	Unchanged []*tree.Node   `json:"unchanged"`
	Summary   Summary        `json:"summary"`
}

func (r *Result) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Modified) > 0 || len(r.Removed) > 0
}

// Diff compares two extracted trees by root-relative path. A renamed file is
// reported as one removal plus one addition.
func Diff(oldTree, newTree *tree.Node, opts Options) *Result {
	result := &Result{
		Added:     make([]*tree.Node, 0),
		Removed:   make([]*tree.Node, 0),
		Modified:  make([]ModifiedNode, 0),
		Unchanged: make([]*tree.Node, 0),
	}

	oldIndex := oldTree.Flatten()
	newIndex := newTree.Flatten()

	var oldEmpty, newEmpty map[string]bool
	if opts.IgnoreEmptyDirectories {
		oldEmpty = emptyDirectories(oldTree)
		newEmpty = emptyDirectories(newTree)
	}

	// Check for added, modified and unchanged entries
	for path, newNode := range newIndex {
		oldNode, exists := oldIndex[path]
		if !exists {
			if !newEmpty[path] {
				result.Added = append(result.Added, entry(path, newNode))
			}
			continue
		}

		if oldNode.Type != newNode.Type {
			// a file replaced by a directory, or the reverse
			result.Modified = append(result.Modified, modified(path, oldNode, newNode, Changes{Type: true}))
			continue
		}

		if newNode.IsDir() {
			if !(oldEmpty[path] && newEmpty[path]) {
				result.Unchanged = append(result.Unchanged, entry(path, newNode))
			}
			continue
		}

		changes := compareFiles(oldNode, newNode, opts)
		if changes.Any() {
			result.Modified = append(result.Modified, modified(path, oldNode, newNode, changes))
		} else {
			result.Unchanged = append(result.Unchanged, entry(path, newNode))
		}
	}

	// Check for removed entries
	for path, oldNode := range oldIndex {
		if _, exists := newIndex[path]; !exists && !oldEmpty[path] {
			result.Removed = append(result.Removed, entry(path, oldNode))
		}
	}

	// Sort for deterministic output
	sortNodes(result.Added)
	sortNodes(result.Removed)
	sortNodes(result.Unchanged)
	sort.Slice(result.Modified, func(i, j int) bool {
		return result.Modified[i].Path < result.Modified[j].Path
	})

	result.Summary = Summary{
		AddedCount:     len(result.Added),
		RemovedCount:   len(result.Removed),
		ModifiedCount:  len(result.Modified),
		UnchangedCount: len(result.Unchanged),
	}
	result.Summary.TotalChanges = result.Summary.AddedCount + result.Summary.RemovedCount + result.Summary.ModifiedCount

	return result
}

func compareFiles(oldNode, newNode *tree.Node, opts Options) Changes {
	var changes Changes
	if opts.CompareContent && oldNode.Hash != "" && newNode.Hash != "" {
		changes.Content = oldNode.Hash != newNode.Hash
	}
	if opts.CompareSize && oldNode.Size != nil && newNode.Size != nil {
		changes.Size = *oldNode.Size != *newNode.Size
	}
	if opts.CompareModifiedTime && oldNode.ModifiedTime != nil && newNode.ModifiedTime != nil {
		changes.ModifiedTime = !oldNode.ModifiedTime.Equal(*newNode.ModifiedTime)
	}
	return changes
}

// emptyDirectories returns the relative paths of listed directories without
// any descendant file. Depth-limited directories were never listed and are
// not considered empty.
func emptyDirectories(root *tree.Node) map[string]bool {
	empty := make(map[string]bool)
	var visit func(rel string, node *tree.Node) (hasFiles bool)
	visit = func(rel string, node *tree.Node) bool {
		if node.IsFile() {
			return true
		}
		if node.Children == nil {
			return true
		}
		hasFiles := false
		for _, child := range node.Children {
			childRel := child.Name
			if rel != "" {
				childRel = rel + "/" + child.Name
			}
			if visit(childRel, child) {
				hasFiles = true
			}
		}
		if !hasFiles && rel != "" {
			empty[rel] = true
		}
		return hasFiles
	}
	if root != nil {
		visit("", root)
	}
	return empty
}

func modified(rel string, oldNode, newNode *tree.Node, changes Changes) ModifiedNode {
	return ModifiedNode{
		Name:    newNode.Name,
		Path:    rel,
		Type:    newNode.Type,
		OldSize: oldNode.Size,
		NewSize: newNode.Size,
		OldHash: oldNode.Hash,
		NewHash: newNode.Hash,
		Changes: changes,
	}
}

func entry(rel string, node *tree.Node) *tree.Node {
	clone := *node
	clone.Path = rel
	clone.Children = nil
	return &clone
}

func sortNodes(nodes []*tree.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Path < nodes[j].Path
	})
}

func FormatReport(result *Result) string {
	if !result.HasChanges() {
		return fmt.Sprintf("No changes detected (%d unchanged).\n", result.Summary.UnchangedCount)
	}

	report := "Changes detected:\n\n"

	if len(result.Added) > 0 {
		report += fmt.Sprintf("ADDED (%d):\n", len(result.Added))
		for _, node := range result.Added {
			report += fmt.Sprintf("  + %s%s\n", displayPath(node), describe(node.Hash, node.Size))
		}
		report += "\n"
	}

	if len(result.Modified) > 0 {
		report += fmt.Sprintf("MODIFIED (%d):\n", len(result.Modified))
		for _, change := range result.Modified {
			report += fmt.Sprintf("  ~ %s [%s]\n", change.Path, change.Changes)
			report += fmt.Sprintf("    Old:%s\n", describe(change.OldHash, change.OldSize))
			report += fmt.Sprintf("    New:%s\n", describe(change.NewHash, change.NewSize))
		}
		report += "\n"
	}

	if len(result.Removed) > 0 {
		report += fmt.Sprintf("REMOVED (%d):\n", len(result.Removed))
		for _, node := range result.Removed {
			report += fmt.Sprintf("  - %s%s\n", displayPath(node), describe(node.Hash, node.Size))
		}
		report += "\n"
	}

	report += fmt.Sprintf("Summary: %d added, %d modified, %d removed, %d unchanged (%d total changes)\n",
		result.Summary.AddedCount, result.Summary.ModifiedCount, result.Summary.RemovedCount,
		result.Summary.UnchangedCount, result.Summary.TotalChanges)

	return report
}

func displayPath(node *tree.Node) string {
	if node.IsDir() {
		return node.Path + "/"
	}
	return node.Path
}

func describe(hash string, size *int64) string {
	var parts []string
	if hash != "" {
		parts = append(parts, "hash: "+hash)
	}
	if size != nil {
		parts = append(parts, fmt.Sprintf("size: %d bytes", *size))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
