package export

import (
	"fmt"
	"sort"
	"strings"

	"ansa-fs/internal/tree"
)

// NoExtension keys files without an extension in Stats.Extensions.
const NoExtension = "(none)"

type FileSize struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type Stats struct {
	Directories  int            `json:"directories"`
	Files        int            `json:"files"`
	TotalSize    int64          `json:"totalSize"`
	Extensions   map[string]int `json:"extensions"`
	Languages    map[string]int `json:"languages,omitempty"`
	TotalLines   int            `json:"totalLines,omitempty"`
	LargestFiles []FileSize     `json:"largestFiles,omitempty"`
}

// GetStats aggregates counts below node. The root directory is not counted.
// LargestFiles holds up to topN files and is only filled when sizes were
// extracted.
func GetStats(node *tree.Node, topN int) Stats {
	stats := Stats{
		Extensions: make(map[string]int),
		Languages:  make(map[string]int),
	}
	var sized []FileSize

	node.Walk(func(rel string, n *tree.Node) bool {
		if rel == "" {
			return true
		}
		if n.IsDir() {
			stats.Directories++
			return true
		}

		stats.Files++
		ext := n.Extension
		if ext == "" {
			ext = NoExtension
		}
		stats.Extensions[ext]++

		if n.Size != nil {
			stats.TotalSize += *n.Size
			sized = append(sized, FileSize{Path: rel, Size: *n.Size})
		}
		if n.Content != nil {
			if n.Content.Language != nil {
				stats.Languages[*n.Content.Language]++
			}
			stats.TotalLines += n.Content.Stats.Lines
		}
		return true
	})

	if topN > 0 && len(sized) > 0 {
		sort.SliceStable(sized, func(i, j int) bool {
			if sized[i].Size != sized[j].Size {
				return sized[i].Size > sized[j].Size
			}
			return sized[i].Path < sized[j].Path
		})
		if len(sized) > topN {
			sized = sized[:topN]
		}
		stats.LargestFiles = sized
	}

	return stats
}

// FormatStats renders stats as aligned plain text.
func FormatStats(stats Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Directories: %d\n", stats.Directories)
	fmt.Fprintf(&b, "Files:       %d\n", stats.Files)
	if stats.TotalSize > 0 {
		fmt.Fprintf(&b, "Total size:  %s\n", tree.FormatSize(stats.TotalSize))
	}
	if stats.TotalLines > 0 {
		fmt.Fprintf(&b, "Total lines: %d\n", stats.TotalLines)
	}

	if len(stats.Extensions) > 0 {
		b.WriteString("\nExtensions:\n")
		for _, kv := range sortedCounts(stats.Extensions) {
			fmt.Fprintf(&b, "  %-12s %d\n", kv.key, kv.count)
		}
	}
	if len(stats.Languages) > 0 {
		b.WriteString("\nLanguages:\n")
		for _, kv := range sortedCounts(stats.Languages) {
			fmt.Fprintf(&b, "  %-12s %d\n", kv.key, kv.count)
		}
	}
	if len(stats.LargestFiles) > 0 {
		b.WriteString("\nLargest files:\n")
		for _, f := range stats.LargestFiles {
			fmt.Fprintf(&b, "  %10s  %s\n", tree.FormatSize(f.Size), f.Path)
		}
	}
	return b.String()
}

type keyCount struct {
	key   string
	count int
}

// sortedCounts orders by descending count, then key.
func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, v := range m {
		out = append(out, keyCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}
