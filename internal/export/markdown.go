package export

import (
	"fmt"
	"strings"

	"ansa-fs/internal/compare"
	"ansa-fs/internal/tree"
)

type MarkdownOptions struct {
	Title          string
	IncludeStats   bool
	IncludeContent bool
}

type DiffMarkdownOptions struct {
	Title string
}

// ExportToMarkdown writes a title, the fenced tree and, when requested, a
// statistics section and a per-file content table.
func ExportToMarkdown(node *tree.Node, opts MarkdownOptions) string {
	title := opts.Title
	if title == "" {
		title = "Directory Structure: " + node.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString("```text\n")
	b.WriteString(FormatAsTree(node, TreeOptions{ShowSize: true}))
	b.WriteString("```\n")

	if opts.IncludeStats {
		stats := GetStats(node, 10)

		b.WriteString("\n## Statistics\n\n")
		b.WriteString("| Metric | Value |\n")
		b.WriteString("| --- | --- |\n")
		fmt.Fprintf(&b, "| Directories | %d |\n", stats.Directories)
		fmt.Fprintf(&b, "| Files | %d |\n", stats.Files)
		if stats.TotalSize > 0 {
			fmt.Fprintf(&b, "| Total size | %s |\n", tree.FormatSize(stats.TotalSize))
		}
		if stats.TotalLines > 0 {
			fmt.Fprintf(&b, "| Total lines | %d |\n", stats.TotalLines)
		}

		if len(stats.Extensions) > 0 {
			b.WriteString("\n### Extensions\n\n")
			b.WriteString("| Extension | Files |\n")
			b.WriteString("| --- | --- |\n")
			for _, kv := range sortedCounts(stats.Extensions) {
				fmt.Fprintf(&b, "| %s | %d |\n", cell(kv.key), kv.count)
			}
		}

		if len(stats.Languages) > 0 {
			b.WriteString("\n### Languages\n\n")
			b.WriteString("| Language | Files |\n")
			b.WriteString("| --- | --- |\n")
			for _, kv := range sortedCounts(stats.Languages) {
				fmt.Fprintf(&b, "| %s | %d |\n", cell(kv.key), kv.count)
			}
		}

		if len(stats.LargestFiles) > 0 {
			b.WriteString("\n### Largest Files\n\n")
			b.WriteString("| File | Size |\n")
			b.WriteString("| --- | --- |\n")
			for _, f := range stats.LargestFiles {
				fmt.Fprintf(&b, "| %s | %s |\n", cell(f.Path), tree.FormatSize(f.Size))
			}
		}
	}

	if opts.IncludeContent {
		var rows []string
		node.Walk(func(rel string, n *tree.Node) bool {
			if n.IsFile() && n.Content != nil {
				language := "-"
				if n.Content.Language != nil {
					language = *n.Content.Language
				}
				s := n.Content.Stats
				rows = append(rows, fmt.Sprintf("| %s | %s | %d | %d | %d | %d | %d |",
					cell(rel), cell(language), s.Lines, s.CodeLines, s.CommentLines, s.BlankLines, s.Complexity))
			}
			return true
		})

		if len(rows) > 0 {
			b.WriteString("\n## Content Analysis\n\n")
			b.WriteString("| File | Language | Lines | Code | Comments | Blank | Complexity |\n")
			b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
			b.WriteString(strings.Join(rows, "\n"))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// ExportDiffToMarkdown writes a summary table followed by one list per
// non-empty change set.
func ExportDiffToMarkdown(result *compare.Result, opts DiffMarkdownOptions) string {
	title := opts.Title
	if title == "" {
		title = "Structure Diff"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Summary\n\n")
	b.WriteString("| Change | Count |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| Added | %d |\n", result.Summary.AddedCount)
	fmt.Fprintf(&b, "| Removed | %d |\n", result.Summary.RemovedCount)
	fmt.Fprintf(&b, "| Modified | %d |\n", result.Summary.ModifiedCount)
	fmt.Fprintf(&b, "| Unchanged | %d |\n", result.Summary.UnchangedCount)
	fmt.Fprintf(&b, "| **Total changes** | **%d** |\n", result.Summary.TotalChanges)

	writeNodeList(&b, "Added", result.Added)
	writeNodeList(&b, "Removed", result.Removed)

	if len(result.Modified) > 0 {
		b.WriteString("\n## Modified\n\n")
		for _, m := range result.Modified {
			fmt.Fprintf(&b, "- `%s` (%s)", m.Path, m.Changes)
			if m.OldSize != nil && m.NewSize != nil && *m.OldSize != *m.NewSize {
				fmt.Fprintf(&b, ": %s → %s", tree.FormatSize(*m.OldSize), tree.FormatSize(*m.NewSize))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeNodeList(b *strings.Builder, heading string, nodes []*tree.Node) {
	if len(nodes) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	for _, n := range nodes {
		p := n.Path
		if n.IsDir() {
			p += "/"
		}
		fmt.Fprintf(b, "- `%s`\n", p)
	}
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
