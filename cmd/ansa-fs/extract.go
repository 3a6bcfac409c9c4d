package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ansa-fs/internal/export"
	"ansa-fs/internal/tree"
	"ansa-fs/internal/walker"
)

const largestFilesShown = 10

func runExtract(cmd *cobra.Command, f *cliFlags, dir string, opts walker.Options) error {
	root, err := walker.Extract(cmd.Context(), dir, opts)
	if err != nil {
		return err
	}

	out, err := renderTree(f, root, opts)
	if err != nil {
		return err
	}
	return writeOutput(cmd, f, out)
}

func renderTree(f *cliFlags, root *tree.Node, opts walker.Options) (string, error) {
	if f.filesOnly {
		root = export.KeepFiles(root)
	}

	switch {
	case f.markdown:
		return export.ExportToMarkdown(root, export.MarkdownOptions{
			IncludeStats:   true,
			IncludeContent: opts.AnalyzeContent,
		}), nil

	case f.stats:
		stats := export.GetStats(root, largestFilesShown)
		if f.json {
			data, err := export.ToJSON(stats)
			return string(data), err
		}
		return export.FormatStats(stats), nil

	case f.paths:
		paths := export.ToPaths(root, export.PathOptions{FilesOnly: f.filesOnly, DirsOnly: f.dirsOnly})
		if f.json {
			data, err := export.ToJSON(paths)
			return string(data), err
		}
		if len(paths) == 0 {
			return "", nil
		}
		return strings.Join(paths, "\n") + "\n", nil

	case f.json:
		data, err := export.ToJSON(root)
		if err != nil {
			return "", fmt.Errorf("failed to encode tree: %w", err)
		}
		return string(data), nil

	default:
		return export.FormatAsTree(root, export.TreeOptions{ShowSize: opts.IncludeSize, FilesOnly: f.filesOnly}), nil
	}
}
