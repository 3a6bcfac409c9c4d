package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"ansa-fs/internal/compare"
	"ansa-fs/internal/export"
	"ansa-fs/internal/hash"
	"ansa-fs/internal/tree"
	"ansa-fs/internal/walker"
)

// runDiff compares dir against the --diff baseline. The baseline is the old
// side and may be a directory or a saved snapshot.
func runDiff(cmd *cobra.Command, f *cliFlags, dir string, opts walker.Options) error {
	opts.IncludeSize = true

	var (
		oldTree, newTree *tree.Node
		compareContent   = opts.IncludeHash
	)

	if tree.IsSnapshotFile(f.diff) {
		snapshot, err := tree.Load(f.diff)
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		logx.Infof("ansa-fs: loaded snapshot of %s (fingerprint %s)", snapshot.Root, snapshot.Fingerprint)
		oldTree = snapshot.Tree

		if opts.IncludeHash {
			algo, ok := snapshotAlgorithm(snapshot)
			switch {
			case !ok:
				logx.Infof("ansa-fs: snapshot %s has no usable hash algorithm, content is not compared", f.diff)
				compareContent = false
			case algo != opts.HashAlgorithm:
				logx.Infof("ansa-fs: hashing with %s to match snapshot %s", algo, f.diff)
				opts.HashAlgorithm = algo
			}
		}

		newTree, err = walker.Extract(cmd.Context(), dir, opts)
		if err != nil {
			return err
		}
	} else {
		baselineOpts := opts
		baselineOpts.Progress = nil

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			n, err := walker.Extract(ctx, f.diff, baselineOpts)
			if err != nil {
				return err
			}
			oldTree = n
			return nil
		})
		g.Go(func() error {
			n, err := walker.Extract(ctx, dir, opts)
			if err != nil {
				return err
			}
			newTree = n
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}
	}

	cmpOpts := compare.DefaultOptions()
	cmpOpts.CompareContent = compareContent
	cmpOpts.CompareModifiedTime = opts.IncludeModTime
	result := compare.Diff(oldTree, newTree, cmpOpts)

	logx.Infof("ansa-fs: %s vs %s: %d changes", f.diff, dir, result.Summary.TotalChanges)

	var out string
	switch {
	case f.markdown:
		out = export.ExportDiffToMarkdown(result, export.DiffMarkdownOptions{})
	case f.json:
		data, err := export.ToJSON(result)
		if err != nil {
			return fmt.Errorf("failed to encode diff: %w", err)
		}
		out = string(data)
	default:
		out = compare.FormatReport(result)
	}
	return writeOutput(cmd, f, out)
}

// snapshotAlgorithm reports the algorithm a snapshot's hashes were made
// with. Snapshots without one cannot be compared by content.
func snapshotAlgorithm(snapshot *tree.Snapshot) (hash.Algorithm, bool) {
	if snapshot.HashAlgorithm == "" {
		return "", false
	}
	algo, err := hash.ParseAlgorithm(string(snapshot.HashAlgorithm))
	if err != nil {
		return "", false
	}
	return algo, true
}
