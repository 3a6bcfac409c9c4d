package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ansa-fs/internal/tree"
	"ansa-fs/internal/walker"
)

func newSnapshotCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <directory> <file.json>",
		Short: "Save a fingerprinted snapshot of a directory for later --diff runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			setupLogging(cfg.Log.Level)

			opts, err := walkerOptions(cmd, f, cfg)
			if err != nil {
				return err
			}
			opts.IncludeSize = true
			opts.IncludeHash = true
			opts.IncludeModTime = true

			root, err := walker.Extract(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			snapshot, err := tree.NewSnapshot(root, opts.HashAlgorithm)
			if err != nil {
				return fmt.Errorf("failed to fingerprint tree: %w", err)
			}
			if err := tree.Save(snapshot, args[1]); err != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Snapshot saved\n")
			fmt.Fprintf(out, "  Root: %s\n", snapshot.Root)
			fmt.Fprintf(out, "  Fingerprint: %s\n", snapshot.Fingerprint)
			fmt.Fprintf(out, "  Hash: %s\n", snapshot.HashAlgorithm)
			fmt.Fprintf(out, "  Files: %d\n", root.FileCount())
			fmt.Fprintf(out, "  Output: %s\n", args[1])
			return nil
		},
	}
}
