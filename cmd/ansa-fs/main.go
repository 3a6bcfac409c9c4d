package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zeromicro/go-zero/core/logx"
)

type cliFlags struct {
	configPath string
	logLevel   string

	depth         int
	ignore        []string
	ignoreExt     []string
	filesOnly     bool
	dirsOnly      bool
	size          bool
	modTime       bool
	hash          bool
	hashAlgorithm string
	content       bool
	detectLang    bool
	follow        bool
	progress      bool

	json     bool
	paths    bool
	stats    bool
	markdown bool
	output   string

	diff  string
	watch bool
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}

	cmd := &cobra.Command{
		Use:   "ansa-fs [directory]",
		Short: "Extract, compare and watch directory structures",
		Long: "Extract a directory structure as a tree, path list, JSON, Markdown or statistics.\n" +
			"Compare it against another directory or a saved snapshot, or watch it for changes.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			setupLogging(cfg.Log.Level)

			opts, err := walkerOptions(cmd, f, cfg)
			if err != nil {
				return err
			}

			switch {
			case f.watch:
				return runWatch(cmd, f, cfg, dir, opts)
			case f.diff != "":
				return runDiff(cmd, f, dir, opts)
			default:
				return runExtract(cmd, f, dir, opts)
			}
		},
	}

	registerExtractFlags(cmd.Flags(), f)
	registerOutputFlags(cmd.Flags(), f)

	cmd.MarkFlagsMutuallyExclusive("files-only", "dirs-only")
	cmd.MarkFlagsMutuallyExclusive("diff", "watch")

	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&f.hashAlgorithm, "hash-algorithm", "", "Hash algorithm: md5, sha1, sha256 or xxhash")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, error or severe")

	cmd.AddCommand(newSnapshotCmd(f))
	return cmd
}

func registerExtractFlags(flags *pflag.FlagSet, f *cliFlags) {
	flags.IntVarP(&f.depth, "depth", "d", -1, "Maximum depth to descend (-1 for unlimited)")
	flags.StringArrayVar(&f.ignore, "ignore", nil, "Ignore a directory or file name (repeatable)")
	flags.StringArrayVar(&f.ignoreExt, "ignore-ext", nil, "Ignore files with this extension (repeatable)")
	flags.BoolVar(&f.filesOnly, "files-only", false, "Show only files")
	flags.BoolVar(&f.dirsOnly, "dirs-only", false, "Show only directories")
	flags.BoolVar(&f.size, "size", false, "Include file and directory sizes")
	flags.BoolVar(&f.modTime, "mod-time", false, "Include modification times")
	flags.BoolVar(&f.hash, "hash", false, "Include file content hashes")
	flags.BoolVar(&f.content, "content", false, "Analyze file contents (language, lines, complexity, imports)")
	flags.BoolVar(&f.detectLang, "detect-language", false, "Detect file languages only")
	flags.BoolVar(&f.follow, "follow-symlinks", false, "Follow symbolic links")
	flags.BoolVar(&f.progress, "progress", false, "Show a progress bar on stderr")
}

func registerOutputFlags(flags *pflag.FlagSet, f *cliFlags) {
	flags.BoolVar(&f.json, "json", false, "Output JSON")
	flags.BoolVar(&f.paths, "paths", false, "Output one relative path per line")
	flags.BoolVar(&f.stats, "stats", false, "Output statistics")
	flags.BoolVar(&f.markdown, "markdown", false, "Output Markdown")
	flags.StringVarP(&f.output, "output", "o", "", "Write output to a file instead of stdout")

	flags.StringVar(&f.diff, "diff", "", "Compare against a directory or snapshot file")
	flags.BoolVarP(&f.watch, "watch", "w", false, "Watch the directory and print changes")
}

func setupLogging(level string) {
	logx.MustSetup(logx.LogConf{
		Mode:     "console",
		Encoding: "plain",
		Level:    level,
	})
	logx.DisableStat()
	logx.SetWriter(logx.NewWriter(os.Stderr))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
