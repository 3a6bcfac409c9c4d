package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ansa-fs/internal/analyzer"
	"ansa-fs/internal/config"
	"ansa-fs/internal/hash"
	"ansa-fs/internal/progress"
	"ansa-fs/internal/walker"
)

// loadConfig applies defaults, the config file, the environment and then
// explicitly set flags, in increasing precedence.
func loadConfig(cmd *cobra.Command, f *cliFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("depth") {
		cfg.MaxDepth = f.depth
	}
	if flags.Changed("hash-algorithm") {
		cfg.HashAlgorithm = f.hashAlgorithm
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func walkerOptions(cmd *cobra.Command, f *cliFlags, cfg *config.Config) (walker.Options, error) {
	algo, err := hash.ParseAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return walker.Options{}, err
	}

	opts := walker.DefaultOptions()
	opts.IgnoreDirs = append(append([]string{}, cfg.IgnoreDirs...), f.ignore...)
	opts.IgnoreFiles = append(append([]string{}, cfg.IgnoreFiles...), f.ignore...)
	opts.IgnoreExtensions = append(append([]string{}, cfg.IgnoreExtensions...), f.ignoreExt...)
	opts.IgnorePatterns = append([]string{}, cfg.Exclude...)
	opts.MaxDepth = cfg.MaxDepth
	opts.ShowFiles = !f.dirsOnly
	opts.FollowSymlinks = f.follow
	opts.IncludeSize = f.size
	opts.IncludeHash = f.hash
	opts.IncludeModTime = f.modTime
	opts.HashAlgorithm = algo
	if cfg.Workers > 0 {
		opts.Workers = cfg.Workers
	}

	switch {
	case f.content:
		opts.AnalyzeContent = true
		opts.ContentOptions = analyzer.Options{
			MaxFileSizeKB:  cfg.Content.MaxFileSizeKB,
			DetectLanguage: true,
			CountLines:     true,
			ExtractImports: true,
		}
	case f.detectLang:
		opts.AnalyzeContent = true
		opts.ContentOptions = analyzer.Options{
			MaxFileSizeKB:  cfg.Content.MaxFileSizeKB,
			DetectLanguage: true,
		}
	}

	if f.progress {
		opts.Progress = progress.New(cmd.ErrOrStderr())
	}
	return opts, nil
}

// writeOutput sends rendered output to --output when set, stdout otherwise.
// Nothing is written unless rendering succeeded.
func writeOutput(cmd *cobra.Command, f *cliFlags, out string) error {
	if f.output == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(f.output, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Output written to %s\n", f.output)
	return nil
}
