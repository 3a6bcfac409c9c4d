package walker

import (
	"runtime"
	"strings"

	"ansa-fs/internal/analyzer"
	"ansa-fs/internal/hash"
	"ansa-fs/internal/progress"
)

// Options controls what Extract visits and what it records per node.
type Options struct {
	IgnoreDirs       []string
	IgnoreFiles      []string
	IgnoreExtensions []string
	// IgnorePatterns are globs: "dir/" prunes a directory name, "*.tmp"
	// matches base names, patterns containing "/" match the relative path.
	IgnorePatterns []string

	// MaxDepth is -1 for unlimited; 0 emits only the root.
	MaxDepth       int
	ShowFiles      bool
	FollowSymlinks bool

	IncludeSize    bool
	IncludeHash    bool
	IncludeModTime bool
	HashAlgorithm  hash.Algorithm

	AnalyzeContent bool
	ContentOptions analyzer.Options

	Workers  int
	Cache    *Cache
	Progress progress.Reporter
}

func DefaultOptions() Options {
	return Options{
		IgnoreDirs: []string{
			".git", ".svn", ".hg", "node_modules", "dist", "build",
			"coverage", ".next", ".cache", "__pycache__",
		},
		IgnoreFiles:      []string{".DS_Store", "Thumbs.db"},
		IgnoreExtensions: []string{},
		IgnorePatterns:   []string{},
		MaxDepth:         -1,
		ShowFiles:        true,
		HashAlgorithm:    hash.MD5,
		ContentOptions:   analyzer.DefaultOptions(),
		Workers:          2 * runtime.NumCPU(),
	}
}

// NormalizeExtension lower-cases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

type filters struct {
	dirs     map[string]struct{}
	files    map[string]struct{}
	exts     map[string]struct{}
	patterns []string
}

func newFilters(opts Options) filters {
	f := filters{
		dirs:     toSet(opts.IgnoreDirs, nil),
		files:    toSet(opts.IgnoreFiles, nil),
		exts:     toSet(opts.IgnoreExtensions, NormalizeExtension),
		patterns: opts.IgnorePatterns,
	}
	return f
}

func toSet(values []string, normalize func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if normalize != nil {
			v = normalize(v)
		}
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// skipDir reports whether a directory with the given name and slash-separated
// relative path is filtered out.
func (f filters) skipDir(name, rel string) bool {
	if _, ok := f.dirs[name]; ok {
		return true
	}
	return shouldExclude(rel, true, f.patterns)
}

func (f filters) skipFile(name, rel, ext string) bool {
	if _, ok := f.files[name]; ok {
		return true
	}
	if ext != "" {
		if _, ok := f.exts[ext]; ok {
			return true
		}
	}
	return shouldExclude(rel, false, f.patterns)
}

// IsIgnored applies the name and pattern filters of opts to a single path
// relative to the extraction root.
func IsIgnored(rel string, isDir bool, opts Options) bool {
	f := newFilters(opts)
	rel = strings.Trim(rel, "/")
	parts := strings.Split(rel, "/")
	for i, part := range parts[:len(parts)-1] {
		if f.skipDir(part, strings.Join(parts[:i+1], "/")) {
			return true
		}
	}
	name := parts[len(parts)-1]
	if isDir {
		return f.skipDir(name, rel)
	}
	return f.skipFile(name, rel, extensionOf(name))
}
