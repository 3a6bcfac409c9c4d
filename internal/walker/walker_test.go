package walker

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ansa-fs/internal/hash"
	"ansa-fs/internal/tree"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		fullPath := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func relPaths(node *tree.Node) []string {
	var paths []string
	for rel, n := range node.Flatten() {
		if n.IsDir() {
			rel += "/"
		}
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

func TestExtract_BasicWithSizes(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"src/index.js": "0123456789",
		"README.md":    "hello",
	})

	opts := DefaultOptions()
	opts.IncludeSize = true

	root, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)

	assert.Equal(t, tree.TypeDirectory, root.Type)
	assert.Equal(t, filepath.Base(tmpDir), root.Name)
	assert.True(t, filepath.IsAbs(root.Path))
	require.NotNil(t, root.Size)
	assert.Equal(t, int64(15), *root.Size)

	require.Len(t, root.Children, 2)
	readme, src := root.Children[0], root.Children[1]

	assert.Equal(t, "README.md", readme.Name)
	assert.Equal(t, "md", readme.Extension)
	assert.Equal(t, int64(5), *readme.Size)

	assert.Equal(t, "src", src.Name)
	assert.Equal(t, int64(10), *src.Size)
	require.Len(t, src.Children, 1)
	assert.Equal(t, "js", src.Children[0].Extension)
	assert.Equal(t, filepath.Join(tmpDir, "src", "index.js"), src.Children[0].Path)
}

func TestExtract_DefaultIgnores(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"file1.txt":           "content",
		"src/main.go":         "content",
		"node_modules/lib.js": "content",
		"dist/output.js":      "content",
		".git/config":         "content",
		".DS_Store":           "content",
	})

	root, err := Extract(context.Background(), tmpDir, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"file1.txt", "src/", "src/main.go"}, relPaths(root))
}

func TestExtract_WithExclusions(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"file1.txt":          "content",
		"file2.tmp":          "content",
		"file3.LOG":          "content",
		"src/main.go":        "content",
		"src/main_test.go":   "content",
		"generated/out.go":   "content",
		"docs/build/x.md":    "content",
		"docs/api/schema.md": "content",
	})

	opts := DefaultOptions()
	opts.IgnoreExtensions = []string{".log"}
	opts.IgnorePatterns = []string{"*.tmp", "*_test.go", "generated/", "docs/api/*.md"}

	root, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"docs/",
		"docs/api/",
		"file1.txt",
		"src/",
		"src/main.go",
	}, relPaths(root))
}

func TestExtract_EmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := Extract(context.Background(), tmpDir, DefaultOptions())
	require.NoError(t, err)

	assert.NotNil(t, root.Children)
	assert.Empty(t, root.Children)
}

func TestExtract_NonExistentDirectory(t *testing.T) {
	root, err := Extract(context.Background(), "/nonexistent/directory", DefaultOptions())
	assert.Error(t, err)
	assert.Nil(t, root)
}

func TestExtract_RootIsFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"plain.txt": "x"})

	root, err := Extract(context.Background(), filepath.Join(tmpDir, "plain.txt"), DefaultOptions())
	assert.Error(t, err)
	assert.Nil(t, root)
}

func TestExtract_DepthLimit(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"a.txt":         "x",
		"one/b.txt":     "x",
		"one/two/c.txt": "x",
	})

	for _, depth := range []int{0, 1, 2} {
		t.Run(fmt.Sprintf("depth-%d", depth), func(t *testing.T) {
			opts := DefaultOptions()
			opts.MaxDepth = depth

			root, err := Extract(context.Background(), tmpDir, opts)
			require.NoError(t, err)

			root.Walk(func(rel string, node *tree.Node) bool {
				d := 0
				if rel != "" {
					d = countSegments(rel)
				}
				assert.LessOrEqual(t, d, depth, rel)
				if node.IsDir() && d == depth {
					assert.Nil(t, node.Children, "boundary directory %q should not be listed", rel)
				}
				return true
			})
		})
	}

	opts := DefaultOptions()
	opts.MaxDepth = 1
	root, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "one/"}, relPaths(root))
}

func countSegments(rel string) int {
	n := 1
	for _, c := range rel {
		if c == '/' {
			n++
		}
	}
	return n
}

func TestExtract_DirsOnly(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"a.txt":     "x",
		"one/b.txt": "x",
	})

	opts := DefaultOptions()
	opts.ShowFiles = false

	root, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"one/"}, relPaths(root))
}

func TestExtract_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"main.go":        "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println() }\n",
		"web/app.ts":     "import x from './x';\n// note\nexport const y = x ? 1 : 2;\n",
		"web/styles.css": "/* c */\nbody {}\n",
	})

	opts := DefaultOptions()
	opts.IncludeSize = true
	opts.IncludeHash = true
	opts.AnalyzeContent = true
	opts.ContentOptions.ExtractImports = true

	first, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)
	second, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtract_HashAndContent(t *testing.T) {
	tmpDir := t.TempDir()
	content := "const a = require('a');\n\n// done\n"
	writeFiles(t, tmpDir, map[string]string{"lib.js": content})

	opts := DefaultOptions()
	opts.IncludeHash = true
	opts.AnalyzeContent = true
	opts.ContentOptions.ExtractImports = true

	root, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)

	file := root.Children[0]
	sum := md5.Sum([]byte(content))
	assert.Equal(t, hex.EncodeToString(sum[:]), file.Hash)

	require.NotNil(t, file.Content)
	require.NotNil(t, file.Content.Language)
	assert.Equal(t, "javascript", *file.Content.Language)
	assert.Equal(t, tree.Stats{Lines: 3, CodeLines: 1, CommentLines: 1, BlankLines: 1}, file.Content.Stats)
	assert.Equal(t, []tree.Import{{Name: "a", Type: "require"}}, file.Content.Imports)

	assert.Empty(t, root.Hash, "directories carry no hash")
	assert.Nil(t, root.Content)
}

func TestExtract_LargeFileHashedNotAnalyzed(t *testing.T) {
	tmpDir := t.TempDir()
	big := make([]byte, 3*1024)
	for i := range big {
		big[i] = 'a'
	}
	writeFiles(t, tmpDir, map[string]string{"big.txt": string(big)})

	opts := DefaultOptions()
	opts.IncludeHash = true
	opts.HashAlgorithm = hash.SHA256
	opts.AnalyzeContent = true
	opts.ContentOptions.MaxFileSizeKB = 1

	root, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)

	file := root.Children[0]
	assert.Equal(t, hash.HashBytes(big, hash.SHA256), file.Hash)
	assert.Nil(t, file.Content)
}

func TestExtract_BinaryFileNoContent(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"blob.bin": "\x00\x01\x02"})

	opts := DefaultOptions()
	opts.AnalyzeContent = true

	root, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)
	assert.Nil(t, root.Children[0].Content)
}

func TestExtract_ModTime(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"a.txt": "x"})

	opts := DefaultOptions()
	opts.IncludeModTime = true

	root, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)

	require.NotNil(t, root.ModifiedTime)
	require.NotNil(t, root.Children[0].ModifiedTime)
	assert.False(t, root.Children[0].ModifiedTime.IsZero())
	assert.Nil(t, root.Children[0].Size)
}

func TestExtract_PermissionDeniedSubdirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"ok.txt":          "x",
		"locked/hide.txt": "x",
	})
	locked := filepath.Join(tmpDir, "locked")
	require.NoError(t, os.Chmod(locked, 0000))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	root, err := Extract(context.Background(), tmpDir, DefaultOptions())
	require.NoError(t, err)

	index := root.Flatten()
	require.Contains(t, index, "locked")
	assert.NotNil(t, index["locked"].Children)
	assert.Empty(t, index["locked"].Children)
	assert.Contains(t, index, "ok.txt")
}

func TestExtract_Symlinks(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"real/file.txt": "x"})
	if err := os.Symlink(filepath.Join(tmpDir, "real"), filepath.Join(tmpDir, "alias")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	// a cycle back to the root
	require.NoError(t, os.Symlink(tmpDir, filepath.Join(tmpDir, "real", "loop")))

	root, err := Extract(context.Background(), tmpDir, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"real/", "real/file.txt"}, relPaths(root))

	opts := DefaultOptions()
	opts.FollowSymlinks = true
	root, err = Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"alias/",
		"alias/file.txt",
		"real/",
		"real/file.txt",
	}, relPaths(root))
}

func TestExtract_Cancelled(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"a/b.txt": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root, err := Extract(ctx, tmpDir, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, root)
}

func TestExtract_CacheReuse(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n",
	})

	cache, err := NewCache(16)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.IncludeHash = true
	opts.AnalyzeContent = true
	opts.Cache = cache

	first, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	second, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)

	// unchanged files reuse the cached analysis
	assert.Same(t, first.Children[0].Content, second.Children[0].Content)
	assert.Equal(t, first.Children[0].Hash, second.Children[0].Hash)

	// a different algorithm is not served from the cache
	opts.HashAlgorithm = hash.SHA1
	third, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)
	assert.Equal(t, hash.HashBytes([]byte("package a\n"), hash.SHA1), third.Children[0].Hash)
}

type recorder struct {
	mu       sync.Mutex
	total    int
	steps    []string
	finished bool
}

func (r *recorder) Start(total int) { r.total = total }
func (r *recorder) Finish()         { r.finished = true }
func (r *recorder) Step(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, path)
}

func TestExtract_ReportsProgress(t *testing.T) {
	tmpDir := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("d%d/file%d.txt", i%3, i)] = fmt.Sprintf("content-%d", i)
	}
	writeFiles(t, tmpDir, files)

	rec := &recorder{}
	opts := DefaultOptions()
	opts.IncludeHash = true
	opts.Workers = 4
	opts.Progress = rec

	root, err := Extract(context.Background(), tmpDir, opts)
	require.NoError(t, err)

	assert.Equal(t, 20, rec.total)
	assert.Len(t, rec.steps, 20)
	assert.True(t, rec.finished)

	root.Walk(func(rel string, node *tree.Node) bool {
		if node.IsFile() {
			assert.NotEmpty(t, node.Hash, rel)
		}
		return true
	})
}

func TestIsIgnored(t *testing.T) {
	opts := DefaultOptions()
	opts.IgnoreExtensions = []string{"log"}
	opts.IgnorePatterns = []string{"tmp/"}

	assert.True(t, IsIgnored("node_modules/pkg/index.js", false, opts))
	assert.True(t, IsIgnored(".git", true, opts))
	assert.True(t, IsIgnored("logs/app.LOG", false, opts))
	assert.True(t, IsIgnored("a/tmp/b.txt", false, opts))
	assert.True(t, IsIgnored("sub/.DS_Store", false, opts))
	assert.False(t, IsIgnored("src/app.js", false, opts))
	assert.False(t, IsIgnored("src", true, opts))
}

func TestShouldExclude(t *testing.T) {
	cases := []struct {
		rel      string
		isDir    bool
		patterns []string
		want     bool
	}{
		{"main_test.go", false, []string{"*_test.go"}, true},
		{"pkg/main_test.go", false, []string{"*_test.go"}, true},
		{"main.go", false, []string{"*_test.go"}, false},
		{"vendor", true, []string{"vendor/"}, true},
		{"a/vendor/x.go", false, []string{"vendor/"}, true},
		{"vendor", false, []string{"vendor/"}, false},
		{"docs/api/x.md", false, []string{"docs/api/*.md"}, true},
		{"docs/x.md", false, []string{"docs/api/*.md"}, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, shouldExclude(tc.rel, tc.isDir, tc.patterns), "%s %v", tc.rel, tc.patterns)
	}
}
