// Package walker extracts a filtered tree.Node structure from a directory.
package walker

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/zeromicro/go-zero/core/logx"

	"ansa-fs/internal/analyzer"
	"ansa-fs/internal/hash"
	"ansa-fs/internal/tree"
)

type fileJob struct {
	node    *tree.Node
	size    int64
	modTime time.Time
}

type walkState struct {
	ctx     context.Context
	opts    Options
	filters filters
	// canonical directories on the current recursion path
	ancestors map[string]struct{}
	jobs      []fileJob
}

// Extract walks root and returns its structure. Directory listing happens
// first; hashing and content analysis then run on a worker pool. The
// returned tree is never modified afterwards.
func Extract(ctx context.Context, root string, opts Options) (*tree.Node, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, newRootStatError(root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, newRootStatError(abs, err)
	}
	if !info.IsDir() {
		return nil, newRootNotDirectoryError(abs)
	}

	if opts.HashAlgorithm == "" {
		opts.HashAlgorithm = hash.MD5
	}

	w := &walkState{
		ctx:       ctx,
		opts:      opts,
		filters:   newFilters(opts),
		ancestors: make(map[string]struct{}),
	}

	node := &tree.Node{
		Name: filepath.Base(abs),
		Path: abs,
		Type: tree.TypeDirectory,
	}
	if opts.IncludeModTime {
		node.ModifiedTime = timePtr(info.ModTime())
	}

	if opts.FollowSymlinks {
		if canon, err := filepath.EvalSymlinks(abs); err == nil {
			w.ancestors[canon] = struct{}{}
		}
	}

	if err := w.walkDir(node, "", 0); err != nil {
		return nil, err
	}
	if err := w.enrich(); err != nil {
		return nil, err
	}
	if opts.IncludeSize {
		sumSizes(node)
	}

	return node, nil
}

func (w *walkState) walkDir(dir *tree.Node, rel string, depth int) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	// directories at the depth limit are emitted but not listed
	if w.opts.MaxDepth >= 0 && depth >= w.opts.MaxDepth {
		return nil
	}

	dir.Children = []*tree.Node{}

	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		logx.Infof("ansa-fs: cannot list %s: %v", dir.Path, err)
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		childRel := path.Join(rel, name)
		childPath := filepath.Join(dir.Path, name)

		info, isDir, ok := w.resolve(entry, childPath)
		if !ok {
			continue
		}

		if isDir {
			if w.filters.skipDir(name, childRel) {
				continue
			}

			canon, enter := w.enter(childPath)
			if !enter {
				continue
			}

			child := &tree.Node{
				Name: name,
				Path: childPath,
				Type: tree.TypeDirectory,
			}
			if w.opts.IncludeModTime {
				child.ModifiedTime = timePtr(info.ModTime())
			}

			err := w.walkDir(child, childRel, depth+1)
			w.leave(canon)
			if err != nil {
				return err
			}
			dir.Children = append(dir.Children, child)
			continue
		}

		if !w.opts.ShowFiles {
			continue
		}
		ext := extensionOf(name)
		if w.filters.skipFile(name, childRel, ext) {
			continue
		}

		child := &tree.Node{
			Name:      name,
			Path:      childPath,
			Type:      tree.TypeFile,
			Extension: ext,
		}
		if w.opts.IncludeSize {
			child.Size = tree.Int64(info.Size())
		}
		if w.opts.IncludeModTime {
			child.ModifiedTime = timePtr(info.ModTime())
		}
		if w.opts.IncludeHash || w.opts.AnalyzeContent {
			w.jobs = append(w.jobs, fileJob{node: child, size: info.Size(), modTime: info.ModTime()})
		}
		dir.Children = append(dir.Children, child)
	}

	return nil
}

// resolve stats an entry, following it when it is a symlink and the options
// allow that. Entries that are neither regular files nor directories are
// skipped.
func (w *walkState) resolve(entry fs.DirEntry, fullPath string) (fs.FileInfo, bool, bool) {
	var (
		info fs.FileInfo
		err  error
	)

	if entry.Type()&fs.ModeSymlink != 0 {
		if !w.opts.FollowSymlinks {
			return nil, false, false
		}
		info, err = os.Stat(fullPath)
	} else {
		info, err = entry.Info()
	}
	if err != nil {
		logx.Debugf("ansa-fs: skipping %s: %v", fullPath, err)
		return nil, false, false
	}

	if info.IsDir() {
		return info, true, true
	}
	if !info.Mode().IsRegular() {
		return nil, false, false
	}
	return info, false, true
}

// enter records a directory on the recursion path. With symlinks followed it
// refuses a directory that is already an ancestor.
func (w *walkState) enter(dirPath string) (string, bool) {
	if !w.opts.FollowSymlinks {
		return "", true
	}
	canon, err := filepath.EvalSymlinks(dirPath)
	if err != nil {
		logx.Debugf("ansa-fs: skipping %s: %v", dirPath, err)
		return "", false
	}
	if _, seen := w.ancestors[canon]; seen {
		logx.Debugf("ansa-fs: symlink cycle at %s", dirPath)
		return "", false
	}
	w.ancestors[canon] = struct{}{}
	return canon, true
}

func (w *walkState) leave(canon string) {
	if canon != "" {
		delete(w.ancestors, canon)
	}
}

// enrich hashes and analyzes the collected files on an ants pool. Each job
// writes only to its own node.
func (w *walkState) enrich() error {
	if len(w.jobs) == 0 {
		return nil
	}

	workers := w.opts.Workers
	if workers <= 0 {
		workers = 2 * runtime.NumCPU()
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return ErrCreatePool.SetError(err)
	}
	defer pool.Release()

	reporter := w.opts.Progress
	if reporter != nil {
		reporter.Start(len(w.jobs))
		defer reporter.Finish()
	}

	var wg sync.WaitGroup
	for i := range w.jobs {
		if w.ctx.Err() != nil {
			break
		}

		job := &w.jobs[i]
		task := func() {
			w.enrichFile(job)
			if reporter != nil {
				reporter.Step(job.node.Path)
			}
		}

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			task()
		}); err != nil {
			wg.Done()
			logx.Debugf("ansa-fs: submit failed, enriching inline: %v", err)
			task()
		}
	}
	wg.Wait()

	return w.ctx.Err()
}

func (w *walkState) enrichFile(job *fileJob) {
	opts := w.opts
	filePath := job.node.Path

	facts, ok := opts.Cache.lookup(filePath, job.size, job.modTime)
	if !ok {
		facts = fileFacts{size: job.size, modTime: job.modTime}
	}

	needHash := opts.IncludeHash && (facts.hash == "" || facts.hashAlgo != opts.HashAlgorithm)
	needContent := opts.AnalyzeContent && (!facts.analyzed || facts.analyzedWith != opts.ContentOptions)

	if needContent {
		facts.analyzed = true
		facts.analyzedWith = opts.ContentOptions
		facts.content = nil

		if opts.ContentOptions.Accepts(job.size) {
			data, err := os.ReadFile(filePath)
			if err != nil {
				logx.Debugf("ansa-fs: cannot read %s: %v", filePath, err)
				facts.analyzed = false
			} else {
				facts.content = analyzer.Analyze(data, job.node.Name, opts.ContentOptions)
				if needHash {
					facts.hash = hash.HashBytes(data, opts.HashAlgorithm)
					facts.hashAlgo = opts.HashAlgorithm
					needHash = false
				}
			}
		}
	}

	if needHash {
		digest, err := hash.HashFile(filePath, opts.HashAlgorithm)
		if err != nil {
			logx.Debugf("ansa-fs: cannot hash %s: %v", filePath, err)
		} else {
			facts.hash = digest
			facts.hashAlgo = opts.HashAlgorithm
		}
	}

	if opts.IncludeHash && facts.hashAlgo == opts.HashAlgorithm {
		job.node.Hash = facts.hash
	}
	if opts.AnalyzeContent && facts.analyzed {
		job.node.Content = facts.content
	}

	opts.Cache.store(filePath, facts)
}

// sumSizes sets every directory's size to the total of its retained
// descendant files.
func sumSizes(node *tree.Node) int64 {
	if node.IsFile() {
		if node.Size == nil {
			return 0
		}
		return *node.Size
	}
	var total int64
	for _, child := range node.Children {
		total += sumSizes(child)
	}
	node.Size = tree.Int64(total)
	return total
}

func extensionOf(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		// dotfiles such as .gitignore have no extension
		return ""
	}
	return NormalizeExtension(ext)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// shouldExclude matches a slash-separated relative path against glob
// patterns.
func shouldExclude(relPath string, isDir bool, exclusions []string) bool {
	for _, pattern := range exclusions {
		// Handle directory exclusions (patterns ending with /)
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			// Check the directory itself or any parent directory
			parts := strings.Split(relPath, "/")
			if !isDir {
				parts = parts[:len(parts)-1]
			}
			for _, part := range parts {
				if matched, _ := path.Match(dirPattern, part); matched {
					return true
				}
				if strings.Contains(dirPattern, "/") && strings.HasPrefix(relPath+"/", dirPattern+"/") {
					return true
				}
			}
		} else {
			// Handle file pattern exclusions
			matched, err := path.Match(pattern, path.Base(relPath))
			if err == nil && matched {
				return true
			}
			// Also try matching against the full relative path for patterns with /
			if strings.Contains(pattern, "/") {
				matched, err := path.Match(pattern, relPath)
				if err == nil && matched {
					return true
				}
			}
		}
	}
	return false
}
