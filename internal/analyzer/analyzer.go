// Package analyzer derives language, line statistics and imports from the
// bytes of a single file.
package analyzer

import (
	"bytes"
	"unicode/utf8"

	"ansa-fs/internal/tree"
)

// binarySniffLen is how much of a file is inspected when deciding whether it
// is text.
const binarySniffLen = 8000

// Options controls which parts of the analysis run.
type Options struct {
	MaxFileSizeKB  int
	DetectLanguage bool
	CountLines     bool
	ExtractImports bool
}

// DefaultOptions returns the analysis defaults.
func DefaultOptions() Options {
	return Options{
		MaxFileSizeKB:  1000,
		DetectLanguage: true,
		CountLines:     true,
		ExtractImports: false,
	}
}

// Accepts reports whether a file of the given size is small enough to analyze.
func (o Options) Accepts(size int64) bool {
	return o.MaxFileSizeKB <= 0 || size <= int64(o.MaxFileSizeKB)*1024
}

// IsBinary reports whether content looks like binary data: a NUL byte or
// invalid UTF-8 within the first binarySniffLen bytes.
func IsBinary(content []byte) bool {
	sample := content
	if len(sample) > binarySniffLen {
		sample = sample[:binarySniffLen]
		// drop a rune cut in half by the window
		i := len(sample) - 1
		for i > 0 && i > len(sample)-utf8.UTFMax && !utf8.RuneStart(sample[i]) {
			i--
		}
		if !utf8.FullRune(sample[i:]) {
			sample = sample[:i]
		}
	}

	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}
	return !utf8.Valid(sample)
}

// Analyze inspects a file's bytes. It returns nil when the file is too large,
// binary, or cannot be analyzed.
func Analyze(content []byte, filename string, opts Options) (analysis *tree.ContentAnalysis) {
	if !opts.Accepts(int64(len(content))) || IsBinary(content) {
		return nil
	}

	defer func() {
		if recover() != nil {
			analysis = nil
		}
	}()

	language := DetectLanguage(filename, content)

	analysis = &tree.ContentAnalysis{Imports: []tree.Import{}}
	if opts.DetectLanguage && language != "" {
		analysis.Language = &language
	}
	if opts.CountLines {
		analysis.Stats = CountLines(string(content), language)
	}
	if opts.ExtractImports {
		analysis.Imports = ExtractImports(language, content)
	}
	return analysis
}
