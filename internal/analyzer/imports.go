package analyzer

import (
	"regexp"
	"sort"

	"ansa-fs/internal/tree"
)

type importPattern struct {
	re   *regexp.Regexp
	kind string
}

var scriptImportPatterns = []importPattern{
	{regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?[\w*${}\s,]+?\s+from\s+['"]([^'"]+)['"]`), "import"},
	{regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`), "import"},
	{regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`), "import"},
	{regexp.MustCompile(`(?m)^\s*export\s+(?:type\s+)?[\w*${}\s,]+?\s+from\s+['"]([^'"]+)['"]`), "export"},
	{regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`), "require"},
}

var rubyImportPatterns = []importPattern{
	{regexp.MustCompile(`(?m)^\s*require\s*\(?\s*['"]([^'"]+)['"]`), "require"},
	{regexp.MustCompile(`(?m)^\s*require_relative\s*\(?\s*['"]([^'"]+)['"]`), "require_relative"},
}

// ExtractImports lists the module references in content in source order.
// Languages without an extractor yield an empty, non-nil slice.
func ExtractImports(language string, content []byte) []tree.Import {
	switch language {
	case "javascript", "typescript", "vue", "svelte":
		return matchImports(scriptImportPatterns, content)
	case "ruby":
		return matchImports(rubyImportPatterns, content)
	case "go", "python":
		if imports, err := sitterImports(language, content); err == nil {
			return imports
		}
	}
	return []tree.Import{}
}

func matchImports(patterns []importPattern, content []byte) []tree.Import {
	type located struct {
		offset int
		tree.Import
	}

	var found []located
	for _, p := range patterns {
		for _, m := range p.re.FindAllSubmatchIndex(content, -1) {
			found = append(found, located{
				offset: m[2],
				Import: tree.Import{Name: string(content[m[2]:m[3]]), Type: p.kind},
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].offset < found[j].offset
	})

	imports := make([]tree.Import, 0, len(found))
	for _, f := range found {
		imports = append(imports, f.Import)
	}
	return imports
}
