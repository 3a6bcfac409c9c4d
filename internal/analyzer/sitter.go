package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"

	"ansa-fs/internal/tree"
)

type sitterGrammar struct {
	lang  *sitter.Language
	query string
}

var sitterGrammars = map[string]sitterGrammar{
	"go": {
		lang:  golang.GetLanguage(),
		query: `(import_spec path: (_) @import)`,
	},
	"python": {
		lang: python.GetLanguage(),
		query: `
			(import_statement name: (dotted_name) @import)
			(import_statement name: (aliased_import name: (dotted_name) @import))
			(import_from_statement module_name: (_) @from)
		`,
	},
}

// sitterImports parses content with the grammar registered for language and
// returns the captured import paths ordered by position.
func sitterImports(language string, content []byte) ([]tree.Import, error) {
	grammar, ok := sitterGrammars[language]
	if !ok {
		return nil, fmt.Errorf("no grammar for %s", language)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar.lang)

	parsed, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", language, err)
	}
	defer parsed.Close()

	q, err := sitter.NewQuery([]byte(grammar.query), grammar.lang)
	if err != nil {
		return nil, fmt.Errorf("invalid import query for %s: %w", language, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, parsed.RootNode())

	type located struct {
		start uint32
		tree.Import
	}
	var found []located

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			start, end := c.Node.StartByte(), c.Node.EndByte()
			if end > uint32(len(content)) || start >= end {
				continue
			}
			name := strings.Trim(string(content[start:end]), "\"`")
			if name == "" {
				continue
			}
			found = append(found, located{
				start:  start,
				Import: tree.Import{Name: name, Type: q.CaptureNameForId(c.Index)},
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].start < found[j].start
	})

	imports := make([]tree.Import, 0, len(found))
	for _, f := range found {
		imports = append(imports, f.Import)
	}
	return imports, nil
}
