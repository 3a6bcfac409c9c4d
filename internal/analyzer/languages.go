package analyzer

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
)

var extensionLanguages = map[string]string{
	"js":         "javascript",
	"mjs":        "javascript",
	"cjs":        "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"mts":        "typescript",
	"cts":        "typescript",
	"py":         "python",
	"pyw":        "python",
	"rb":         "ruby",
	"go":         "go",
	"rs":         "rust",
	"java":       "java",
	"kt":         "kotlin",
	"kts":        "kotlin",
	"scala":      "scala",
	"groovy":     "groovy",
	"c":          "c",
	"h":          "c",
	"cpp":        "cpp",
	"cc":         "cpp",
	"cxx":        "cpp",
	"hpp":        "cpp",
	"hh":         "cpp",
	"cs":         "csharp",
	"php":        "php",
	"swift":      "swift",
	"dart":       "dart",
	"sh":         "shell",
	"bash":       "shell",
	"zsh":        "shell",
	"ps1":        "powershell",
	"lua":        "lua",
	"pl":         "perl",
	"pm":         "perl",
	"r":          "r",
	"ex":         "elixir",
	"exs":        "elixir",
	"erl":        "erlang",
	"hs":         "haskell",
	"clj":        "clojure",
	"vue":        "vue",
	"svelte":     "svelte",
	"html":       "html",
	"htm":        "html",
	"xml":        "xml",
	"css":        "css",
	"scss":       "scss",
	"less":       "less",
	"json":       "json",
	"yaml":       "yaml",
	"yml":        "yaml",
	"toml":       "toml",
	"md":         "markdown",
	"markdown":   "markdown",
	"sql":        "sql",
	"graphql":    "graphql",
	"tf":         "terraform",
	"hcl":        "hcl",
	"proto":      "protobuf",
	"dockerfile": "dockerfile",
}

var filenameLanguages = map[string]string{
	"dockerfile":  "dockerfile",
	"makefile":    "makefile",
	"gnumakefile": "makefile",
	"rakefile":    "ruby",
	"gemfile":     "ruby",
}

var interpreterLanguages = []struct {
	prefix   string
	language string
}{
	{"python", "python"},
	{"node", "javascript"},
	{"deno", "typescript"},
	{"ruby", "ruby"},
	{"bash", "shell"},
	{"zsh", "shell"},
	{"dash", "shell"},
	{"ksh", "shell"},
	{"sh", "shell"},
	{"perl", "perl"},
	{"php", "php"},
	{"lua", "lua"},
}

type blockMarker struct {
	open  string
	close string
}

type commentSyntax struct {
	line  []string
	block []blockMarker
}

var (
	cStyle    = commentSyntax{line: []string{"//"}, block: []blockMarker{{"/*", "*/"}}}
	hashStyle = commentSyntax{line: []string{"#"}}
	markup    = commentSyntax{block: []blockMarker{{"<!--", "-->"}}}
)

var languageComments = map[string]commentSyntax{
	"javascript": cStyle,
	"typescript": cStyle,
	"go":         cStyle,
	"rust":       cStyle,
	"java":       cStyle,
	"kotlin":     cStyle,
	"scala":      cStyle,
	"groovy":     cStyle,
	"c":          cStyle,
	"cpp":        cStyle,
	"csharp":     cStyle,
	"swift":      cStyle,
	"dart":       cStyle,
	"scss":       cStyle,
	"less":       cStyle,
	"protobuf":   cStyle,
	"graphql":    hashStyle,
	"php":        {line: []string{"//", "#"}, block: []blockMarker{{"/*", "*/"}}},
	"css":        {block: []blockMarker{{"/*", "*/"}}},
	"python":     {line: []string{"#"}, block: []blockMarker{{`"""`, `"""`}, {"'''", "'''"}}},
	"ruby":       {line: []string{"#"}, block: []blockMarker{{"=begin", "=end"}}},
	"shell":      hashStyle,
	"perl":       hashStyle,
	"r":          hashStyle,
	"yaml":       hashStyle,
	"toml":       hashStyle,
	"elixir":     hashStyle,
	"makefile":   hashStyle,
	"dockerfile": hashStyle,
	"powershell": {line: []string{"#"}, block: []blockMarker{{"<#", "#>"}}},
	"terraform":  {line: []string{"#", "//"}, block: []blockMarker{{"/*", "*/"}}},
	"hcl":        {line: []string{"#", "//"}, block: []blockMarker{{"/*", "*/"}}},
	"lua":        {line: []string{"--"}, block: []blockMarker{{"--[[", "]]"}}},
	"sql":        {line: []string{"--"}, block: []blockMarker{{"/*", "*/"}}},
	"haskell":    {line: []string{"--"}, block: []blockMarker{{"{-", "-}"}}},
	"erlang":     {line: []string{"%"}},
	"clojure":    {line: []string{";"}},
	"html":       markup,
	"xml":        markup,
	"markdown":   markup,
	"vue":        markup,
	"svelte":     markup,
}

// DetectLanguage resolves a language from the file name, falling back to a
// shebang sniff for files without an extension. It returns "" when unknown.
func DetectLanguage(filename string, content []byte) string {
	base := filepath.Base(filename)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	if ext != "" {
		if lang, ok := extensionLanguages[ext]; ok {
			return lang
		}
	}

	if lang, ok := filenameLanguages[strings.ToLower(base)]; ok {
		return lang
	}

	if ext == "" {
		return sniffShebang(content)
	}
	return ""
}

func sniffShebang(content []byte) string {
	if !bytes.HasPrefix(content, []byte("#!")) {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	if !scanner.Scan() {
		return ""
	}
	fields := strings.Fields(strings.TrimPrefix(scanner.Text(), "#!"))
	if len(fields) == 0 {
		return ""
	}

	interpreter := filepath.Base(fields[0])
	if interpreter == "env" {
		// #!/usr/bin/env -S node --flags
		for _, f := range fields[1:] {
			if !strings.HasPrefix(f, "-") {
				interpreter = f
				break
			}
		}
	}

	for _, candidate := range interpreterLanguages {
		if strings.HasPrefix(interpreter, candidate.prefix) {
			return candidate.language
		}
	}
	return ""
}
