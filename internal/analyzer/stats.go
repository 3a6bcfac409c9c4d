package analyzer

import (
	"regexp"
	"strings"

	"ansa-fs/internal/tree"
)

var reBranchKeyword = regexp.MustCompile(`\b(if|for|while|case)\b`)

// CountLines classifies every line of content as code, comment or blank using
// the comment syntax of language. A line holding code and a trailing comment
// is a code line.
func CountLines(content string, language string) tree.Stats {
	var stats tree.Stats
	if content == "" {
		return stats
	}

	syntax := languageComments[language]
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	inBlock := false
	closing := ""

	for _, raw := range lines {
		stats.Lines++
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))

		if inBlock {
			idx := strings.Index(line, closing)
			if idx < 0 {
				stats.CommentLines++
				continue
			}
			inBlock = false
			rest := strings.TrimSpace(line[idx+len(closing):])
			if rest == "" || syntax.startsLineComment(rest) {
				stats.CommentLines++
				continue
			}
			stats.CodeLines++
			stats.Complexity += complexityOf(rest)
			closing, inBlock = syntax.unterminatedBlock(rest)
			continue
		}

		if line == "" {
			stats.BlankLines++
			continue
		}

		if marker, ok := syntax.startsBlock(line); ok {
			after := line[len(marker.open):]
			idx := strings.Index(after, marker.close)
			if idx < 0 {
				inBlock = true
				closing = marker.close
				stats.CommentLines++
				continue
			}
			rest := strings.TrimSpace(after[idx+len(marker.close):])
			if rest == "" || syntax.startsLineComment(rest) {
				stats.CommentLines++
				continue
			}
			stats.CodeLines++
			stats.Complexity += complexityOf(rest)
			closing, inBlock = syntax.unterminatedBlock(rest)
			continue
		}

		if syntax.startsLineComment(line) {
			stats.CommentLines++
			continue
		}

		stats.CodeLines++
		stats.Complexity += complexityOf(line)
		closing, inBlock = syntax.unterminatedBlock(line)
	}

	return stats
}

func (s commentSyntax) startsLineComment(line string) bool {
	for _, marker := range s.line {
		if strings.HasPrefix(line, marker) {
			return true
		}
	}
	return false
}

// startsBlock checks block markers before line markers so that "--[[" wins
// over "--" in Lua.
func (s commentSyntax) startsBlock(line string) (blockMarker, bool) {
	for _, marker := range s.block {
		if strings.HasPrefix(line, marker.open) {
			return marker, true
		}
	}
	return blockMarker{}, false
}

// unterminatedBlock reports whether a code line leaves a block comment open.
func (s commentSyntax) unterminatedBlock(line string) (string, bool) {
	for _, marker := range s.block {
		rest := line
		for {
			open := strings.Index(rest, marker.open)
			if open < 0 {
				break
			}
			rest = rest[open+len(marker.open):]
			end := strings.Index(rest, marker.close)
			if end < 0 {
				return marker.close, true
			}
			rest = rest[end+len(marker.close):]
		}
	}
	return "", false
}

// complexityOf counts branching tokens in one line of code. Optional chaining
// (?.) and nullish coalescing (??) are not counted as ternaries.
func complexityOf(line string) int {
	count := len(reBranchKeyword.FindAllStringIndex(line, -1))
	count += strings.Count(line, "&&")
	count += strings.Count(line, "||")

	for i := 0; i < len(line); i++ {
		if line[i] != '?' {
			continue
		}
		if i > 0 && line[i-1] == '?' {
			continue
		}
		if i+1 < len(line) && (line[i+1] == '?' || line[i+1] == '.') {
			continue
		}
		count++
	}
	return count
}
