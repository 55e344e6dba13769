// Package ignore decides which paths the sync engine never tracks.
// Dot-files and dot-directories are always skipped; a project may add
// gitignore-syntax rules in a .deployignore file at its root.
package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/deploysync/deploysync/internal/utils"
)

// IgnoreFileName is looked up at the project root.
const IgnoreFileName = ".deployignore"

var defaultLines = []string{
	"*.tmp",
	"*.swp",
	"*.swo",
	"Thumbs.db",
	"desktop.ini",
	"node_modules/",
	"__pycache__/",
}

type List struct {
	matcher *gitignore.GitIgnore
}

// NewList builds the default rule set plus any .deployignore found in baseDir.
func NewList(baseDir string) *List {
	lines := make([]string, 0, len(defaultLines))
	lines = append(lines, defaultLines...)

	ignoreFile := filepath.Join(baseDir, IgnoreFileName)
	if data, err := os.ReadFile(ignoreFile); err == nil {
		lines = append(lines, splitLines(string(data))...)
	}

	return &List{matcher: gitignore.CompileIgnoreLines(lines...)}
}

// ShouldIgnore matches a forward-slash relative path against the rules.
// Hidden segments win before any pattern matching.
func (l *List) ShouldIgnore(rel string) bool {
	if utils.HiddenPath(rel) {
		return true
	}
	return l.matcher.MatchesPath(rel)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			if line != "" {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
