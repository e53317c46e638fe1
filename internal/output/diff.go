package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffResult is a unified diff between the current and the regenerated
// content of one file.
type DiffResult struct {
	Path    string
	Unified string
	Added   int
	Removed int
}

// HasDifferences reports whether the two contents differ.
func (d *DiffResult) HasDifferences() bool {
	return d.Unified != ""
}

// Summary returns a one-line description such as "+2 -1 src/index.ts".
func (d *DiffResult) Summary() string {
	if !d.HasDifferences() {
		return "unchanged " + d.Path
	}

	return fmt.Sprintf("+%d -%d %s", d.Added, d.Removed, d.Path)
}

// DiffContext is the number of unchanged lines shown around each change.
const DiffContext = 3

// Diff computes a git-style unified diff for path between current, which
// is nil when the file does not exist, and proposed.
func Diff(path string, current, proposed []byte) (*DiffResult, error) {
	from := "a/" + path
	if current == nil {
		from = "/dev/null"
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(string(current)),
		B:        splitLines(string(proposed)),
		FromFile: from,
		ToFile:   "b/" + path,
		Context:  DiffContext,
	})
	if err != nil {
		return nil, fmt.Errorf("computing diff for %s: %w", path, err)
	}

	result := &DiffResult{Path: path, Unified: unified}

	for _, line := range strings.Split(unified, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			result.Added++
		case strings.HasPrefix(line, "-"):
			result.Removed++
		}
	}

	return result, nil
}

// WriteDiff writes the diff to w with optional ANSI colors.
func WriteDiff(w io.Writer, result *DiffResult, color bool) error {
	if !result.HasDifferences() {
		_, err := fmt.Fprintf(w, "%s is up to date\n", result.Path)
		return err
	}

	for _, line := range strings.Split(strings.TrimSuffix(result.Unified, "\n"), "\n") {
		if color {
			line = colorize(line)
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

func colorize(line string) string {
	const (
		red   = "\033[31m"
		green = "\033[32m"
		cyan  = "\033[36m"
		bold  = "\033[1m"
		reset = "\033[0m"
	)

	switch {
	case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		return bold + line + reset
	case strings.HasPrefix(line, "@@"):
		return cyan + line + reset
	case strings.HasPrefix(line, "-"):
		return red + line + reset
	case strings.HasPrefix(line, "+"):
		return green + line + reset
	default:
		return line
	}
}

// splitLines splits s into lines that keep their trailing newline, as
// difflib expects. Empty input yields no lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}

	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}
