// Package dedent normalizes the indentation of embedded multi-line text.
//
// Script text written inline in Go source carries the indentation of the
// surrounding code. Before such text is shipped to an interpreter that is
// sensitive to leading whitespace, the shared indentation must be removed
// while the relative nesting of the lines is preserved.
//
// # Behavior
//
// The first line containing a character other than space, tab, or newline is
// the reference line. Its leading whitespace run length k becomes the amount
// to remove:
//
//   - If the text has no such line, or k == 0, the text is returned unchanged.
//   - Blank lines before the reference line are dropped.
//   - Every remaining line loses up to k leading spaces/tabs, never more than
//     the line's own run. Content is never removed.
//
// A line indented deeper than the reference keeps the excess, so nested
// blocks stay nested:
//
//	Dedent("  if x:\n    y()\n")  =>  "if x:\n  y()\n"
//
// Dedent is idempotent: after one pass the reference line has no indentation,
// so further passes return their input unchanged.
package dedent

import "strings"

// Dedent removes the common leading indentation from text, using the first
// non-blank line as the reference. See the package documentation for the
// exact rules.
func Dedent(text string) string {
	start, k := indentRef(text)
	if k == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) - start)

	rest := text[start:]
	for len(rest) > 0 {
		line := rest
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line = rest[:i+1]
			rest = rest[i+1:]
		} else {
			rest = ""
		}
		b.WriteString(stripIndent(line, k))
	}
	return b.String()
}

// indentRef locates the first line holding content and measures its leading
// space/tab run. It returns the byte offset of that line's start and the run
// length, or (0, 0) when no line has content.
func indentRef(text string) (start, run int) {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			start = i + 1
			run = 0
		case ' ', '\t':
			run++
		default:
			return start, run
		}
	}
	return 0, 0
}

// stripIndent removes up to k leading spaces/tabs from line, stopping early
// at the line's first non-whitespace byte (or its newline).
func stripIndent(line string, k int) string {
	i := 0
	for i < len(line) && i < k && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[i:]
}
