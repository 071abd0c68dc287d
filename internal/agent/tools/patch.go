package tools

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedPatch = errors.New("malformed_patch")
	ErrPatchMismatch  = errors.New("patch_context_mismatch")
)

type hunk struct {
	header string
	lines  []string
}

// ApplyUnifiedDiff applies a unified-diff patch to content and returns the
// patched text. Matching is exact: every context and deletion line of a hunk
// must be found, in order, scanning forward from where the previous hunk
// ended. Line numbers in hunk headers are treated as hints only.
func ApplyUnifiedDiff(content, patch string) (string, error) {
	hunks, err := parseHunks(patch)
	if err != nil {
		return "", err
	}
	if len(hunks) == 0 {
		return "", fmt.Errorf("%w: no hunks", ErrMalformedPatch)
	}

	lines := strings.Split(content, "\n")
	var out []string
	cursor := 0

	for _, h := range hunks {
		before, after := hunkSides(h)

		at, ok := findSequence(lines, before, cursor)
		if !ok {
			return "", fmt.Errorf("%w: hunk %q does not match file content", ErrPatchMismatch, h.header)
		}

		out = append(out, lines[cursor:at]...)
		out = append(out, after...)
		cursor = at + len(before)
	}

	out = append(out, lines[cursor:]...)
	return strings.Join(out, "\n"), nil
}

func parseHunks(patch string) ([]hunk, error) {
	var hunks []hunk
	var current *hunk

	for _, line := range strings.Split(strings.TrimRight(patch, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			if !strings.Contains(line[2:], "@@") {
				return nil, fmt.Errorf("%w: bad hunk header %q", ErrMalformedPatch, line)
			}
			hunks = append(hunks, hunk{header: line})
			current = &hunks[len(hunks)-1]
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			// File headers are ignored; the tool call names the target path.
		case current == nil:
			if strings.TrimSpace(line) != "" {
				return nil, fmt.Errorf("%w: content before first hunk", ErrMalformedPatch)
			}
		case line == "" || line[0] == ' ' || line[0] == '+' || line[0] == '-':
			// A fully blank line inside a hunk is an empty context line.
			current.lines = append(current.lines, line)
		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file"
		default:
			return nil, fmt.Errorf("%w: unexpected line %q", ErrMalformedPatch, line)
		}
	}
	return hunks, nil
}

func hunkSides(h hunk) (before, after []string) {
	for _, line := range h.lines {
		var marker byte = ' '
		text := ""
		if line != "" {
			marker = line[0]
			text = line[1:]
		}
		switch marker {
		case ' ':
			before = append(before, text)
			after = append(after, text)
		case '-':
			before = append(before, text)
		case '+':
			after = append(after, text)
		}
	}
	return before, after
}

func findSequence(lines, seq []string, from int) (int, bool) {
	if len(seq) == 0 {
		return from, true
	}
	for i := from; i+len(seq) <= len(lines); i++ {
		if matchesAt(lines, seq, i) {
			return i, true
		}
	}
	return 0, false
}

func matchesAt(lines, seq []string, at int) bool {
	for j, want := range seq {
		if lines[at+j] != want {
			return false
		}
	}
	return true
}
