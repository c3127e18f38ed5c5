// Package diff renders line diffs of preset rewrites for dry runs.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// Lines returns the line-level diff between before and after.
func Lines(before, after string) []Line {
	table := map[string]rune{}
	var texts []string
	beforeRunes := encodeLines(before, table, &texts)
	afterRunes := encodeLines(after, table, &texts)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMainRunes(beforeRunes, afterRunes, false)

	var lines []Line
	oldLine := 1
	newLine := 1
	for _, d := range diffs {
		for _, r := range d.Text {
			line := strings.TrimSuffix(strings.TrimSuffix(texts[lineIndex(r)], "\n"), "\r")
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: line, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: line, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: line, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines
}

// surrogateLo and surrogateHi bound the UTF-16 surrogate range, which is not
// a valid rune and would not survive a string round trip.
const (
	surrogateLo = 0xD800
	surrogateHi = 0xDFFF
)

// encodeLines maps every line of s, terminator included, to one rune. Equal
// lines share a rune across both sides of the diff.
func encodeLines(s string, table map[string]rune, texts *[]string) []rune {
	parts := strings.SplitAfter(s, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]rune, 0, len(parts))
	for _, p := range parts {
		r, ok := table[p]
		if !ok {
			r = lineRune(len(*texts))
			table[p] = r
			*texts = append(*texts, p)
		}
		out = append(out, r)
	}
	return out
}

// lineRune encodes a line index as a rune, starting at 1 and skipping the
// surrogate range.
func lineRune(i int) rune {
	r := rune(i + 1)
	if r >= surrogateLo {
		r += surrogateHi - surrogateLo + 1
	}
	return r
}

func lineIndex(r rune) int {
	if r > surrogateHi {
		r -= surrogateHi - surrogateLo + 1
	}
	return int(r) - 1
}

// Unified renders a unified diff of before and after labelled with name.
// Identical inputs render as "".
func Unified(name, before, after string, context int) string {
	if before == after {
		return ""
	}
	if context < 0 {
		context = DefaultContext
	}
	lines := Lines(before, after)

	keep := make([]bool, len(lines))
	for i, l := range lines {
		if l.Type == LineContext {
			continue
		}
		lo, hi := max(0, i-context), min(len(lines)-1, i+context)
		for j := lo; j <= hi; j++ {
			keep[j] = true
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", name, name)

	oldPos, newPos := 1, 1
	for i := 0; i < len(lines); {
		if !keep[i] {
			oldPos++
			newPos++
			i++
			continue
		}
		j := i
		oldCount, newCount := 0, 0
		for j < len(lines) && keep[j] {
			switch lines[j].Type {
			case LineContext:
				oldCount++
				newCount++
			case LineRemoved:
				oldCount++
			case LineAdded:
				newCount++
			}
			j++
		}
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", oldPos, oldCount, newPos, newCount)
		for _, l := range lines[i:j] {
			switch l.Type {
			case LineContext:
				b.WriteString(" ")
			case LineRemoved:
				b.WriteString("-")
			case LineAdded:
				b.WriteString("+")
			}
			b.WriteString(l.Text)
			b.WriteString("\n")
		}
		oldPos += oldCount
		newPos += newCount
		i = j
	}
	return b.String()
}

// Stat counts added and removed lines.
func Stat(before, after string) (added, removed int) {
	for _, l := range Lines(before, after) {
		switch l.Type {
		case LineAdded:
			added++
		case LineRemoved:
			removed++
		}
	}
	return added, removed
}
