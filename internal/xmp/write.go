package xmp

import (
	"regexp"
	"strings"
)

var (
	descOpenRe     = regexp.MustCompile(`<rdf:Description\b[^>]*>`)
	descAttrRe     = regexp.MustCompile(`crs:[A-Za-z0-9]+\s*=\s*"[^"]*"`)
	extraClusterRe = regexp.MustCompile(`\s+crs:Cluster\s*=\s*"[^"]*"`)
)

const descClose = "</rdf:Description>"

// SetCluster writes value into the crs:Cluster attribute. An existing
// attribute keeps its position and only its value changes; duplicates after
// the first are dropped. Without one, the attribute is appended to the first
// rdf:Description opening tag.
func SetCluster(doc, value string) (string, error) {
	value = strings.ReplaceAll(value, `"`, "&quot;")

	loc := clusterAttrRe.FindStringSubmatchIndex(doc)
	if loc != nil {
		head, tail := doc[:loc[2]]+value, doc[loc[3]:]
		return head + extraClusterRe.ReplaceAllLiteralString(tail, ""), nil
	}

	open := descOpenRe.FindStringIndex(doc)
	if open == nil {
		return doc, ErrStructureMissing
	}
	at := open[1] - 1
	if doc[at-1] == '/' {
		at--
	}
	return doc[:at] + ` crs:Cluster="` + value + `"` + doc[at:], nil
}

// SetGroup removes every Group occurrence and inserts one canonical block
// holding value inside the first rdf:Description container.
func SetGroup(doc, value string) (string, error) {
	cleaned := RemoveGroup(doc)

	start, end, ok := descInterior(cleaned)
	if !ok {
		return doc, ErrStructureMissing
	}
	at := groupAnchor(cleaned, start, end)
	return insertLines(cleaned, at, canonicalGroup(value), lineEnding(cleaned)), nil
}

// canonicalGroup is the one Group layout this package produces.
func canonicalGroup(value string) []string {
	return []string{
		"   <crs:Group>",
		"    <rdf:Alt>",
		`     <rdf:li xml:lang="x-default">` + value + "</rdf:li>",
		"    </rdf:Alt>",
		"   </crs:Group>",
	}
}

// descInterior locates the content between the first rdf:Description opening
// tag and its closing tag. Self-closing containers have no interior.
func descInterior(doc string) (start, end int, ok bool) {
	open := descOpenRe.FindStringIndex(doc)
	if open == nil || strings.HasSuffix(doc[open[0]:open[1]], "/>") {
		return 0, 0, false
	}
	rel := strings.Index(doc[open[1]:], descClose)
	if rel < 0 {
		return 0, 0, false
	}
	return open[1], open[1] + rel, true
}

// groupAnchor picks where the group goes inside doc[start:end]: between the
// trailing attribute assignments and the first nested crs element, falling
// back to whichever of the two exists, then to the start of the interior.
func groupAnchor(doc string, start, end int) int {
	interior := doc[start:end]

	lastAttr := -1
	if attrs := descAttrRe.FindAllStringIndex(interior, -1); len(attrs) > 0 {
		lastAttr = attrs[len(attrs)-1][1]
	}
	firstChild := strings.Index(interior, "<crs:")

	switch {
	case lastAttr >= 0 && firstChild >= 0:
		if lastAttr < firstChild {
			return start + lastAttr
		}
		return start + firstChild
	case lastAttr >= 0:
		return start + lastAttr
	case firstChild >= 0:
		return start + firstChild
	default:
		return start
	}
}

// insertLines splices lines into doc at position at, always as whole lines:
// before the current line when only indentation precedes at, after it when
// only whitespace follows, and on a line of their own otherwise.
func insertLines(doc string, at int, lines []string, eol string) string {
	block := strings.Join(lines, eol)

	ls := at
	for ls > 0 && isBlank(doc[ls-1]) {
		ls--
	}
	if ls == 0 || doc[ls-1] == '\n' {
		return doc[:ls] + block + eol + doc[ls:]
	}

	le := at
	for le < len(doc) && isBlank(doc[le]) {
		le++
	}
	if le == len(doc) || doc[le] == '\n' || doc[le] == '\r' {
		return doc[:le] + eol + block + doc[le:]
	}
	return doc[:at] + eol + block + eol + doc[at:]
}

func lineEnding(doc string) string {
	if strings.Contains(doc, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
