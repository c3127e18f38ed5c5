package xmp

import (
	"regexp"
	"strings"
)

// groupShapes is the catalogue of Group representations removed before a
// group is written. Order matters: whole elements go first so the orphan shape
// only sees closers that really have no opener.
var groupShapes = []*regexp.Regexp{
	// Opener followed by any run of group-internal tokens, closer optional.
	// Stops at the first unrelated tag, so an unterminated group never
	// swallows its neighbours.
	regexp.MustCompile(`<crs:Group\s*>(?:<rdf:Alt\s*>|</rdf:Alt\s*>|<rdf:li\b[^>]*>|</rdf:li\s*>|[^<]+)*(?:</crs:Group\s*>)?`),
	// Closers (and stray text) left behind by a lost opener.
	regexp.MustCompile(`(?:<rdf:Alt\s*>\s*)?(?:<rdf:li\b[^>]*>)?(?:[^<>]*</rdf:li\s*>\s*)?(?:</rdf:Alt\s*>\s*)?</crs:Group\s*>`),
	// Flat attribute form.
	regexp.MustCompile(`\s+crs:Group\s*=\s*"[^"]*"`),
}

// RemoveGroup deletes every Group occurrence from doc. Passes repeat until
// nothing matches, so overlapping malformed occurrences are all caught. Lines
// emptied by a removal are dropped; other blank lines are left alone.
func RemoveGroup(doc string) string {
	for {
		loc := findShape(doc)
		if loc == nil {
			return doc
		}
		doc = cut(doc, loc[0], loc[1])
	}
}

// HasGroup reports whether any known Group shape is present.
func HasGroup(doc string) bool {
	return findShape(doc) != nil
}

// findShape returns the first match of the highest-priority shape present,
// minus trailing whitespace: an unterminated group must not take the
// indentation of the line that follows it.
// One removal per call keeps offsets valid when a cut widens to a whole line.
func findShape(doc string) []int {
	for _, re := range groupShapes {
		if loc := re.FindStringIndex(doc); loc != nil {
			for loc[1] > loc[0] && isSpace(doc[loc[1]-1]) {
				loc[1]--
			}
			return loc
		}
	}
	return nil
}

// NormalizeGroup rewrites doc so it holds exactly one canonical Group with
// value. It is SetGroup under the name the repair path uses.
func NormalizeGroup(doc, value string) (string, error) {
	return SetGroup(doc, value)
}

// cut removes doc[start:end]. When the removed span was the only content on
// its line(s), the now-empty line goes too.
func cut(doc string, start, end int) string {
	ls := start
	for ls > 0 && isBlank(doc[ls-1]) {
		ls--
	}
	le := end
	for le < len(doc) && isBlank(doc[le]) {
		le++
	}
	ownsLine := (ls == 0 || doc[ls-1] == '\n') &&
		(le == len(doc) || doc[le] == '\n' || doc[le] == '\r')
	if !ownsLine {
		return doc[:start] + doc[end:]
	}
	if strings.HasPrefix(doc[le:], "\r\n") {
		le += 2
	} else if le < len(doc) && doc[le] == '\n' {
		le++
	}
	return doc[:ls] + doc[le:]
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func isSpace(c byte) bool {
	return isBlank(c) || c == '\n' || c == '\r'
}
