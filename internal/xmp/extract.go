// Package xmp reads and rewrites the Cluster and Group fields of Adobe XMP
// preset files without an XML parser. Files in the wild are often malformed,
// so every operation works on raw text and tolerates broken structure.
package xmp

import (
	"regexp"
	"strings"
)

var (
	clusterAttrRe = regexp.MustCompile(`crs:Cluster\s*=\s*"([^"]*)"`)

	groupDefaultLangRe = regexp.MustCompile(`(?s)<crs:Group>.*?<rdf:li xml:lang="x-default">(.*?)</rdf:li>`)
	groupAnyLangRe     = regexp.MustCompile(`(?s)<crs:Group\s*>\s*<rdf:Alt\s*>\s*<rdf:li[^>]*>(.*?)</rdf:li>`)
	groupAttrRe        = regexp.MustCompile(`crs:Group\s*=\s*"([^"]*)"`)

	// Shapes only used when recovering a value from a broken document.
	groupUnterminatedRe = regexp.MustCompile(`<crs:Group\s*>\s*(?:<rdf:Alt\s*>\s*)?(?:<rdf:li[^>]*>)?([^<]*)`)
	groupOrphanTextRe   = regexp.MustCompile(`([^<>]+)</rdf:li\s*>\s*</rdf:Alt\s*>\s*</crs:Group\s*>`)
)

// maxGroupNameLen bounds recovered group names; longer captures are almost
// always a pattern that ran across unrelated content.
const maxGroupNameLen = 100

// matcher reports the field value captured from doc, if any.
type matcher func(doc string) (string, bool)

func submatch(re *regexp.Regexp) matcher {
	return func(doc string) (string, bool) {
		m := re.FindStringSubmatch(doc)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// groupExtractors is evaluated first-match-wins. New shapes are appended.
var groupExtractors = []matcher{
	submatch(groupDefaultLangRe),
	submatch(groupAnyLangRe),
	submatch(groupAttrRe),
}

var groupRecoverers = append(append([]matcher{}, groupExtractors...),
	submatch(groupUnterminatedRe),
	submatch(groupOrphanTextRe),
)

// ExtractCluster returns the crs:Cluster attribute value, or "" when absent.
func ExtractCluster(doc string) string {
	v, _ := submatch(clusterAttrRe)(doc)
	return v
}

// ExtractGroup returns the crs:Group value from the first known shape that
// matches, or "" when none does.
func ExtractGroup(doc string) string {
	for _, m := range groupExtractors {
		if v, ok := m(doc); ok {
			return v
		}
	}
	return ""
}

// RecoverGroup looks for a usable group name in any representation, including
// broken ones. Captures are trimmed and must be short and free of markup.
func RecoverGroup(doc string) (string, bool) {
	for _, m := range groupRecoverers {
		v, ok := m(doc)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" || len(v) >= maxGroupNameLen || strings.ContainsAny(v, "<>") {
			continue
		}
		return v, true
	}
	return "", false
}
