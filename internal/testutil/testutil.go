// Package testutil provides shared preset fixtures and library helpers for tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/presetcat/internal/storage"
)

// PresetHead is the opening of a Camera Raw preset, up to and including the
// rdf:Description opening tag. Cluster is the crs:Cluster value; empty omits it.
func PresetHead(cluster string) string {
	var b strings.Builder
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 7.0-c000 1.000000, 0000/00/00-00:00:00        ">` + "\n")
	b.WriteString(` <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	b.WriteString(`  <rdf:Description rdf:about=""` + "\n")
	b.WriteString(`    xmlns:crs="http://ns.adobe.com/camera-raw-settings/1.0/"` + "\n")
	b.WriteString(`   crs:PresetType="Normal"` + "\n")
	if cluster != "" {
		b.WriteString(`   crs:Cluster="` + cluster + `"` + "\n")
	}
	b.WriteString(`   crs:UUID="6B1D5A7E0C8F4D2A9E3B1C5D7F9A2B4C"` + "\n")
	b.WriteString(`   crs:SupportsAmount="False"` + "\n")
	b.WriteString(`   crs:Version="15.0"` + "\n")
	b.WriteString(`   crs:HasSettings="True">` + "\n")
	return b.String()
}

// PresetName is the crs:Name element every fixture carries.
const PresetName = `   <crs:Name>
    <rdf:Alt>
     <rdf:li xml:lang="x-default">Warm Fade</rdf:li>
    </rdf:Alt>
   </crs:Name>
`

// PresetTail closes the document opened by PresetHead.
const PresetTail = `  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
`

// CanonicalGroup renders the group block exactly as the writer produces it.
func CanonicalGroup(value string) string {
	return "   <crs:Group>\n" +
		"    <rdf:Alt>\n" +
		`     <rdf:li xml:lang="x-default">` + value + "</rdf:li>\n" +
		"    </rdf:Alt>\n" +
		"   </crs:Group>\n"
}

// Preset assembles a document from head, body and tail.
func Preset(cluster, body string) string {
	return PresetHead(cluster) + body + PresetTail
}

// WriteFile writes content under root at the slash-separated rel path and
// returns the absolute path.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// ReadFile returns the content of path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// TestLibrary creates a temporary presets root with a storage.Provider.
func TestLibrary(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}
