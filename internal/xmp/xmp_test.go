package xmp

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/presetcat/internal/testutil"
)

const unterminatedGroup = "   <crs:Group>\n" +
	"    <rdf:Alt>\n" +
	"     <rdf:li xml:lang=\"x-default\">Portraits\n"

const orphanGroup = "   Portraits</rdf:li></rdf:Alt></crs:Group>\n"

func withGroupAttr(doc, value string) string {
	return strings.Replace(doc, `   crs:Version="15.0"`, `   crs:Group="`+value+`"`+"\n"+`   crs:Version="15.0"`, 1)
}

func TestExtractCluster(t *testing.T) {
	assert.Equal(t, "Film", ExtractCluster(testutil.Preset("Film", testutil.PresetName)))
	assert.Equal(t, "", ExtractCluster(testutil.Preset("", testutil.PresetName)))
	assert.Equal(t, "Spaced", ExtractCluster(`<rdf:Description crs:Cluster = "Spaced">`))
}

func TestExtractGroup_Shapes(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"canonical", testutil.Preset("A", testutil.PresetName+testutil.CanonicalGroup("Portraits")), "Portraits"},
		{"compact", testutil.Preset("A", testutil.PresetName+`<crs:Group><rdf:Alt><rdf:li xml:lang="x-default">Compact</rdf:li></rdf:Alt></crs:Group>`+"\n"), "Compact"},
		{"relaxed quoting", testutil.Preset("A", testutil.PresetName+`<crs:Group><rdf:Alt><rdf:li xml:lang='x-default'>Single</rdf:li></rdf:Alt></crs:Group>`+"\n"), "Single"},
		{"attribute", withGroupAttr(testutil.Preset("A", testutil.PresetName), "Flat"), "Flat"},
		{"absent", testutil.Preset("A", testutil.PresetName), ""},
		{"garbage", "not xml at all <<<", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractGroup(tc.doc))
		})
	}
}

func TestRecoverGroup(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
		ok   bool
	}{
		{"canonical", testutil.Preset("A", testutil.PresetName+testutil.CanonicalGroup("Portraits")), "Portraits", true},
		{"unterminated", testutil.Preset("A", testutil.PresetName+unterminatedGroup), "Portraits", true},
		{"orphan text", testutil.Preset("A", testutil.PresetName+orphanGroup), "Portraits", true},
		{"blank value", testutil.Preset("A", testutil.PresetName+testutil.CanonicalGroup("  ")), "", false},
		{"absent", testutil.Preset("A", testutil.PresetName), "", false},
		{"too long", testutil.Preset("A", testutil.PresetName+testutil.CanonicalGroup(strings.Repeat("x", 120))), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := RecoverGroup(tc.doc)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	text, enc, err := Decode([]byte(`crs:Cluster="Café"`))
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, enc)
	assert.Equal(t, "Café", ExtractCluster(text))

	text, enc, err = Decode([]byte("crs:Cluster=\"Caf\xe9\""))
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, enc)
	assert.Equal(t, "Café", ExtractCluster(text))

	_, _, err = Decode([]byte("crs:Cluster=\"x\"\x00\x01"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeUTF8_RejectsFallback(t *testing.T) {
	_, err := DecodeUTF8([]byte("Caf\xe9"))
	assert.ErrorIs(t, err, ErrDecode)

	text, err := DecodeUTF8([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
}

func TestSetCluster_ReplacesInPlace(t *testing.T) {
	doc := testutil.Preset("Old", testutil.PresetName)
	got, err := SetCluster(doc, "New")
	require.NoError(t, err)
	assert.Equal(t, testutil.Preset("New", testutil.PresetName), got)
}

func TestSetCluster_SameValueIsNoop(t *testing.T) {
	doc := testutil.Preset("Same", testutil.PresetName+testutil.CanonicalGroup("G"))
	got, err := SetCluster(doc, "Same")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestSetCluster_AppendsToContainer(t *testing.T) {
	doc := testutil.Preset("", testutil.PresetName)
	got, err := SetCluster(doc, "New")
	require.NoError(t, err)
	assert.Contains(t, got, `crs:HasSettings="True" crs:Cluster="New">`)
	assert.Equal(t, "New", ExtractCluster(got))
}

func TestSetCluster_SelfClosingContainer(t *testing.T) {
	got, err := SetCluster(`<rdf:Description rdf:about="" crs:Version="1"/>`, "X")
	require.NoError(t, err)
	assert.Equal(t, `<rdf:Description rdf:about="" crs:Version="1" crs:Cluster="X"/>`, got)
}

func TestSetCluster_DropsDuplicates(t *testing.T) {
	doc := strings.Replace(testutil.Preset("One", testutil.PresetName),
		`   crs:Version="15.0"`, "   crs:Cluster=\"Two\"\n   crs:Version=\"15.0\"", 1)
	got, err := SetCluster(doc, "New")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(got, "crs:Cluster="))
	assert.Equal(t, testutil.Preset("New", testutil.PresetName), got)
}

func TestSetCluster_StructureMissing(t *testing.T) {
	doc := "<x:xmpmeta></x:xmpmeta>"
	got, err := SetCluster(doc, "X")
	assert.ErrorIs(t, err, ErrStructureMissing)
	assert.Equal(t, doc, got)
}

func TestSetCluster_RoundTrip(t *testing.T) {
	for _, v := range []string{"", "Film", "B&W Looks", "Ünïcödé", "a - b - c", "$1 ${x}", `back\slash`} {
		got, err := SetCluster(testutil.Preset("Old", testutil.PresetName), v)
		require.NoError(t, err)
		assert.Equal(t, v, ExtractCluster(got), "value %q", v)
	}
}

func TestSetCluster_QuoteIsEscaped(t *testing.T) {
	got, err := SetCluster(testutil.Preset("Old", testutil.PresetName), `say "hi"`)
	require.NoError(t, err)
	assert.Contains(t, got, `crs:Cluster="say &quot;hi&quot;"`)
}

func TestSetGroup_InsertsBeforeFirstChild(t *testing.T) {
	doc := testutil.Preset("A", testutil.PresetName)
	got, err := SetGroup(doc, "Portraits")
	require.NoError(t, err)
	assert.Equal(t, testutil.Preset("A", testutil.CanonicalGroup("Portraits")+testutil.PresetName), got)
}

func TestSetGroup_EmptyInterior(t *testing.T) {
	doc := testutil.Preset("A", "")
	got, err := SetGroup(doc, "Solo")
	require.NoError(t, err)
	assert.Equal(t, testutil.Preset("A", testutil.CanonicalGroup("Solo")), got)
}

func TestSetGroup_AfterInteriorAttributes(t *testing.T) {
	doc := "<rdf:Description rdf:about=\"\">\n   crs:Loose=\"1\"\n   <crs:Name>N</crs:Name>\n</rdf:Description>\n"
	got, err := SetGroup(doc, "G")
	require.NoError(t, err)
	want := "<rdf:Description rdf:about=\"\">\n   crs:Loose=\"1\"\n" + testutil.CanonicalGroup("G") + "   <crs:Name>N</crs:Name>\n</rdf:Description>\n"
	assert.Equal(t, want, got)
}

func TestSetGroup_StructureMissing(t *testing.T) {
	for _, doc := range []string{
		"no container here",
		`<rdf:Description rdf:about=""/>`,
		"<rdf:Description rdf:about=\"\">\n   <crs:Name>N</crs:Name>\n",
	} {
		got, err := SetGroup(doc, "G")
		assert.ErrorIs(t, err, ErrStructureMissing)
		assert.Equal(t, doc, got)
	}
}

func TestSetGroup_KeepsCRLF(t *testing.T) {
	doc := strings.ReplaceAll(testutil.Preset("A", testutil.PresetName), "\n", "\r\n")
	got, err := SetGroup(doc, "G")
	require.NoError(t, err)
	assert.Contains(t, got, strings.ReplaceAll(testutil.CanonicalGroup("G"), "\n", "\r\n"))
	assert.NotContains(t, strings.ReplaceAll(got, "\r\n", ""), "\n")
}

func TestSetGroup_SelfRepairs(t *testing.T) {
	docs := map[string]string{
		"none":         testutil.Preset("A", testutil.PresetName),
		"canonical":    testutil.Preset("A", testutil.PresetName+testutil.CanonicalGroup("Old")),
		"unterminated": testutil.Preset("A", testutil.PresetName+unterminatedGroup),
		"orphan":       testutil.Preset("A", testutil.PresetName+orphanGroup),
		"attribute":    withGroupAttr(testutil.Preset("A", testutil.PresetName), "Flat"),
		"duplicated": testutil.Preset("A", testutil.CanonicalGroup("One")+testutil.PresetName+
			testutil.CanonicalGroup("Two")+orphanGroup),
		"compact and indented": testutil.Preset("A", "<crs:Group><rdf:Alt><rdf:li xml:lang=\"x-default\">C</rdf:li></rdf:Alt></crs:Group>\n"+
			testutil.PresetName+"      <crs:Group >\n  <rdf:Alt>\n<rdf:li xml:lang=\"x-default\">D</rdf:li>\n</rdf:Alt>\n         </crs:Group>\n"),
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			got, err := SetGroup(doc, "New")
			require.NoError(t, err)
			assert.Equal(t, 1, strings.Count(got, "<crs:Group>"))
			assert.Equal(t, 1, strings.Count(got, "</crs:Group>"))
			assert.NotContains(t, got, "crs:Group=")
			assert.Contains(t, got, testutil.CanonicalGroup("New"))
			assert.Equal(t, "New", ExtractGroup(got))
			assert.Contains(t, got, testutil.PresetName)
			assert.Equal(t, "A", ExtractCluster(got))
		})
	}
}

func TestRemoveGroup_LeavesNeighbours(t *testing.T) {
	doc := testutil.Preset("A", testutil.PresetName+unterminatedGroup+"   <crs:Look>\n    <crs:Amount>1</crs:Amount>\n   </crs:Look>\n")
	got := RemoveGroup(doc)
	assert.False(t, HasGroup(got))
	assert.Contains(t, got, "<crs:Look>\n    <crs:Amount>1</crs:Amount>\n   </crs:Look>\n")
	assert.Contains(t, got, testutil.PresetName)
}

func TestRemoveGroup_CleanDocumentUntouched(t *testing.T) {
	doc := testutil.Preset("A", testutil.PresetName+"\n\n")
	assert.Equal(t, doc, RemoveGroup(doc))
}

func TestRemoveGroup_OrphanLeavesNoBlankLine(t *testing.T) {
	doc := testutil.Preset("A", testutil.PresetName+orphanGroup)
	assert.Equal(t, testutil.Preset("A", testutil.PresetName), RemoveGroup(doc))
}

func TestNormalizeGroup_Idempotent(t *testing.T) {
	docs := []string{
		testutil.Preset("A", testutil.PresetName),
		testutil.Preset("A", testutil.PresetName+testutil.CanonicalGroup("P")),
		testutil.Preset("A", testutil.PresetName+unterminatedGroup),
		testutil.Preset("A", testutil.PresetName+orphanGroup+"\n"),
		withGroupAttr(testutil.Preset("A", testutil.PresetName), "Flat"),
		strings.ReplaceAll(testutil.Preset("A", testutil.PresetName+testutil.CanonicalGroup("P")), "\n", "\r\n"),
		"<rdf:Description rdf:about=\"\"><crs:Name>N</crs:Name></rdf:Description>",
	}
	for i, doc := range docs {
		once, err := NormalizeGroup(doc, "P")
		require.NoError(t, err, "doc %d", i)
		twice, err := NormalizeGroup(once, "P")
		require.NoError(t, err, "doc %d", i)
		assert.Equal(t, once, twice, "doc %d", i)
	}
}

func TestNormalizeGroup_CleanDocumentIsNoop(t *testing.T) {
	clean := testutil.Preset("A", testutil.CanonicalGroup("P")+testutil.PresetName)
	got, err := NormalizeGroup(clean, "P")
	require.NoError(t, err)
	assert.Equal(t, clean, got)
}

func TestValidateGroup(t *testing.T) {
	require.NoError(t, ValidateGroup("Portraits - Warm"))
	for _, bad := range []string{"", `a"b`, "a<b", "line\nbreak", strings.Repeat("x", 150)} {
		err := ValidateGroup(bad)
		assert.True(t, errors.Is(err, ErrInvalidValue), "value %q", bad)
	}
}

func TestValidateCluster(t *testing.T) {
	long := strings.Repeat("x", 150)
	require.NoError(t, ValidateCluster(long))

	doc, err := SetCluster(testutil.Preset("A", testutil.PresetName), long)
	require.NoError(t, err)
	assert.Equal(t, long, ExtractCluster(doc))

	for _, bad := range []string{"", `a"b`, "a<b", "line\nbreak"} {
		err := ValidateCluster(bad)
		assert.True(t, errors.Is(err, ErrInvalidValue), "value %q", bad)
	}
}

func TestInferClusterGroup(t *testing.T) {
	base := filepath.FromSlash("/base")
	cases := []struct {
		path, cluster, group string
	}{
		{"/base/A/B/C/file.xmp", "A", "B - C"},
		{"/base/A/file.xmp", "A", ""},
		{"/base/A/B/file.xmp", "A", "B"},
		{"/base/file.xmp", "", ""},
		{"/elsewhere/A/file.xmp", "", ""},
	}
	for _, tc := range cases {
		c, g := InferClusterGroup(filepath.FromSlash(tc.path), base)
		assert.Equal(t, tc.cluster, c, tc.path)
		assert.Equal(t, tc.group, g, tc.path)
	}
}
