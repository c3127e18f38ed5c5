package mcpserver

// GroupFormatContract describes how presetcat writes the Cluster and Group
// fields, so LLM consumers know what an edit will produce.
const GroupFormatContract = `# Preset Cluster/Group Format

Camera Raw presets are XMP files (` + "`" + `.xmp` + "`" + `). presetcat edits exactly two fields
and leaves every other byte of the file alone.

## Cluster

Stored as an attribute of the first ` + "`" + `rdf:Description` + "`" + ` element:

` + "```" + `xml
<rdf:Description rdf:about=""
   crs:Cluster="Portraits"
   ...>
` + "```" + `

An existing attribute keeps its position; only the value changes.

## Group

Stored as one element inside the same ` + "`" + `rdf:Description` + "`" + `, always in this layout:

` + "```" + `xml
   <crs:Group>
    <rdf:Alt>
     <rdf:li xml:lang="x-default">Soft Light</rdf:li>
    </rdf:Alt>
   </crs:Group>
` + "```" + `

Writing a group removes every other Group representation first (attribute
form, unterminated elements, orphaned closers), so a file never carries two.

## Values

1. Values must be non-empty and shorter than 100 characters.
2. Values must not contain ` + "`" + `<` + "`" + `, ` + "`" + `>` + "`" + `, ` + "`" + `"` + "`" + ` or line breaks.
3. Files that are not valid UTF-8 are read-only: they can be listed but never rewritten.

## Folder inference

` + "`" + `suggest_from_paths` + "`" + ` derives values from where a preset sits under the presets root:
the first folder is the cluster and the folders below it, joined with " - ",
form the group. ` + "`" + `Portraits/Soft/Warm.xmp` + "`" + ` suggests cluster ` + "`" + `Portraits` + "`" + `, group ` + "`" + `Soft` + "`" + `.
A preset directly under the root gets no suggestion.

## Dry runs

Every editing tool accepts ` + "`" + `dry_run` + "`" + `. A dry run writes nothing and returns a
unified diff per file instead.
`
