package mcpserver

// DocumentContract describes what a docket document holds. LLM consumers
// should read it before creating documents.
const DocumentContract = `# docket Document Contract

A document is a record with a title, a plain-text body, a set of tags, two
calendar dates and an optional bundle of binary attachments.

## Fields

- **title** (required): human-readable, shown in every listing and searched by
  the ` + "`title`" + ` filter.
- **content**: plain UTF-8 text of any length. Stored compressed; searched by
  the ` + "`words`" + ` filter (every word must occur, case-insensitive).
- **tags**: names or slash-separated paths of *existing* tags
  (` + "`work/reports`" + `). Tags form a hierarchy; filtering by a tag also
  matches its descendants. Use ` + "`list_tags`" + ` to see what exists.
- **created** / **modified**: dates in ` + "`YYYY-MM-DD`" + ` form. Created defaults
  to today; modified is maintained automatically.
- **attachments**: images or PDFs bundled inside the document. Add them with
  ` + "`attach_asset`" + `; they are listed by ` + "`read_document`" + `.

## Rules

1. Titles must not be empty.
2. Never invent tags; unknown tag names are rejected.
3. Keep one topic per document; prefer several short documents to one long one.
4. Attachment names are plain file names (no directories) and are unique
   within a document; uploading the same name replaces the previous file.

## Example

` + "```" + `
create_document(
  title:   "Weekly standup 2025-01-20",
  content: "Attendees: Alice, Bob.\nAction items: review the design doc.",
  tags:    "work/meetings"
)
` + "```" + `
`
