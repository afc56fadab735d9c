package retrieval

import (
	"fmt"
	"strings"
)

// citeSeparator joins the non-empty citation parts. Kept as an em-dash with
// surrounding spaces so tokens stay readable when surfaced to users.
const citeSeparator = " — "

// Citation builds the bracketed citation token for a chunk:
//
//	[Big Book (3rd) — Step One — p.21 — Chunk#4]
//
// Only non-empty parts are joined. SectionPath wins over Chapter when both are
// set. Identical metadata always produces a byte-identical token, which is what
// downstream deduplication relies on.
func Citation(meta ChunkMetadata, chunkIndex int) string {
	work := meta.Work
	if meta.Edition != "" {
		work += " (" + meta.Edition + ")"
	}

	section := meta.SectionPath
	if section == "" {
		section = meta.Chapter
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{work, section, meta.Loc} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, fmt.Sprintf("Chunk#%d", chunkIndex))

	return "[" + strings.Join(parts, citeSeparator) + "]"
}
