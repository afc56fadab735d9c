package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChunkChars keeps chunks comfortably inside the embedding
	// model's context while staying large enough to hold a full thought.
	DefaultMaxChunkChars = 1200

	// DefaultChunkOverlap is the tail carried from one chunk into the next so
	// sentences spanning a boundary stay retrievable.
	DefaultChunkOverlap = 150
)

// ChunkParagraphs splits text into chunks of at most maxChars, grouping whole
// paragraphs (blank-line separated) and carrying the last overlap bytes of the
// previous chunk into the next. A single paragraph longer than maxChars becomes
// its own oversized chunk rather than being cut mid-paragraph.
func ChunkParagraphs(text string, maxChars, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}

	var chunks []string
	buf := ""

	for _, p := range paras {
		if len(buf)+len(p)+2 <= maxChars {
			buf = strings.TrimSpace(buf + "\n\n" + p)
			continue
		}

		if buf != "" {
			chunks = append(chunks, buf)
		}
		buf = tail(buf, overlap) + "\n\n" + p
	}

	if buf = strings.TrimSpace(buf); buf != "" {
		chunks = append(chunks, buf)
	}

	return chunks
}

// tail returns the last n bytes of s, extended backward to a rune boundary so
// the overlap never starts mid-rune.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[i:]
}
