package answer

import (
	"regexp"
	"strings"
)

var (
	// sourcesHeaderRe matches a "Sources:" section header at the start of the
	// reply or of a line, case-insensitively.
	sourcesHeaderRe = regexp.MustCompile(`(?i)(^|\n)[ \t]*sources:[ \t]*`)

	// bracketTokenRe matches a bracketed citation token.
	bracketTokenRe = regexp.MustCompile(`\[[^\[\]]+\]`)

	multiSpaceRe = regexp.MustCompile(` {2,}`)
)

// normalizeSources rebuilds the reply's citation section deterministically,
// regardless of what the model emitted:
//
//   - the body is everything before the first "Sources:" header (detected
//     case-insensitively), with inline bracketed tokens stripped;
//   - the emitted list is the bracketed tokens found anywhere in the raw
//     reply, restricted to the tokens actually supplied as grounding,
//     deduplicated in first-seen order;
//   - if the reply references none of the supplied tokens, the supplied list
//     is used as-is — the section is re-derived, never trusted verbatim;
//   - multiple "Sources:" sections collapse into the single rebuilt one;
//   - zero supplied tokens means no "Sources:" block at all.
func normalizeSources(raw string, supplied []string) string {
	return normalizeReply(raw, supplied, 0)
}

// normalizeReply is normalizeSources plus an optional last-ditch body clamp
// for replies that ignored the quoting instructions. maxBodyChars <= 0
// disables the clamp.
func normalizeReply(raw string, supplied []string, maxBodyChars int) string {
	body := raw
	if loc := sourcesHeaderRe.FindStringIndex(raw); loc != nil {
		body = raw[:loc[0]]
	}

	tokens := collectTokens(raw, supplied)
	if len(tokens) == 0 && len(supplied) > 0 {
		tokens = dedupe(supplied)
	}

	body = stripTokens(body)
	body = clampReply(body, maxBodyChars)

	if len(tokens) == 0 {
		return body
	}
	return body + "\n\nSources:\n" + strings.Join(tokens, "\n")
}

// collectTokens returns the supplied tokens in the order they first appear in
// the raw reply. Tokens the model invented (not in supplied) are discarded.
func collectTokens(raw string, supplied []string) []string {
	allowed := make(map[string]struct{}, len(supplied))
	for _, s := range supplied {
		allowed[s] = struct{}{}
	}

	var tokens []string
	seen := make(map[string]struct{})
	for _, m := range bracketTokenRe.FindAllString(raw, -1) {
		if _, ok := allowed[m]; !ok {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		tokens = append(tokens, m)
	}
	return tokens
}

func dedupe(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// stripTokens removes every inline bracketed token from the body, whether it
// was supplied as grounding or invented by the model, and tidies the
// whitespace the removal leaves behind. The body stays citation-free; only
// the rebuilt "Sources:" block carries tokens.
func stripTokens(body string) string {
	body = bracketTokenRe.ReplaceAllString(body, "")

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		line = multiSpaceRe.ReplaceAllString(line, " ")
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// clampReply hard-truncates an over-long body at the last word boundary
// before maxChars, appending an ellipsis. Never cuts mid-word.
func clampReply(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
