package jsonx

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Extract pulls a JSON object out of an LLM reply. It never returns nil
// and never panics; when nothing parses the result is an error map
// carrying a truncated copy of the raw reply.
//
// Strategy, in order:
//  1. each fenced ```json block, first one that parses wins
//  2. the raw reply as-is
//  3. repair the most promising candidate and parse once more
func Extract(raw string) map[string]any {
	for _, block := range fencedBlocks(raw) {
		if m, ok := parseObject(block); ok {
			return m
		}
	}

	candidate := strings.TrimSpace(raw)
	if m, ok := parseObject(candidate); ok {
		return m
	}

	// Prefer a fenced block for repair; a bare reply often carries prose
	// around the object.
	if blocks := fencedBlocks(raw); len(blocks) > 0 {
		candidate = blocks[0]
	}

	repaired := Repair(candidate)
	if m, ok := parseObject(repaired); ok {
		log.Debug().Msg("parsed model reply after repair")
		return m
	}

	log.Warn().Int("raw_len", len(raw)).Msg("model reply is not parseable JSON")
	return errorResult(raw)
}

// Repair applies best-effort fixes for the malformations models most
// often produce. Rules run in a fixed order; each is safe on already
// valid input.
func Repair(s string) string {
	s = strings.TrimSpace(s)
	s = escapeLoneBackslashes(s)
	s = singleToDoubleQuotes(s)
	s = flattenStringNewlines(s)
	s = stripTrailingCommas(s)
	s = wrapBraces(s)
	return s
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

func fencedBlocks(s string) []string {
	matches := fenceRe.FindAllStringSubmatch(s, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		if b := strings.TrimSpace(m[1]); b != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func parseObject(s string) (map[string]any, bool) {
	if !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}

// escapeLoneBackslashes doubles backslashes that do not start a valid
// JSON escape sequence.
func escapeLoneBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && validEscape(s[i+1]) {
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

func validEscape(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}

// singleToDoubleQuotes rewrites '...' string literals as "..." when the
// text contains no double quotes at all, the shape Python-trained models
// fall back to.
func singleToDoubleQuotes(s string) string {
	if strings.Contains(s, `"`) {
		return s
	}
	return strings.ReplaceAll(s, "'", `"`)
}

// flattenStringNewlines replaces literal newlines inside string literals
// with spaces. Newlines between tokens are left alone.
func flattenStringNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && inString && i+1 < len(s):
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
		case c == '"':
			inString = !inString
			b.WriteByte(c)
		case (c == '\n' || c == '\r') && inString:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// wrapBraces trims prose around the outermost object, or adds braces
// when the reply looks like bare key/value pairs.
func wrapBraces(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	if strings.Contains(s, ":") {
		return "{" + s + "}"
	}
	return s
}

const partialContentLimit = 500

func errorResult(raw string) map[string]any {
	partial := strings.TrimSpace(raw)
	if len(partial) > partialContentLimit {
		// Back off to a rune boundary so the cut never produces
		// invalid UTF-8.
		cut := partialContentLimit
		for cut > 0 && !utf8.RuneStart(partial[cut]) {
			cut--
		}
		partial = partial[:cut]
	}
	return map[string]any{
		"error":           "Failed to parse model output as JSON",
		"partial_content": partial,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
}

// IsErrorResult reports whether m is the failure shape produced by
// Extract rather than a parsed document.
func IsErrorResult(m map[string]any) bool {
	if m == nil {
		return true
	}
	_, hasErr := m["error"]
	_, hasPartial := m["partial_content"]
	return hasErr && hasPartial
}
