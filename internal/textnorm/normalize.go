package textnorm

import (
	"regexp"
	"strings"
)

// Normalize cleans extracted text for downstream prompting. The
// transformation is idempotent: Normalize(Normalize(s)) == Normalize(s).
//
// Steps, in order:
//  1. tabs become single spaces
//  2. runs of spaces collapse to one
//  3. leading/trailing whitespace stripped per line
//  4. runs of blank lines collapse to at most two
//  5. isolated special characters surrounded by whitespace are removed
//  6. runs of dash-like characters collapse to a single hyphen
//  7. lines containing only punctuation or symbols are dropped
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	// The match consumes its boundary whitespace, so adjacent isolated
	// specials ("a @ # b") need another pass; repeat until settled.
	for {
		next := isolatedSpecial.ReplaceAllString(s, " ")
		if next == s {
			break
		}
		s = next
	}
	s = spaceRuns.ReplaceAllString(s, " ")
	s = dashRuns.ReplaceAllString(s, "-")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			blanks++
			if blanks > 2 {
				continue
			}
			out = append(out, "")
			continue
		}
		if punctOnly.MatchString(line) {
			continue
		}
		blanks = 0
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

var (
	spaceRuns       = regexp.MustCompile(` {2,}`)
	isolatedSpecial = regexp.MustCompile("(^|[ \n])[@#$%^*_~`|<>]([ \n]|$)")
	dashRuns        = regexp.MustCompile(`[-\x{2013}\x{2014}]{2,}`)
	punctOnly       = regexp.MustCompile(`^[[:punct:][:space:]]+$`)
)
