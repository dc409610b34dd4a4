package dataset

import (
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Tokenize splits code into tokens: runs of identifier characters form one
// token, every other non-space rune is a token of its own. The scheme is
// deliberately language-agnostic; the mask only needs a stable, reproducible
// token stream.
func Tokenize(code string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range code {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			current.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			tokens = append(tokens, string(r))
		}
	}
	flush()
	return tokens
}

// DiffMask aligns the token streams of the vulnerable and fixed code with a
// longest-common-subsequence diff and labels every token of the fixed text:
// 0 for tokens in a matched run, 1 for changed or added tokens. The
// alignment is deterministic for identical inputs; ties resolve to the
// earliest matching run.
func DiffMask(vulnerable, fixed string) []int {
	vulnTokens := Tokenize(vulnerable)
	fixedTokens := Tokenize(fixed)

	// The diff runs over whole tokens: each distinct token is mapped to a
	// unique rune so diffmatchpatch never splits inside a token. Same trick
	// as the library's line mode.
	vulnText, fixedText := tokensToChars(vulnTokens, fixedTokens)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(vulnText, fixedText, false)

	mask := make([]int, 0, len(fixedTokens))
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for range d.Text {
				mask = append(mask, 0)
			}
		case diffmatchpatch.DiffInsert:
			for range d.Text {
				mask = append(mask, 1)
			}
		case diffmatchpatch.DiffDelete:
			// Tokens only present in the vulnerable text carry no label.
		}
	}
	return mask
}

// tokensToChars encodes the two token streams as strings where every rune
// stands for one token, sharing a single token table so equal tokens map to
// equal runes.
func tokensToChars(vulnTokens, fixedTokens []string) (string, string) {
	table := make(map[string]rune)
	next := rune(1)

	encode := func(tokens []string) string {
		var encoded strings.Builder
		for _, token := range tokens {
			r, ok := table[token]
			if !ok {
				r = next
				table[token] = r
				next++
				// Skip the surrogate range, which cannot round-trip
				// through a Go string.
				if next == 0xD800 {
					next = 0xE000
				}
			}
			encoded.WriteRune(r)
		}
		return encoded.String()
	}

	return encode(vulnTokens), encode(fixedTokens)
}
