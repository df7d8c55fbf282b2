package textmatch

import (
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/words"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Matcher tokenizes text and compares tokens against keywords using a
// locale-aware lowercase mapping.
type Matcher struct {
	lower cases.Caser
}

func NewMatcher(locale language.Tag) *Matcher {
	return &Matcher{
		lower: cases.Lower(locale),
	}
}

// ExtractWords splits text on Unicode word boundaries and keeps the
// segments that start with a letter or digit, in their original order
// and casing. Punctuation-only and whitespace segments are dropped.
func (m *Matcher) ExtractWords(text string) []string {
	seg := words.NewSegmenter([]byte(text))

	var out []string
	for seg.Next() {
		tok := seg.Bytes()
		r, _ := utf8.DecodeRune(tok)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, string(tok))
		}
	}
	return out
}

// Matches reports whether word is within maxDistance edits of keyword,
// comparing both in lowercase.
func (m *Matcher) Matches(word, keyword string, maxDistance int) bool {
	return Distance(m.lower.String(word), m.lower.String(keyword)) <= maxDistance
}

// Distance is the Damerau-Levenshtein distance (optimal string
// alignment): insertions, deletions, substitutions and adjacent
// transpositions all cost one. Post bodies can be long and are matched
// against every keyword, so the general case keeps only three rolling
// rows instead of the full matrix.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	switch len(ra) {
	case 0:
		return len(rb)
	case 1:
		for _, r := range rb {
			if r == ra[0] {
				return len(rb) - 1
			}
		}
		return len(rb)
	}

	width := len(rb) + 1
	prev2 := make([]int, width)
	prev := make([]int, width)
	cur := make([]int, width)

	for j := 0; j < width; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			d := prev[j] + 1 // deletion
			if ins := cur[j-1] + 1; ins < d {
				d = ins
			}
			if sub := prev[j-1] + cost; sub < d {
				d = sub
			}
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if tr := prev2[j-2] + 1; tr < d {
					d = tr
				}
			}
			cur[j] = d
		}
		prev2, prev, cur = prev, cur, prev2
	}

	return prev[len(rb)]
}
