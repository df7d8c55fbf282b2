package classify

import (
	"golang.org/x/text/language"

	"github.com/fluffyriot/lunchsync/internal/textmatch"
)

// Classification says whether a post announces lunch.
type Classification string

const (
	LunchPost       Classification = "lunch_post"
	MissingKeywords Classification = "missing_keywords"
)

// Keyword is a configured search term with its own edit-distance budget.
type Keyword struct {
	Text         string
	EditDistance int
}

type Classifier struct {
	matcher  *textmatch.Matcher
	keywords []Keyword
}

func NewClassifier(locale language.Tag, keywords []Keyword) *Classifier {
	return &Classifier{
		matcher:  textmatch.NewMatcher(locale),
		keywords: keywords,
	}
}

// Classify returns LunchPost when any word of the content matches any
// keyword within that keyword's budget. No I/O, no side effects.
func (c *Classifier) Classify(content string) Classification {
	for _, word := range c.matcher.ExtractWords(content) {
		for _, kw := range c.keywords {
			if c.matcher.Matches(word, kw.Text, kw.EditDistance) {
				return LunchPost
			}
		}
	}
	return MissingKeywords
}
