// Package tokenize splits free text and identifiers into comparable terms.
package tokenize

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "all": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "each": {}, "find": {}, "for": {}, "from": {}, "get": {},
	"give": {}, "have": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "list": {},
	"many": {}, "me": {}, "much": {}, "of": {}, "on": {}, "or": {}, "per": {}, "please": {},
	"show": {}, "tell": {}, "than": {}, "that": {}, "the": {}, "their": {}, "there": {},
	"to": {}, "was": {}, "we": {}, "were": {}, "what": {}, "which": {}, "who": {}, "with": {},
}

// Words lowercases text and splits it on anything that is not a letter or digit.
// Identifiers such as customer_name split into their parts.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms returns stemmed words with stopwords removed, in input order.
func Terms(text string) []string {
	words := Words(text)
	out := make([]string, 0, len(words))
	for _, word := range words {
		if _, stop := stopwords[word]; stop {
			continue
		}
		out = append(out, Stem(word))
	}
	return out
}

// Stem folds simple English plurals so "orders" and "order" compare equal.
func Stem(word string) string {
	switch {
	case len(word) > 4 && strings.HasSuffix(word, "ies"):
		return strings.TrimSuffix(word, "ies") + "y"
	case len(word) > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && !strings.HasSuffix(word, "us"):
		return strings.TrimSuffix(word, "s")
	default:
		return word
	}
}
