package store

import (
	"regexp"
	"strings"
)

var quotedPhrasePattern = regexp.MustCompile(`"([^"]+)"`)
var nonWordPattern = regexp.MustCompile(`[^\w-]+`)

// buildFTSQuery translates free-text query_text into an FTS5 MATCH
// expression and the flat list of non-stopword terms used later for
// section-match detection:
//
//  1. Quoted phrases are extracted verbatim, stop words inside them
//     dropped, and re-quoted as FTS5 phrase queries.
//  2. The remaining text is lowercased, split on whitespace, and stop
//     words and single-character tokens are dropped; terms of length >= 3
//     get a trailing '*' prefix wildcard, terms of length 2 are left
//     exact.
//  3. All parts are joined with OR. An all-stopword query yields an empty
//     string, signaling "skip lexical ranking".
func buildFTSQuery(queryText string) (string, []string) {
	var parts []string
	var terms []string

	remainder := quotedPhrasePattern.ReplaceAllStringFunc(queryText, func(match string) string {
		phrase := quotedPhrasePattern.FindStringSubmatch(match)[1]
		words := strings.Fields(phrase)
		kept := words[:0]
		for _, w := range words {
			lw := strings.ToLower(w)
			if _, stop := stopWords[lw]; stop {
				continue
			}
			kept = append(kept, lw)
			terms = append(terms, lw)
		}
		if len(kept) > 0 {
			parts = append(parts, `"`+strings.Join(kept, " ")+`"`)
		}
		return " "
	})

	for _, word := range strings.Fields(remainder) {
		lw := strings.ToLower(nonWordPattern.ReplaceAllString(word, ""))
		if lw == "" {
			continue
		}
		if _, stop := stopWords[lw]; stop {
			continue
		}
		if len(lw) < 2 {
			continue
		}
		terms = append(terms, lw)
		if len(lw) >= 3 {
			parts = append(parts, lw+"*")
		} else {
			parts = append(parts, lw)
		}
	}

	if len(parts) == 0 {
		return "", terms
	}
	return strings.Join(parts, " OR "), terms
}
