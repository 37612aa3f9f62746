package store

import (
	"sort"
	"strings"
)

// fuseSingleQuery combines one query's semantic and lexical candidate
// pools into ranked SearchResults via weighted reciprocal rank fusion:
//
//	score(d) = [d∈sem]·W_SEM/(K+rank_sem(d))
//	         + [d∈kw]·W_KW/(K+rank_kw(d))·(SECTION_BOOST if section_match else 1)
//
// A document missing from one modality contributes nothing for that
// term — there is no padding with a worst-case rank, and the final
// scores are not renormalized to [0,1]; they are compared, sorted, and
// returned as-is (see DESIGN.md).
func fuseSingleQuery(semantic, lexical []rankedDoc, queryTerms []string, topK int, fusion FusionParams) []SearchResult {
	type accum struct {
		doc          Document
		score        float64
		semanticRank *int
		keywordRank  *int
		sectionMatch bool
	}
	byID := make(map[string]*accum)
	var order []string

	get := func(doc Document) *accum {
		a, ok := byID[doc.ID]
		if !ok {
			a = &accum{doc: doc, sectionMatch: termInSection(queryTerms, doc.Section)}
			byID[doc.ID] = a
			order = append(order, doc.ID)
		}
		return a
	}

	for i, hit := range semantic {
		rank := i + 1
		a := get(hit.doc)
		a.semanticRank = &rank
		a.score += fusion.SemanticWeight / float64(fusion.RRFConstant+rank)
	}
	for i, hit := range lexical {
		rank := i + 1
		a := get(hit.doc)
		a.keywordRank = &rank
		boost := 1.0
		if a.sectionMatch {
			boost = fusion.SectionBoost
		}
		a.score += (fusion.KeywordWeight / float64(fusion.RRFConstant+rank)) * boost
	}

	results := make([]SearchResult, 0, len(order))
	for _, id := range order {
		a := byID[id]
		results = append(results, SearchResult{
			Document:     a.doc,
			Score:        a.score,
			SemanticRank: a.semanticRank,
			KeywordRank:  a.keywordRank,
			SectionMatch: a.sectionMatch,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func termInSection(queryTerms []string, section string) bool {
	if section == "" {
		return false
	}
	lowerSection := strings.ToLower(section)
	for _, term := range queryTerms {
		clean := strings.TrimRight(term, "*")
		if clean != "" && strings.Contains(lowerSection, clean) {
			return true
		}
	}
	return false
}
