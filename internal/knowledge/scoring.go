package knowledge

import (
	"strings"
)

const (
	jaccardWeight   = 0.5
	frequencyWeight = 0.3
	manualBonusCap  = 0.2
	manualBonusRate = 0.3
	keywordHitBoost = 0.15
	questionWeight  = 0.7
	answerWeight    = 0.3
)

// keywordSet 关键词集合
type keywordSet map[string]struct{}

func newKeywordSet(words ...[]string) keywordSet {
	set := make(keywordSet)
	for _, list := range words {
		for _, w := range list {
			set[w] = struct{}{}
		}
	}
	return set
}

func (s keywordSet) intersect(other keywordSet) int {
	n := 0
	for w := range s {
		if _, ok := other[w]; ok {
			n++
		}
	}
	return n
}

// similarity 查询关键词与一段文本的相似度，结果在 [0,1]
// jaccard*0.5 + 出现频率*0.3 + 手动关键词加分(最多0.2)
func similarity(query keywordSet, text string, manual keywordSet) float64 {
	if len(query) == 0 {
		return 0
	}

	textKeywords := newKeywordSet(ExtractKeywords(text))
	for w := range manual {
		textKeywords[w] = struct{}{}
	}

	inter := query.intersect(textKeywords)
	union := len(query) + len(textKeywords) - inter
	var jaccard float64
	if union > 0 {
		jaccard = float64(inter) / float64(union)
	}

	lower := strings.ToLower(text)
	matches := 0
	for w := range query {
		if strings.Contains(lower, w) {
			matches++
		}
	}
	frequency := float64(matches) / float64(len(query))

	var bonus float64
	if len(manual) > 0 {
		if hits := query.intersect(manual); hits > 0 {
			bonus = float64(hits) / float64(len(query)) * manualBonusRate
			if bonus > manualBonusCap {
				bonus = manualBonusCap
			}
		}
	}

	return clamp01(jaccard*jaccardWeight + frequency*frequencyWeight + bonus)
}

// scoreEntry 计算综合相似度，问题权重0.7，答案权重0.3
// 命中手动关键词时问题相似度额外加0.15
func scoreEntry(queryWords []string, query keywordSet, entry Entry) SearchResult {
	manual := newKeywordSet(entry.ManualKeywords)

	simQ := similarity(query, entry.Question, manual)
	simA := similarity(query, entry.Answer, manual)

	keywordHit := len(manual) > 0 && query.intersect(manual) > 0
	var matched []string
	if keywordHit {
		simQ = clamp01(simQ + keywordHitBoost)
		all := newKeywordSet(entry.Keywords, entry.ManualKeywords)
		for _, w := range queryWords {
			if _, ok := all[w]; ok {
				matched = append(matched, w)
			}
		}
	}

	return SearchResult{
		Question:        entry.Question,
		Answer:          entry.Answer,
		Similarity:      simQ*questionWeight + simA*answerWeight,
		Source:          entry.Source,
		Category:        entry.Category,
		KeywordHit:      keywordHit,
		MatchedKeywords: matched,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
