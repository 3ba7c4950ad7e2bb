package knowledge

import (
	"regexp"
	"strings"
)

const (
	maxAutoKeywords  = 10
	maxEntryKeywords = 15
	chunkRunes       = 4
	minChunkRunes    = 2
)

// 基本汉字区 [一-龥]
var chineseRun = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]+`)

// 停用词
var stopWords = map[string]struct{}{
	"的": {}, "了": {}, "在": {}, "是": {}, "我": {}, "有": {}, "和": {}, "就": {},
	"不": {}, "人": {}, "都": {}, "一": {}, "一个": {}, "上": {}, "也": {}, "很": {},
	"到": {}, "说": {}, "要": {}, "去": {}, "你": {}, "会": {}, "着": {}, "没有": {},
	"看": {}, "好": {}, "自己": {}, "这": {}, "为": {}, "什么": {}, "能": {}, "可以": {},
	"如何": {}, "怎么": {}, "如果": {}, "需要": {}, "应该": {},
}

// 多字停用词作为切分边界，"胰岛素如何注射" 切为 "胰岛素" 和 "注射"
var splitWords = []string{"一个", "没有", "自己", "什么", "可以", "如何", "怎么", "如果", "需要", "应该"}

// ExtractKeywords 提取中文关键词，最多10个，按出现顺序去重
func ExtractKeywords(text string) []string {
	var keywords []string
	seen := make(map[string]struct{})

	for _, run := range chineseRun.FindAllString(text, -1) {
		for _, segment := range splitAtStopWords(run) {
			for _, word := range chunk(segment) {
				if _, stop := stopWords[word]; stop {
					continue
				}
				if _, dup := seen[word]; dup {
					continue
				}
				seen[word] = struct{}{}
				keywords = append(keywords, word)
				if len(keywords) == maxAutoKeywords {
					return keywords
				}
			}
		}
	}
	return keywords
}

func splitAtStopWords(run string) []string {
	segments := []string{run}
	for _, word := range splitWords {
		var next []string
		for _, seg := range segments {
			for _, part := range strings.Split(seg, word) {
				if part != "" {
					next = append(next, part)
				}
			}
		}
		segments = next
	}
	return segments
}

// chunk 每4个字切一段，不足2个字的尾巴丢弃
func chunk(segment string) []string {
	runes := []rune(segment)
	var words []string
	for start := 0; start < len(runes); start += chunkRunes {
		end := start + chunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		if end-start >= minChunkRunes {
			words = append(words, string(runes[start:end]))
		}
	}
	return words
}

// mergeKeywords 手动关键词在前，合并后最多15个
func mergeKeywords(manual, auto []string) []string {
	merged := make([]string, 0, len(manual)+len(auto))
	seen := make(map[string]struct{})
	for _, list := range [][]string{manual, auto} {
		for _, kw := range list {
			if _, dup := seen[kw]; dup || kw == "" {
				continue
			}
			seen[kw] = struct{}{}
			merged = append(merged, kw)
			if len(merged) == maxEntryKeywords {
				return merged
			}
		}
	}
	return merged
}

// splitKeywordList 解析 "胰岛素,剂量、计算" 这类列表
func splitKeywordList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '，' || r == '、'
	})
	var out []string
	seen := make(map[string]struct{})
	for _, f := range fields {
		f = strings.TrimSpace(strings.ReplaceAll(f, "**", ""))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
