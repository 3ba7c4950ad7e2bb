package knowledge

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/zhitang/backend-go/internal/errors"
)

var (
	blockHeader   = regexp.MustCompile(`###\s*问答\s*\d+\s*\n`)
	questionLabel = regexp.MustCompile(`\*\*问题[：:]\*\*`)
	answerLabel   = regexp.MustCompile(`\*\*答案[：:]\*\*`)

	// 问题截止于答案或关键词行
	questionEnd = regexp.MustCompile(`\n\s*\*\*(答案|关键词|标签)[：:]?`)
	// 答案截止于关键词或下一个问题
	answerEnd = regexp.MustCompile(`\n\s*(\*\*(关键词|标签|问题)[：:]?|(?i:keywords)[：:])`)

	keywordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\*\*关键词[：:]\*\*\s*([^\n]+)`),
		regexp.MustCompile(`\*\*标签[：:]\*\*\s*([^\n]+)`),
		regexp.MustCompile(`(?i)keywords[：:]\s*([^\n]+)`),
	}
)

// ParseMarkdown 解析知识库文档
// 优先按 "### 问答 N" 分块；整篇没有分块时按 **问题：** ... **答案：** 配对解析。
// 缺少问题或答案的块记录警告后跳过。
func ParseMarkdown(content, source string, log *zap.Logger) []Entry {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	blocks := splitBlocks(content)
	if len(blocks) > 0 {
		var entries []Entry
		for i, block := range blocks {
			question := extractField(block, questionLabel, questionEnd)
			answer := extractField(block, answerLabel, answerEnd)
			if question == "" || answer == "" {
				err := apperrors.NewBusinessError(apperrors.ErrCodeInvalidFileFormat, "问答块缺少问题或答案")
				log.Warn("跳过无效问答块",
					zap.String("source", source),
					zap.Int("block", i+1),
					zap.Bool("has_question", question != ""),
					zap.Bool("has_answer", answer != ""),
					zap.Error(err))
				continue
			}
			entries = append(entries, newEntry(question, answer, source, manualKeywords(block), nil))
		}
		return entries
	}

	return parsePairs(content, source)
}

// splitBlocks 每块从标题之后开始，到 "\n---"、下一个 "###" 或文件末尾结束
func splitBlocks(content string) []string {
	locs := blockHeader.FindAllStringIndex(content, -1)
	blocks := make([]string, 0, len(locs))
	for _, loc := range locs {
		body := content[loc[1]:]
		end := len(body)
		if i := strings.Index(body, "\n---"); i >= 0 && i < end {
			end = i
		}
		if i := strings.Index(body, "\n###"); i >= 0 && i < end {
			end = i
		}
		if i := strings.Index(body, "###"); i == 0 {
			end = 0
		}
		blocks = append(blocks, body[:end])
	}
	return blocks
}

// parsePairs 宽松模式，不要求标题
func parsePairs(content, source string) []Entry {
	starts := questionLabel.FindAllStringIndex(content, -1)
	var entries []Entry
	for i, loc := range starts {
		end := len(content)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		segment := content[loc[0]:end]
		if j := strings.Index(segment, "\n---"); j >= 0 {
			segment = segment[:j]
		}
		if j := strings.Index(segment, "\n###"); j >= 0 {
			segment = segment[:j]
		}

		answerLoc := answerLabel.FindStringIndex(segment)
		if answerLoc == nil {
			continue
		}
		question := cleanText(segment[len(questionLabel.FindString(segment)):answerLoc[0]])
		answer := segment[answerLoc[1]:]
		if m := answerEnd.FindStringIndex(answer); m != nil {
			answer = answer[:m[0]]
		}
		answer = cleanText(answer)
		if question == "" || answer == "" {
			continue
		}
		entries = append(entries, newEntry(question, answer, source, manualKeywords(segment), nil))
	}
	return entries
}

func extractField(block string, label, terminator *regexp.Regexp) string {
	loc := label.FindStringIndex(block)
	if loc == nil {
		return ""
	}
	rest := block[loc[1]:]
	if m := terminator.FindStringIndex(rest); m != nil {
		rest = rest[:m[0]]
	}
	return cleanText(rest)
}

// manualKeywords 取第一个出现的关键词标记
func manualKeywords(block string) []string {
	for _, pattern := range keywordPatterns {
		if m := pattern.FindStringSubmatch(block); m != nil {
			if kws := splitKeywordList(m[1]); len(kws) > 0 {
				return kws
			}
		}
	}
	return nil
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}
