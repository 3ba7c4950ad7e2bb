package knowledge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"胰岛素如何注射", []string{"胰岛素", "注射"}},
		{"胰岛素怎么注射", []string{"胰岛素", "注射"}},
		{"今天天气如何", []string{"今天天气"}},
		{"空腹血糖偏高怎么办", []string{"空腹血糖", "偏高"}},
		{"的", nil},
		{"hello world 123", nil},
		{"血糖，血糖；血糖", []string{"血糖"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractKeywords(tc.text), "text %q", tc.text)
	}
}

func TestExtractKeywords_Cap(t *testing.T) {
	var b strings.Builder
	for r := rune(0x5000); r < 0x5000+48; r++ {
		b.WriteRune(r)
	}
	kws := ExtractKeywords(b.String())
	assert.Len(t, kws, maxAutoKeywords)
	for _, kw := range kws {
		assert.Len(t, []rune(kw), 4)
	}
}

func TestChunk(t *testing.T) {
	assert.Equal(t, []string{"一二三四", "五六"}, chunk("一二三四五六"))
	assert.Equal(t, []string{"一二三四"}, chunk("一二三四五"))
	assert.Nil(t, chunk("一"))
}

func TestMergeKeywords(t *testing.T) {
	merged := mergeKeywords([]string{"胰岛素", "注射"}, []string{"注射", "剂量"})
	assert.Equal(t, []string{"胰岛素", "注射", "剂量"}, merged)

	var auto []string
	for i := 0; i < 20; i++ {
		auto = append(auto, fmt.Sprintf("词%d", i))
	}
	assert.Len(t, mergeKeywords([]string{"手动"}, auto), maxEntryKeywords)
	assert.Equal(t, "手动", mergeKeywords([]string{"手动"}, auto)[0])
}

func TestSplitKeywordList(t *testing.T) {
	assert.Equal(t, []string{"胰岛素", "剂量", "计算", "低血糖"},
		splitKeywordList(" 胰岛素,剂量，计算、低血糖,胰岛素 "))
	assert.Empty(t, splitKeywordList(" , ，"))
}
