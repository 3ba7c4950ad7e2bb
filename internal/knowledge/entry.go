package knowledge

// Origin 条目来源
const (
	OriginFile     = "file"
	OriginDatabase = "db"
)

// Entry 知识库问答条目
type Entry struct {
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Source         string   `json:"source"`
	Category       string   `json:"category,omitempty"`
	Keywords       []string `json:"keywords"`
	ManualKeywords []string `json:"manual_keywords"`
	AutoKeywords   []string `json:"auto_keywords"`

	// 数据库条目才有
	DBID      int64 `json:"db_id,omitempty"`
	ViewCount int64 `json:"view_count,omitempty"`
	LikeCount int64 `json:"like_count,omitempty"`
	IsManual  bool  `json:"is_manual,omitempty"`

	origin string
}

// newEntry 构建条目，auto 为空时从问题和答案中提取
func newEntry(question, answer, source string, manual, auto []string) Entry {
	if len(auto) == 0 {
		auto = ExtractKeywords(question + " " + answer)
	}
	return Entry{
		Question:       question,
		Answer:         answer,
		Source:         source,
		Keywords:       mergeKeywords(manual, auto),
		ManualKeywords: manual,
		AutoKeywords:   auto,
		origin:         OriginFile,
	}
}

// Origin 条目来源，file 或 db
func (e Entry) Origin() string {
	return e.origin
}
