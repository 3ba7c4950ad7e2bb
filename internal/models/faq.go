package models

// FAQ 状态
const (
	FAQStatusActive   = 1
	FAQStatusDisabled = 0
)

// 关键词类型
const (
	KeywordTypeManual = "manual"
	KeywordTypeAuto   = "auto"
)

// FAQ 常见问题表
type FAQ struct {
	ID          int64  `gorm:"primaryKey;column:id" json:"id"`
	Question    string `gorm:"column:question;type:text;not null" json:"question"`
	Answer      string `gorm:"column:answer;type:text;not null" json:"answer"`
	Category    string `gorm:"column:category;size:64" json:"category"`
	Source      string `gorm:"column:source;size:128" json:"source"`
	Status      int    `gorm:"column:status;not null;default:1;index" json:"status"`
	SortOrder   int    `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	ViewCount   int64  `gorm:"column:view_count;not null;default:0" json:"view_count"`
	LikeCount   int64  `gorm:"column:like_count;not null;default:0" json:"like_count"`
	IsManual    bool   `gorm:"column:is_manual;not null;default:false" json:"is_manual"`
	Description string `gorm:"column:description;type:text" json:"description"`

	Keys []FAQKey `gorm:"foreignKey:FAQID" json:"keys,omitempty"`
}

func (FAQ) TableName() string {
	return "faq_list"
}

// FAQKey FAQ关键词
type FAQKey struct {
	ID          int64   `gorm:"primaryKey;column:id" json:"id"`
	FAQID       int64   `gorm:"column:faq_id;not null;index" json:"faq_id"`
	Keyword     string  `gorm:"column:keyword;size:64;not null" json:"keyword"`
	KeywordType string  `gorm:"column:keyword_type;size:16;not null" json:"keyword_type"`
	Weight      float64 `gorm:"column:weight;not null;default:1" json:"weight"`
}

func (FAQKey) TableName() string {
	return "faq_list_keys"
}
