package tagging

import (
	"sort"
	"strings"
	"time"

	"github.com/zhitang/backend-go/internal/models"
)

const (
	MinMessageLength = 10
	MinUserMessages  = 3
	MaxCandidates    = 50
	MaxContentRunes  = 1000
)

// Candidate 待提取标签的对话
type Candidate struct {
	UserID         int64     `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	MessageCount   int       `json:"message_count"`
	LastMessageAt  time.Time `json:"last_message_at"`
	Content        string    `json:"-"`
}

type conversationKey struct {
	userID         int64
	conversationID string
}

// SelectCandidates 按 (用户, 对话) 分组，保留至少 minMessages 条的对话，
// 按最后一条消息时间倒序，最多 limit 个；内容按时间拼接后保留末尾 maxRunes 个字符
func SelectCandidates(messages []models.ChatMessage, minMessages, limit, maxRunes int) []Candidate {
	groups := make(map[conversationKey][]models.ChatMessage)
	var order []conversationKey
	for _, m := range messages {
		key := conversationKey{userID: m.UserID, conversationID: m.ConversationID}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	candidates := make([]Candidate, 0, len(order))
	for _, key := range order {
		msgs := groups[key]
		if len(msgs) < minMessages {
			continue
		}
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
		candidates = append(candidates, Candidate{
			UserID:         key.userID,
			ConversationID: key.conversationID,
			MessageCount:   len(msgs),
			LastMessageAt:  msgs[len(msgs)-1].CreatedAt,
			Content:        JoinContent(msgs, maxRunes),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LastMessageAt.After(candidates[j].LastMessageAt)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// JoinContent 按换行拼接消息，保留末尾 maxRunes 个字符
func JoinContent(messages []models.ChatMessage, maxRunes int) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	content := strings.Join(parts, "\n")

	runes := []rune(content)
	if maxRunes > 0 && len(runes) > maxRunes {
		return string(runes[len(runes)-maxRunes:])
	}
	return content
}
