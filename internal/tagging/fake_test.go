package tagging

import (
	"context"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/zhitang/backend-go/internal/llm"
	"github.com/zhitang/backend-go/internal/models"
)

// memChatRepo 内存版对话仓库
type memChatRepo struct {
	messages []models.ChatMessage
	err      error
}

func (r *memChatRepo) GetDB() *gorm.DB { return nil }

func (r *memChatRepo) RecentUserMessages(_ context.Context, since time.Time, minLen int) ([]models.ChatMessage, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.ChatMessage
	for _, m := range r.messages {
		if m.Role == models.RoleUser && !m.CreatedAt.Before(since) && utf8.RuneCountInString(m.Content) > minLen {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memChatRepo) ConversationUserMessages(_ context.Context, userID int64, conversationID string) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	for _, m := range r.messages {
		if m.UserID == userID && m.ConversationID == conversationID && m.Role == models.RoleUser {
			out = append(out, m)
		}
	}
	return out, nil
}

// memTagRepo 内存版标签仓库
type memTagRepo struct {
	mu      sync.Mutex
	defs    map[string]models.UserTagDefinition
	values  map[int64]map[string]models.UserTagValue
	history []models.UserTagHistory
}

func newMemTagRepo(keys ...string) *memTagRepo {
	r := &memTagRepo{
		defs:   make(map[string]models.UserTagDefinition),
		values: make(map[int64]map[string]models.UserTagValue),
	}
	for i, k := range keys {
		r.defs[k] = models.UserTagDefinition{TagKey: k, TagName: k, IsActive: true, IsCozeSynced: true, SortOrder: i}
	}
	return r
}

func (r *memTagRepo) GetDB() *gorm.DB { return nil }

func (r *memTagRepo) GetDefinition(_ context.Context, key string) (*models.UserTagDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[key]
	if !ok {
		return nil, nil
	}
	return &def, nil
}

func (r *memTagRepo) ListDefinitions(_ context.Context) ([]models.UserTagDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.UserTagDefinition
	for _, d := range r.defs {
		if d.IsActive {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *memTagRepo) SetValue(_ context.Context, v models.UserTagValue, conversationID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userValues, ok := r.values[v.UserID]
	if !ok {
		userValues = make(map[string]models.UserTagValue)
		r.values[v.UserID] = userValues
	}
	current, exists := userValues[v.TagKey]
	changed := !exists || current.TagValue != v.TagValue
	userValues[v.TagKey] = v
	if changed {
		r.history = append(r.history, models.UserTagHistory{
			UserID: v.UserID, TagKey: v.TagKey, TagValue: v.TagValue,
			Source: v.Source, ConversationID: conversationID, UpdatedAt: v.UpdatedAt,
		})
	}
	return changed, nil
}

func (r *memTagRepo) ListValues(_ context.Context, userID int64) ([]models.UserTagValue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.UserTagValue
	for _, v := range r.values[userID] {
		out = append(out, v)
	}
	return out, nil
}

func (r *memTagRepo) HasRecentExtraction(_ context.Context, conversationID, source string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.history {
		if h.ConversationID == conversationID && h.Source == source && h.UpdatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memTagRepo) historyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// fakeExtractor 固定返回标签
type fakeExtractor struct {
	mu    sync.Mutex
	tags  []llm.TagSpec
	err   error
	calls []string
}

func (f *fakeExtractor) ExtractTags(_ context.Context, _ int64, text string) ([]llm.TagSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	return f.tags, f.err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeEngine 记录同步次数
type fakeEngine struct {
	mu    sync.Mutex
	users []int64
	err   error
}

func (e *fakeEngine) SyncUserTags(_ context.Context, userID int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.users = append(e.users, userID)
	return e.err == nil, e.err
}

func (e *fakeEngine) Close() error { return nil }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
