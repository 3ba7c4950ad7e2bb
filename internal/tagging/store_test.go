package tagging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/zhitang/backend-go/internal/errors"
	"github.com/zhitang/backend-go/internal/models"
)

func newTestStore(keys ...string) (*Store, *memTagRepo) {
	repo := newMemTagRepo(keys...)
	store := NewStore(repo)
	store.logger = zap.NewNop()
	return store, repo
}

func TestStore_SetValidation(t *testing.T) {
	store, _ := newTestStore("age")
	ctx := context.Background()

	cases := []TagWrite{
		{UserID: 0, TagKey: "age", TagValue: "13", Source: models.TagSourceManual},
		{UserID: 1, TagKey: "", TagValue: "13", Source: models.TagSourceManual},
		{UserID: 1, TagKey: "age", TagValue: "", Source: models.TagSourceManual},
		{UserID: 1, TagKey: "age", TagValue: "13", Source: "guess"},
		{UserID: 1, TagKey: "age", TagValue: "13", Source: models.TagSourceManual, Confidence: 1.5},
	}
	for _, w := range cases {
		res := store.Set(ctx, w)
		assert.False(t, res.Success, "%+v", w)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, res.Code)
	}
}

func TestStore_RejectsUnknownAndInactive(t *testing.T) {
	store, repo := newTestStore("age")
	repo.defs["city"] = models.UserTagDefinition{TagKey: "city", IsActive: false}
	ctx := context.Background()

	res := store.Set(ctx, TagWrite{UserID: 1, TagKey: "weight", TagValue: "60", Source: models.TagSourceManual, Confidence: 1})
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.ErrCodeUnknownTag, res.Code)

	res = store.Set(ctx, TagWrite{UserID: 1, TagKey: "city", TagValue: "杭州", Source: models.TagSourceManual, Confidence: 1})
	assert.False(t, res.Success)
	assert.Equal(t, 0, repo.historyCount())
}

func TestStore_HistoryOnlyOnChange(t *testing.T) {
	store, repo := newTestStore("age")
	ctx := context.Background()
	w := TagWrite{UserID: 1, TagKey: "age", TagValue: "13", Source: models.TagSourceAIExtract, Confidence: 0.9, ConversationID: "c1"}

	first := store.Set(ctx, w)
	require.True(t, first.Success)
	assert.True(t, first.Changed)

	second := store.Set(ctx, w)
	require.True(t, second.Success)
	assert.False(t, second.Changed)
	assert.Equal(t, 1, repo.historyCount())
	assert.Equal(t, "c1", repo.history[0].ConversationID)
}

func TestStore_AutoSync(t *testing.T) {
	store, repo := newTestStore("age", "city")
	def := repo.defs["city"]
	def.IsCozeSynced = false
	repo.defs["city"] = def
	engine := &fakeEngine{}
	store.SetEngine(engine)
	ctx := context.Background()

	store.Set(ctx, TagWrite{UserID: 1, TagKey: "age", TagValue: "13", Source: models.TagSourceManual, Confidence: 1})
	assert.Empty(t, engine.users)

	store.Set(ctx, TagWrite{UserID: 1, TagKey: "age", TagValue: "14", Source: models.TagSourceManual, Confidence: 1, AutoSync: true})
	assert.Equal(t, []int64{1}, engine.users)

	store.Set(ctx, TagWrite{UserID: 1, TagKey: "city", TagValue: "杭州", Source: models.TagSourceManual, Confidence: 1, AutoSync: true})
	assert.Equal(t, []int64{1}, engine.users)
}

func TestStore_BatchSetAndSnapshot(t *testing.T) {
	store, repo := newTestStore("age", "gender", "reminder_enabled")
	def := repo.defs["reminder_enabled"]
	def.DefaultValue = "true"
	repo.defs["reminder_enabled"] = def
	ctx := context.Background()

	n := store.BatchSet(ctx, 5, map[string]string{"age": "30", "gender": "女", "weight": "60"}, models.TagSourceOnboarding)
	assert.Equal(t, 2, n)

	tags, err := store.UserTags(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"age": "30", "gender": "女", "reminder_enabled": "true"}, tags)
}
