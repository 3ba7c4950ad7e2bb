package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/metrics"
	"github.com/zhitang/backend-go/internal/repository"
)

const (
	DefaultTopK          = 3
	DefaultMinSimilarity = 0.1

	// NoAnswer 知识库无结果时的回复
	NoAnswer = "抱歉，我在知识库中没有找到相关信息。"

	memoTTL     = 10 * time.Minute
	memoCleanup = 20 * time.Minute
	chatTimeout = 30 * time.Second
)

// SearchResult 检索结果
type SearchResult struct {
	Question        string   `json:"question"`
	Answer          string   `json:"answer"`
	Similarity      float64  `json:"similarity"`
	Source          string   `json:"source"`
	Category        string   `json:"category,omitempty"`
	KeywordHit      bool     `json:"keyword_hit"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// AnswerResult 问答结果
type AnswerResult struct {
	Success       bool           `json:"success"`
	Answer        string         `json:"answer"`
	KnowledgeUsed []SearchResult `json:"knowledge_used"`
	Confidence    float64        `json:"confidence"`
	Source        string         `json:"source,omitempty"`
}

// Stats 知识库统计
type Stats struct {
	Loaded            bool           `json:"loaded"`
	TotalQA           int            `json:"total_qa"`
	Sources           map[string]int `json:"sources"`
	KnowledgeBasePath string         `json:"knowledge_base_path"`
}

// ChatLLM 生成答案用的对话模型
type ChatLLM interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Retriever 知识库问答检索
type Retriever struct {
	// 串行化 Reload，避免较早的加载覆盖较新的索引
	reloadMu sync.Mutex

	mu      sync.RWMutex
	entries []Entry
	loaded  bool

	loader *Loader
	llm    ChatLLM
	memo   *cache.Cache
	logger *zap.Logger
}

// RetrieverOption 检索器选项
type RetrieverOption func(*Retriever)

// WithChatLLM 启用大模型生成答案
func WithChatLLM(llm ChatLLM) RetrieverOption {
	return func(r *Retriever) { r.llm = llm }
}

// WithRetrieverLogger 指定日志
func WithRetrieverLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever 创建检索器并加载知识库
// 单个来源加载失败只记录日志，不影响另一来源
func NewRetriever(ctx context.Context, dir string, faqs repository.FAQRepository, loadFromDB bool, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		memo:   cache.New(memoTTL, memoCleanup),
		logger: logger.Named("knowledge"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.loader = NewLoader(dir, faqs, loadFromDB, r.logger)

	if err := r.Reload(ctx); err != nil {
		r.logger.Warn("知识库部分来源加载失败", zap.Error(err))
	}
	return r
}

// Reload 重建索引并清空检索缓存
func (r *Retriever) Reload(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	entries, err := r.loader.Load(ctx)

	r.mu.Lock()
	r.entries = entries
	r.loaded = true
	r.mu.Unlock()
	r.memo.Flush()

	var files, db int
	for _, e := range entries {
		if e.origin == OriginDatabase {
			db++
		} else {
			files++
		}
	}
	metrics.KnowledgeEntries.WithLabelValues(OriginFile).Set(float64(files))
	metrics.KnowledgeEntries.WithLabelValues(OriginDatabase).Set(float64(db))

	r.logger.Info("知识库加载完成",
		zap.Int("total", len(entries)),
		zap.Int("from_files", files),
		zap.Int("from_db", db))
	return err
}

// Search 检索最相关的 topK 条，相似度低于阈值的丢弃
func (r *Retriever) Search(query string, topK int, minSimilarity float64) []SearchResult {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minSimilarity < 0 {
		minSimilarity = DefaultMinSimilarity
	}

	memoKey := fmt.Sprintf("%s|%d|%g", query, topK, minSimilarity)
	if cached, ok := r.memo.Get(memoKey); ok {
		metrics.KnowledgeSearches.WithLabelValues("cached").Inc()
		return cloneResults(cached.([]SearchResult))
	}

	start := time.Now()
	results := r.rank(query, topK, minSimilarity)
	metrics.KnowledgeSearchDuration.Observe(time.Since(start).Seconds())

	if len(results) == 0 {
		metrics.KnowledgeSearches.WithLabelValues("empty").Inc()
	} else {
		metrics.KnowledgeSearches.WithLabelValues("found").Inc()
	}
	r.memo.Set(memoKey, cloneResults(results), cache.DefaultExpiration)
	return results
}

// cloneResults 缓存中的结果与调用方互不共享
func cloneResults(results []SearchResult) []SearchResult {
	out := make([]SearchResult, len(results))
	for i, res := range results {
		res.MatchedKeywords = append([]string(nil), res.MatchedKeywords...)
		out[i] = res
	}
	return out
}

func (r *Retriever) rank(query string, topK int, minSimilarity float64) []SearchResult {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	queryWords := ExtractKeywords(query)
	if len(queryWords) == 0 || len(entries) == 0 {
		return []SearchResult{}
	}
	querySet := newKeywordSet(queryWords)

	scored := make([]SearchResult, 0, len(entries))
	for _, entry := range entries {
		scored = append(scored, scoreEntry(queryWords, querySet, entry))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	results := make([]SearchResult, 0, topK)
	for _, res := range scored {
		if res.Similarity < minSimilarity {
			continue
		}
		results = append(results, res)
		if len(results) == topK {
			break
		}
	}
	return results
}

// Answer 回答问题；useLLM 时以检索结果为依据调用大模型，失败则退回最佳答案
func (r *Retriever) Answer(ctx context.Context, question string, topK int, useLLM bool) AnswerResult {
	results := r.Search(question, topK, DefaultMinSimilarity)
	if len(results) == 0 {
		return AnswerResult{
			Success:       false,
			Answer:        NoAnswer,
			KnowledgeUsed: []SearchResult{},
		}
	}

	best := results[0]
	answer := best.Answer
	if useLLM && r.llm != nil {
		generated, err := r.generate(ctx, question, results)
		if err != nil {
			r.logger.Warn("大模型生成答案失败，使用知识库答案", zap.Error(err))
		} else if generated != "" {
			answer = generated
		}
	}

	return AnswerResult{
		Success:       true,
		Answer:        answer,
		KnowledgeUsed: results,
		Confidence:    best.Similarity,
		Source:        best.Source,
	}
}

const groundedSystemPrompt = "你是智糖小助手，一名专业、耐心的糖尿病健康管理助手。" +
	"请只根据提供的知识库内容回答用户问题，语言简洁易懂；知识库没有覆盖的内容请如实说明，并建议咨询医生。"

func (r *Retriever) generate(ctx context.Context, question string, results []SearchResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	var b strings.Builder
	b.WriteString("知识库内容：\n")
	for i, res := range results {
		fmt.Fprintf(&b, "%d. 问题：%s\n   答案：%s\n", i+1, res.Question, res.Answer)
	}
	fmt.Fprintf(&b, "\n用户问题：%s", question)

	answer, err := r.llm.Chat(ctx, groundedSystemPrompt, b.String())
	return strings.TrimSpace(answer), err
}

// Stats 知识库统计
func (r *Retriever) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make(map[string]int)
	for _, e := range r.entries {
		sources[e.Source]++
	}
	return Stats{
		Loaded:            r.loaded,
		TotalQA:           len(r.entries),
		Sources:           sources,
		KnowledgeBasePath: r.loader.Dir(),
	}
}

// Entries 当前索引快照
func (r *Retriever) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
