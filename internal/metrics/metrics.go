package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "zhitang"

var (
	// TTSCacheRequests 缓存请求，result: hit / miss
	TTSCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_cache_requests_total",
			Help:      "TTS cache lookups by result",
		},
		[]string{"result"},
	)

	// TTSCacheErrors 缓存降级次数
	TTSCacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_cache_errors_total",
			Help:      "TTS cache repository errors degraded to miss or empty",
		},
		[]string{"operation"},
	)

	// TTSSynthesisDuration 引擎合成耗时
	TTSSynthesisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tts_synthesis_duration_seconds",
			Help:      "TTS engine synthesis latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// KnowledgeEntries 知识库条目数
	KnowledgeEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_entries",
			Help:      "Loaded knowledge entries by origin",
		},
		[]string{"origin"},
	)

	// KnowledgeSearchDuration 检索耗时
	KnowledgeSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "knowledge_search_duration_seconds",
			Help:      "Knowledge search latency",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	// KnowledgeSearches 检索次数，result: found / empty / cached
	KnowledgeSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_searches_total",
			Help:      "Knowledge searches by result",
		},
		[]string{"result"},
	)

	// TagTicks 调度轮次，status: ok / error
	TagTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_scheduler_ticks_total",
			Help:      "Tag extraction scheduler ticks",
		},
		[]string{"status"},
	)

	// TagConversationsProcessed 已处理对话数
	TagConversationsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_conversations_processed_total",
			Help:      "Conversations processed by tag extraction",
		},
	)

	// TagConversationsSkipped 因去抖跳过的对话数
	TagConversationsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_conversations_skipped_total",
			Help:      "Conversations skipped by the debounce window",
		},
	)

	// TagsWritten 写入的标签数
	TagsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tags_written_total",
			Help:      "Tags successfully written by extraction",
		},
	)

	// LLMRequests 大模型调用，operation: extract_tags / chat
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// AgentSyncs 标签同步，status: ok / error
	AgentSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_tag_syncs_total",
			Help:      "Agent tag snapshot syncs",
		},
		[]string{"status"},
	)

	// MaintenanceRuns 维护任务，job: sweep / daily_stats
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_runs_total",
			Help:      "Maintenance job runs",
		},
		[]string{"job", "status"},
	)
)

// Status 将错误转换为状态标签
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
