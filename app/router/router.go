package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhitang/backend-go/app/controllers"
	"github.com/zhitang/backend-go/app/middleware"
	"github.com/zhitang/backend-go/internal/database"
	"github.com/zhitang/backend-go/internal/jobs"
	"github.com/zhitang/backend-go/internal/knowledge"
	"github.com/zhitang/backend-go/internal/tagging"
	"github.com/zhitang/backend-go/internal/tts"
	"github.com/zhitang/backend-go/internal/ttscache"
)

// Deps 路由依赖的服务
type Deps struct {
	Health         *database.HealthChecker
	TTS            *tts.Service
	Cache          *ttscache.Cache
	Maintenance    *jobs.Maintenance
	TTSDefaults    ttscache.Params
	Retriever      *knowledge.Retriever
	Scheduler      *tagging.Scheduler
	Tags           *tagging.Store
	AllowedOrigins []string
	Metrics        bool
}

// Init registers all routes. Must be called after config is loaded.
func Init(deps Deps) {
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORS(deps.AllowedOrigins))
	web.InsertFilter("/*", web.BeforeRouter, middleware.RequestID)
	web.InsertFilter("/*", web.FinishRouter, middleware.AccessLog, web.WithReturnOnOutput(false))

	web.Router("/health", &controllers.HealthController{Checker: deps.Health}, "get:Health")
	if deps.Metrics {
		web.Handler("/metrics", promhttp.Handler())
	}

	ttsController := &controllers.TTSController{
		Service:     deps.TTS,
		Cache:       deps.Cache,
		Maintenance: deps.Maintenance,
		Defaults:    deps.TTSDefaults,
	}
	web.Router("/api/tts/synthesize", ttsController, "post:Synthesize")
	web.Router("/api/tts/batch", ttsController, "post:Batch")
	web.Router("/api/tts/cache/stats", ttsController, "get:Stats")
	web.Router("/api/tts/cache/daily", ttsController, "get:Daily")
	web.Router("/api/tts/cache/similar", ttsController, "get:Similar")
	web.Router("/api/tts/cache/sweep", ttsController, "post:Sweep")

	knowledgeController := &controllers.KnowledgeController{Retriever: deps.Retriever}
	web.Router("/api/knowledge/search", knowledgeController, "get:Search")
	web.Router("/api/knowledge/answer", knowledgeController, "post:Answer")
	web.Router("/api/knowledge/stats", knowledgeController, "get:Stats")
	web.Router("/api/knowledge/reload", knowledgeController, "post:Reload")

	// 具体路由必须在参数路由之前
	tagController := &controllers.TagController{Scheduler: deps.Scheduler, Store: deps.Tags}
	web.Router("/api/tags/scheduler/status", tagController, "get:Status")
	web.Router("/api/tags/scheduler/start", tagController, "post:Start")
	web.Router("/api/tags/scheduler/stop", tagController, "post:Stop")
	web.Router("/api/tags/scheduler/tick", tagController, "post:Tick")
	web.Router("/api/tags/extract", tagController, "post:Extract")
	web.Router("/api/tags/definitions", tagController, "get:Definitions")
	web.Router("/api/tags/users/:user_id", tagController, "get:UserTags;post:SetTag")
}
