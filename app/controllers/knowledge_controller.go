package controllers

import (
	"net/http"
	"strings"

	"github.com/zhitang/backend-go/internal/knowledge"
)

// KnowledgeController 知识库问答
type KnowledgeController struct {
	BaseController
	Retriever *knowledge.Retriever
}

type answerRequest struct {
	Question string `json:"question" validate:"required"`
	TopK     int    `json:"top_k" validate:"omitempty,min=1,max=20"`
	UseLLM   *bool  `json:"use_llm"`
}

// Search GET /api/knowledge/search?q=&top_k=&min_similarity=
func (c *KnowledgeController) Search() {
	q := strings.TrimSpace(c.GetString("q"))
	if q == "" {
		c.JSONError(http.StatusBadRequest, "缺少查询参数 q")
		return
	}
	topK := c.queryInt("top_k", knowledge.DefaultTopK)
	if topK <= 0 || topK > 20 {
		topK = knowledge.DefaultTopK
	}
	minSimilarity := c.queryFloat("min_similarity", knowledge.DefaultMinSimilarity)

	results := c.Retriever.Search(q, topK, minSimilarity)
	c.JSONSuccess(map[string]interface{}{
		"query":   q,
		"total":   len(results),
		"results": results,
	})
}

// Answer POST /api/knowledge/answer
func (c *KnowledgeController) Answer() {
	var req answerRequest
	if !c.bindJSON(&req) {
		return
	}
	useLLM := true
	if req.UseLLM != nil {
		useLLM = *req.UseLLM
	}
	c.JSONSuccess(c.Retriever.Answer(c.Ctx.Request.Context(), strings.TrimSpace(req.Question), req.TopK, useLLM))
}

// Stats GET /api/knowledge/stats
func (c *KnowledgeController) Stats() {
	c.JSONSuccess(c.Retriever.Stats())
}

// Reload POST /api/knowledge/reload
func (c *KnowledgeController) Reload() {
	if err := c.Retriever.Reload(c.Ctx.Request.Context()); err != nil {
		c.JSONError(http.StatusInternalServerError, "知识库重新加载失败: "+err.Error())
		return
	}
	c.JSONSuccess(c.Retriever.Stats())
}
