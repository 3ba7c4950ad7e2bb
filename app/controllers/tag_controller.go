package controllers

import (
	"net/http"

	"github.com/zhitang/backend-go/internal/models"
	"github.com/zhitang/backend-go/internal/tagging"
)

// TagController 用户标签与提取调度
type TagController struct {
	BaseController
	Scheduler *tagging.Scheduler
	Store     *tagging.Store
}

type extractRequest struct {
	UserID         int64  `json:"user_id" validate:"required,gt=0"`
	ConversationID string `json:"conversation_id" validate:"required,max=64"`
}

type setTagRequest struct {
	TagKey     string  `json:"tag_key" validate:"required"`
	TagValue   string  `json:"tag_value" validate:"required"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	AutoSync   bool    `json:"auto_sync"`
}

// Status GET /api/tags/scheduler/status
func (c *TagController) Status() {
	c.JSONSuccess(c.Scheduler.Status())
}

// Start POST /api/tags/scheduler/start
func (c *TagController) Start() {
	c.Scheduler.Start()
	c.JSONSuccess(c.Scheduler.Status())
}

// Stop POST /api/tags/scheduler/stop
func (c *TagController) Stop() {
	c.Scheduler.Stop()
	c.JSONSuccess(c.Scheduler.Status())
}

// Tick POST /api/tags/scheduler/tick
func (c *TagController) Tick() {
	res, err := c.Scheduler.Tick(c.Ctx.Request.Context())
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(res)
}

// Extract POST /api/tags/extract
func (c *TagController) Extract() {
	var req extractRequest
	if !c.bindJSON(&req) {
		return
	}
	res := c.Scheduler.ProcessOne(c.Ctx.Request.Context(), req.UserID, req.ConversationID)
	if !res.Success {
		status := http.StatusUnprocessableEntity
		if res.Message == tagging.NotFoundMessage {
			status = http.StatusNotFound
		}
		c.JSON(status, map[string]interface{}{"success": false, "error": res.Message})
		return
	}
	c.JSONSuccess(res)
}

// UserTags GET /api/tags/users/:user_id
func (c *TagController) UserTags() {
	userID, ok := c.pathInt64("user_id")
	if !ok {
		return
	}
	tags, err := c.Store.UserTags(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"user_id": userID, "tags": tags})
}

// SetTag POST /api/tags/users/:user_id
func (c *TagController) SetTag() {
	userID, ok := c.pathInt64("user_id")
	if !ok {
		return
	}
	var req setTagRequest
	if !c.bindJSON(&req) {
		return
	}
	source := req.Source
	if source == "" {
		source = models.TagSourceManual
	}
	confidence := req.Confidence
	if confidence == 0 {
		confidence = 1
	}

	res := c.Store.Set(c.Ctx.Request.Context(), tagging.TagWrite{
		UserID:     userID,
		TagKey:     req.TagKey,
		TagValue:   req.TagValue,
		Source:     source,
		Confidence: confidence,
		AutoSync:   req.AutoSync,
	})
	if !res.Success {
		c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "error": res.Message, "code": res.Code})
		return
	}
	c.JSONSuccess(res)
}

// Definitions GET /api/tags/definitions
func (c *TagController) Definitions() {
	defs, err := c.Store.Definitions(c.Ctx.Request.Context())
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(defs)
}
