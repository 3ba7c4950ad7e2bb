package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/zhitang/backend-go/internal/errors"
	"github.com/zhitang/backend-go/internal/logger"
)

var validate = validator.New()

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError 按错误码映射 HTTP 状态
func (c *BaseController) JSONAppError(err error) {
	appErr := apperrors.Translate(err)
	if appErr.HTTPCode >= http.StatusInternalServerError {
		logger.Error("请求处理失败",
			zap.String("path", c.Ctx.Input.URL()),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
	}
	c.JSON(appErr.HTTPCode, map[string]interface{}{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	})
}

// bindJSON 解析并校验请求体
func (c *BaseController) bindJSON(v interface{}) bool {
	body := c.Ctx.Input.RequestBody
	if len(body) == 0 {
		c.JSONError(http.StatusBadRequest, "请求体不能为空")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.JSONError(http.StatusBadRequest, "请求格式错误: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		c.JSONAppError(err)
		return false
	}
	return true
}

// queryInt 读取整数查询参数，缺失或无效时使用默认值
func (c *BaseController) queryInt(key string, def int) int {
	v, err := strconv.Atoi(c.GetString(key))
	if err != nil {
		return def
	}
	return v
}

// queryFloat 读取浮点查询参数，缺失或无效时使用默认值
func (c *BaseController) queryFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(c.GetString(key), 64)
	if err != nil {
		return def
	}
	return v
}

// pathInt64 读取路径参数
func (c *BaseController) pathInt64(key string) (int64, bool) {
	v, err := strconv.ParseInt(c.Ctx.Input.Param(":"+key), 10, 64)
	if err != nil || v <= 0 {
		c.JSONError(http.StatusBadRequest, "无效的 "+key)
		return 0, false
	}
	return v, true
}
