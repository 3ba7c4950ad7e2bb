package errors

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Translate 将各种类型的错误转换为AppError
func Translate(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return translateValidationErrors(validationErrors)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewSystemError(ErrCodeTimeout, "操作超时").WithCause(err)
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewSystemError(ErrCodeTimeout, "操作超时").WithCause(err)
		}
		return NewSystemError(ErrCodeExternalService, "网络错误").WithCause(err)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		return NewBusinessError(ErrCodeNotFound, "记录不存在").WithCause(err)
	}

	if isDatabaseError(err) {
		return translateDatabaseError(err)
	}

	return NewSystemError(ErrCodeInternalServer, "服务内部错误").WithCause(err)
}

// translateValidationErrors 转换验证错误
func translateValidationErrors(validationErrors validator.ValidationErrors) *AppError {
	details := make([]map[string]interface{}, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		details = append(details, map[string]interface{}{
			"field":   fieldError.Field(),
			"tag":     fieldError.Tag(),
			"message": validationMessage(fieldError),
		})
	}

	message := "参数校验失败"
	if len(validationErrors) > 0 {
		message = validationMessage(validationErrors[0])
	}
	return NewValidationError(message).WithDetails(map[string]interface{}{
		"errors": details,
	})
}

// translateDatabaseError 转换数据库错误
func translateDatabaseError(err error) *AppError {
	errMsg := err.Error()

	if strings.Contains(errMsg, "duplicate key value") || strings.Contains(errMsg, "violates unique constraint") {
		return NewBusinessError(ErrCodeInvalidState, "记录已存在").WithCause(err)
	}
	if strings.Contains(errMsg, "violates foreign key constraint") ||
		strings.Contains(errMsg, "violates not-null constraint") ||
		strings.Contains(errMsg, "violates check constraint") {
		return NewBusinessError(ErrCodeBadRequest, "数据不合法").WithCause(err)
	}
	return NewSystemError(ErrCodeDatabaseError, "数据库操作失败").WithCause(err)
}

// isDatabaseError 按驱动的错误前缀判断
func isDatabaseError(err error) bool {
	errMsg := strings.ToLower(err.Error())
	for _, keyword := range []string{"pq:", "sqlstate", "postgres", "relation \"", "violates"} {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}
	return false
}

// validationMessage 获取验证错误消息
func validationMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required":
		return field + " 不能为空"
	case "min", "gte":
		return field + " 不能小于 " + fieldError.Param()
	case "max", "lte":
		return field + " 不能大于 " + fieldError.Param()
	case "gt":
		return field + " 必须大于 " + fieldError.Param()
	case "oneof":
		return field + " 必须是以下之一: " + fieldError.Param()
	default:
		return field + " 无效"
	}
}
