package handler

import (
	"errors"

	"github.com/MarioSri/docflow/internal/workflow/engine"
	"github.com/MarioSri/docflow/internal/workflow/repository"
	"github.com/MarioSri/docflow/internal/workflow/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Document   *DocumentHandler
	Approval   *ApprovalHandler
	Route      *RouteHandler
	Recipient  *RecipientHandler
	Escalation *EscalationHandler
	Audit      *AuditHandler
	SSE        *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Document:   NewDocumentHandler(svc.Document),
		Approval:   NewApprovalHandler(svc.Approval),
		Route:      NewRouteHandler(svc.Route),
		Recipient:  NewRecipientHandler(svc.Recipient),
		Escalation: NewEscalationHandler(svc.Escalation),
		Audit:      NewAuditHandler(svc.Audit),
		SSE:        NewSSEHandler(),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// DomainError 按错误类别映射具体错误码，绝不吞成统一500
func DomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrReasonRequired):
		Error(c, 40010, err.Error())
	case errors.Is(err, engine.ErrInvalidRoute):
		Error(c, 40020, err.Error())
	case errors.Is(err, engine.ErrNoValidRecipients):
		Error(c, 40030, err.Error())
	case errors.Is(err, engine.ErrUnauthorizedActor):
		Error(c, 40320, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		Error(c, 40400, err.Error())
	case errors.Is(err, engine.ErrStaleTransition):
		Error(c, 40910, err.Error())
	case errors.Is(err, engine.ErrSchedulerUnavailable):
		Error(c, 50300, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
