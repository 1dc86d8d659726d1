package handler

import (
	"github.com/MarioSri/docflow/internal/workflow/service"
	"github.com/gin-gonic/gin"
)

// RouteHandler 路由模板处理器
type RouteHandler struct {
	svc *service.RouteService
}

// NewRouteHandler 创建路由模板处理器
func NewRouteHandler(svc *service.RouteService) *RouteHandler {
	return &RouteHandler{svc: svc}
}

// Create 创建路由模板
// POST /api/v1/routes
func (h *RouteHandler) Create(c *gin.Context) {
	var req service.CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	route, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		DomainError(c, err)
		return
	}
	Created(c, route)
}

// Get 查模板
// GET /api/v1/routes/:id
func (h *RouteHandler) Get(c *gin.Context) {
	route, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, route)
}

// List 模板列表
// GET /api/v1/routes?status=published
func (h *RouteHandler) List(c *gin.Context) {
	routes, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		InternalError(c, "获取模板列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": routes})
}

// Publish 发布模板
// POST /api/v1/routes/:id/publish
func (h *RouteHandler) Publish(c *gin.Context) {
	route, err := h.svc.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, route)
}

// Update 更新draft模板
// PUT /api/v1/routes/:id
func (h *RouteHandler) Update(c *gin.Context) {
	var req service.CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	route, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, route)
}
