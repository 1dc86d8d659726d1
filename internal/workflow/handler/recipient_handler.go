package handler

import (
	"strings"

	"github.com/MarioSri/docflow/internal/workflow/service"
	"github.com/gin-gonic/gin"
)

// RecipientHandler 收件人目录处理器
type RecipientHandler struct {
	svc *service.RecipientService
}

// NewRecipientHandler 创建收件人目录处理器
func NewRecipientHandler(svc *service.RecipientService) *RecipientHandler {
	return &RecipientHandler{svc: svc}
}

// List 在册收件人列表
// GET /api/v1/recipients
func (h *RecipientHandler) List(c *gin.Context) {
	recs, err := h.svc.List(c.Request.Context())
	if err != nil {
		InternalError(c, "获取收件人列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": recs})
}

// Get 查收件人
// GET /api/v1/recipients/:id
func (h *RecipientHandler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, rec)
}

// Create 创建收件人
// POST /api/v1/recipients
func (h *RecipientHandler) Create(c *gin.Context) {
	var req service.CreateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	rec, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		DomainError(c, err)
		return
	}
	Created(c, rec)
}

// Update 更新收件人
// PUT /api/v1/recipients/:id
func (h *RecipientHandler) Update(c *gin.Context) {
	var req service.CreateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	rec, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, rec)
}

// Deactivate 下线收件人
// DELETE /api/v1/recipients/:id
func (h *RecipientHandler) Deactivate(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		DomainError(c, err)
		return
	}
	Success(c, gin.H{"deactivated": true})
}

// Import 批量导入目录CSV
// POST /api/v1/recipients/import?encoding=gbk (multipart)
func (h *RecipientHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少CSV文件")
		return
	}
	defer file.Close()

	gbk := strings.EqualFold(c.Query("encoding"), "gbk")
	result, err := h.svc.ImportCSV(c.Request.Context(), file, gbk)
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, result)
}
