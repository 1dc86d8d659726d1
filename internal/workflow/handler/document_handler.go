package handler

import (
	"github.com/MarioSri/docflow/internal/workflow/service"
	"github.com/gin-gonic/gin"
)

// DocumentHandler 文档处理器
type DocumentHandler struct {
	svc *service.DocumentService
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Submit 提交文档进入路由
// POST /api/v1/documents
func (h *DocumentHandler) Submit(c *gin.Context) {
	var req service.SubmitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.svc.Submit(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		DomainError(c, err)
		return
	}
	Created(c, result)
}

// Get 查文档
// GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, doc)
}

// List 文档列表
// GET /api/v1/documents?status=pending&mine=1
func (h *DocumentHandler) List(c *gin.Context) {
	if c.Query("mine") != "" {
		docs, err := h.svc.ListBySubmitter(c.Request.Context(), GetUserID(c))
		if err != nil {
			InternalError(c, "获取文档列表失败: "+err.Error())
			return
		}
		Success(c, gin.H{"items": docs})
		return
	}
	docs, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		InternalError(c, "获取文档列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": docs})
}

// Track 文档全链路跟踪（文档+卡片+流水）
// GET /api/v1/documents/:id/track
func (h *DocumentHandler) Track(c *gin.Context) {
	result, err := h.svc.Track(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, result)
}

// UploadAttachment 上传附件
// POST /api/v1/documents/:id/attachment (multipart)
func (h *DocumentHandler) UploadAttachment(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少附件文件")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := h.svc.UploadAttachment(c.Request.Context(), c.Param("id"),
		header.Filename, contentType, file, header.Size)
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, doc)
}

// Attachment 附件下载链接
// GET /api/v1/documents/:id/attachment
func (h *DocumentHandler) Attachment(c *gin.Context) {
	u, err := h.svc.AttachmentURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, gin.H{"url": u})
}
