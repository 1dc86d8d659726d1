package handler

import (
	"fmt"
	"net/http"

	"github.com/MarioSri/docflow/internal/workflow/service"
	"github.com/gin-gonic/gin"
)

// AuditHandler 审计流水处理器
type AuditHandler struct {
	svc *service.AuditService
}

// NewAuditHandler 创建审计流水处理器
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// CardHistory 某张卡的动作流水
// GET /api/v1/audit/cards/:id
func (h *AuditHandler) CardHistory(c *gin.Context) {
	records, err := h.svc.CardHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, gin.H{"items": records})
}

// DocumentHistory 某份文档的全部流水
// GET /api/v1/audit/documents/:id
func (h *AuditHandler) DocumentHistory(c *gin.Context) {
	records, err := h.svc.DocumentHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, gin.H{"items": records})
}

// ExportDocument 导出文档审计报表（xlsx）
// GET /api/v1/audit/documents/:id/export
func (h *AuditHandler) ExportDocument(c *gin.Context) {
	buf, err := h.svc.ExportDocumentXLSX(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}

	filename := fmt.Sprintf("audit-%s.xlsx", c.Param("id"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
