package handler

import (
	"time"

	"github.com/MarioSri/docflow/internal/workflow/service"
	"github.com/gin-gonic/gin"
)

// EscalationHandler 升级时钟处理器
type EscalationHandler struct {
	svc *service.EscalationService
}

// NewEscalationHandler 创建升级时钟处理器
func NewEscalationHandler(svc *service.EscalationService) *EscalationHandler {
	return &EscalationHandler{svc: svc}
}

// Status 某张卡的时钟状态（deadline、剩余时间、是否循环）
// GET /api/v1/escalations/:card_id
func (h *EscalationHandler) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context(), c.Param("card_id"))
	if err != nil {
		DomainError(c, err)
		return
	}

	remaining := time.Until(st.Deadline).Milliseconds()
	if st.Stopped || remaining < 0 {
		remaining = 0
	}
	Success(c, gin.H{
		"card_id":      st.CardID,
		"mode":         st.Mode,
		"deadline":     st.Deadline,
		"timeout_ms":   st.TimeoutMs,
		"remaining_ms": remaining,
		"cyclic":       st.Cyclic,
		"stopped":      st.Stopped,
	})
}
