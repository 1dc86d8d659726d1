package handler

import (
	"github.com/MarioSri/docflow/internal/config"
	"github.com/MarioSri/docflow/internal/middleware"
	"github.com/gin-gonic/gin"
)

// bypassRoles 允许绕行复活已驳回卡片的角色
var bypassRoles = []string{"principal", "registrar", "director"}

// RegisterRoutes 注册全部API路由
func RegisterRoutes(r *gin.Engine, h *Handlers, cfg *config.Config) {
	v1 := r.Group("/api/v1")
	{
		// SSE 实时推送（需要认证，支持 query param token）
		sseGroup := v1.Group("/sse")
		sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			sseGroup.GET("/events", h.SSE.Stream)
		}

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			documents := authorized.Group("/documents")
			{
				documents.POST("", h.Document.Submit)
				documents.GET("", h.Document.List)
				documents.GET("/:id", h.Document.Get)
				documents.GET("/:id/track", h.Document.Track)
				documents.POST("/:id/attachment", h.Document.UploadAttachment)
				documents.GET("/:id/attachment", h.Document.Attachment)
			}

			approvals := authorized.Group("/approvals")
			{
				approvals.GET("/pending", h.Approval.Pending)
				approvals.GET("/group/:tracking_id", h.Approval.GroupStatus)
				approvals.GET("/:id", h.Approval.Get)
				approvals.POST("/:id/approve", h.Approval.Approve)
				approvals.POST("/:id/reject", h.Approval.Reject)
				approvals.POST("/:id/cancel-escalation", h.Approval.CancelEscalation)
				approvals.POST("/:id/reopen-bypass",
					middleware.RequireAnyRole(bypassRoles...), h.Approval.ReopenBypass)
			}

			routes := authorized.Group("/routes")
			{
				routes.POST("", h.Route.Create)
				routes.GET("", h.Route.List)
				routes.GET("/:id", h.Route.Get)
				routes.PUT("/:id", h.Route.Update)
				routes.POST("/:id/publish", h.Route.Publish)
			}

			recipients := authorized.Group("/recipients")
			{
				recipients.GET("", h.Recipient.List)
				recipients.POST("", middleware.RequireRole("registrar"), h.Recipient.Create)
				recipients.POST("/import", middleware.RequireRole("registrar"), h.Recipient.Import)
				recipients.GET("/:id", h.Recipient.Get)
				recipients.PUT("/:id", middleware.RequireRole("registrar"), h.Recipient.Update)
				recipients.DELETE("/:id", middleware.RequireRole("registrar"), h.Recipient.Deactivate)
			}

			escalations := authorized.Group("/escalations")
			{
				escalations.GET("/:card_id", h.Escalation.Status)
			}

			audit := authorized.Group("/audit")
			{
				audit.GET("/cards/:id", h.Audit.CardHistory)
				audit.GET("/documents/:id", h.Audit.DocumentHistory)
				audit.GET("/documents/:id/export", h.Audit.ExportDocument)
			}
		}
	}
}
