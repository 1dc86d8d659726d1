package service

import (
	"github.com/MarioSri/docflow/internal/buffer"
	"github.com/MarioSri/docflow/internal/config"
	"github.com/MarioSri/docflow/internal/notify"
	"github.com/MarioSri/docflow/internal/workflow/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Document   *DocumentService
	Approval   *ApprovalService
	Route      *RouteService
	Recipient  *RecipientService
	Escalation *EscalationService
	Audit      *AuditService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 通知分发器：未配置webhook时降级为空实现
	var dispatcher notify.Dispatcher
	if cfg.Notify.WebhookURL != "" {
		dispatcher = notify.NewWebhookDispatcher(cfg.Notify.WebhookURL, cfg.Notify.Token)
	} else {
		dispatcher = notify.NopDispatcher{}
	}

	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO unavailable, attachments degraded", zap.Error(err))
			minioClient = nil
		}
	}

	// 降级写缓冲：附件上传失败时暂存Redis等待回放
	var buf *buffer.WriteBuffer
	if rdb != nil {
		buf = buffer.NewWriteBuffer(rdb, cfg.Redis.BufferCapacity)
	}

	escalationSvc := NewEscalationService(repos.Escalation, cfg.Escalation.SweepInterval, logger)

	approvalSvc := NewApprovalService(repos, escalationSvc, dispatcher, logger)
	escalationSvc.SetHandler(approvalSvc.HandleTimeout)

	return &Services{
		Document:   NewDocumentService(repos, escalationSvc, dispatcher, minioClient, cfg.MinIO.Bucket, buf, logger),
		Approval:   approvalSvc,
		Route:      NewRouteService(repos.Route),
		Recipient:  NewRecipientService(repos.Recipient),
		Escalation: escalationSvc,
		Audit:      NewAuditService(repos.Approval, repos.Card, repos.Document),
	}
}
