package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"sort"
	"time"

	"github.com/MarioSri/docflow/internal/buffer"
	"github.com/MarioSri/docflow/internal/notify"
	"github.com/MarioSri/docflow/internal/workflow/engine"
	"github.com/MarioSri/docflow/internal/workflow/entity"
	"github.com/MarioSri/docflow/internal/workflow/events"
	"github.com/MarioSri/docflow/internal/workflow/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// defaultAuthorityChain 并行升级的逐级上报链
var defaultAuthorityChain = []string{"principal", "registrar", "dean", "chairman"}

// DocumentService 文档提交服务——路由实例的创建入口
type DocumentService struct {
	repos       *repository.Repositories
	escalation  *EscalationService
	dispatcher  notify.Dispatcher
	minioClient *minio.Client
	bucketName  string
	buf         *buffer.WriteBuffer
	logger      *zap.Logger
}

// NewDocumentService 创建文档服务
func NewDocumentService(repos *repository.Repositories, escalation *EscalationService,
	dispatcher notify.Dispatcher, minioClient *minio.Client, bucketName string,
	buf *buffer.WriteBuffer, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		repos:       repos,
		escalation:  escalation,
		dispatcher:  dispatcher,
		minioClient: minioClient,
		bucketName:  bucketName,
		buf:         buf,
		logger:      logger,
	}
}

// RecipientInput 提交时指定的收件人（step用于会签分组，缺省按列表顺序）
// assignments 为该收件人的专属文档分派说明，随卡片元数据下发
type RecipientInput struct {
	ID          string       `json:"id" binding:"required"`
	Step        *int         `json:"step,omitempty"`
	Assignments entity.JSONB `json:"assignments,omitempty"`
}

// SubmitDocumentRequest 提交文档请求
// 路由定义二选一：引用已发布模板（route_id），或内联steps/escalation
type SubmitDocumentRequest struct {
	Title           string                 `json:"title" binding:"required"`
	Description     string                 `json:"description"`
	Type            string                 `json:"type"`
	Priority        string                 `json:"priority"`
	RoutingType     string                 `json:"routing_type" binding:"required"`
	IsEmergency     bool                   `json:"is_emergency"`
	Bypass          bool                   `json:"bypass"`
	CascadeOnReject bool                   `json:"cascade_on_reject"`
	RouteID         string                 `json:"route_id"`
	Recipients      []RecipientInput       `json:"recipients" binding:"required"`
	Steps           []entity.WorkflowStep  `json:"steps"`
	Escalation      *entity.AutoEscalation `json:"escalation"`
	BounceLimit     int                    `json:"bounce_limit"`
	Metadata        entity.JSONB           `json:"metadata"`
}

// SubmitResult 提交结果：文档 + 创建出的卡片（并行时多张）
type SubmitResult struct {
	Document *entity.Document       `json:"document"`
	Cards    []*entity.ApprovalCard `json:"cards"`
	Degraded bool                   `json:"degraded,omitempty"`
}

// Submit 提交文档并创建审批卡片
// 路由快照在此刻固化进卡片，此后模板变更不影响在途卡
func (s *DocumentService) Submit(ctx context.Context, submitterID string, req *SubmitDocumentRequest) (*SubmitResult, error) {
	spec, err := s.buildSpec(ctx, req)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolveRecipients(ctx, req.Recipients)
	if err != nil {
		return nil, err
	}

	// 逆序路由：按步骤组整体取反（会签组保持完整），步骤参数跟随镜像，
	// 之后按普通顺序链执行
	if spec.Type == entity.RoutingReverse {
		last := 0
		for i := range resolved {
			if resolved[i].step > last {
				last = resolved[i].step
			}
		}
		for i := range resolved {
			resolved[i].step = last - resolved[i].step
		}
		sort.SliceStable(resolved, func(i, j int) bool { return resolved[i].step < resolved[j].step })
		for i := range spec.Steps {
			spec.Steps[i].Order = len(spec.Steps) - 1 - spec.Steps[i].Order
		}
	}

	now := time.Now()
	trackingID := uuid.New().String()

	doc := &entity.Document{
		TrackingID:  trackingID,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Priority:    priorityOf(req),
		Status:      entity.DocumentStatusPending,
		SubmitterID: submitterID,
		RoutingType: spec.Type,
		IsEmergency: req.IsEmergency,
		IsParallel:  spec.Type == entity.RoutingParallel || (req.Bypass && req.CascadeOnReject),
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, rr := range resolved {
		doc.Recipients = append(doc.Recipients, entity.DocumentRecipient{
			ID:              uuid.New().String(),
			DocumentID:      trackingID,
			RecipientID:     rr.rec.UserID,
			RecipientUserID: rr.rec.UserID,
			OrderIndex:      i,
			Status:          entity.CardStatusPending,
		})
	}
	if req.Bypass && !req.CascadeOnReject {
		doc.Status = entity.DocumentStatusBypassed
	}
	if err := s.repos.Document.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("创建文档失败: %w", err)
	}

	var cards []*entity.ApprovalCard
	degraded := false

	switch {
	case req.Bypass && !req.CascadeOnReject:
		cards, err = s.createBypassCard(ctx, doc, spec, resolved, now)
	case doc.IsParallel:
		cards, degraded, err = s.createSiblingCards(ctx, doc, spec, resolved, req.CascadeOnReject, now)
	default:
		cards, degraded, err = s.createChainCard(ctx, doc, spec, resolved, now)
	}
	if err != nil {
		return nil, err
	}

	events.GlobalHub.Publish(events.Event{
		Topic:      engine.TopicDocumentCreated,
		TrackingID: trackingID,
	})

	return &SubmitResult{Document: doc, Cards: cards, Degraded: degraded}, nil
}

type resolvedRecipient struct {
	rec         *entity.Recipient
	step        int
	assignments entity.JSONB
}

// resolveRecipients 逐个解析收件人；解析失败的跳过并记日志，
// 全军覆没才中止提交
func (s *DocumentService) resolveRecipients(ctx context.Context, inputs []RecipientInput) ([]resolvedRecipient, error) {
	var out []resolvedRecipient
	for i, in := range inputs {
		rec, err := s.repos.Recipient.FindByIDOrEmail(ctx, in.ID)
		if err != nil {
			s.logger.Warn("Recipient resolution failed, skipping",
				zap.String("recipient", in.ID), zap.Error(err))
			continue
		}
		if !rec.IsActive {
			s.logger.Warn("Recipient inactive, skipping", zap.String("recipient", in.ID))
			continue
		}
		step := i
		if in.Step != nil {
			step = *in.Step
		}
		out = append(out, resolvedRecipient{rec: rec, step: step, assignments: in.Assignments})
	}
	if len(out) == 0 {
		return nil, engine.ErrNoValidRecipients
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].step < out[j].step })
	// step归一化为连续的0..n-1组号（会签人共享组号）
	norm := 0
	prev := out[0].step
	for i := range out {
		if out[i].step != prev {
			norm++
			prev = out[i].step
		}
		out[i].step = norm
	}
	return out, nil
}

// buildSpec 从模板或内联定义构建路由快照（超时统一归一化为毫秒）
func (s *DocumentService) buildSpec(ctx context.Context, req *SubmitDocumentRequest) (*engine.RouteSpec, error) {
	steps := req.Steps
	escalation := req.Escalation
	bounceLimit := req.BounceLimit
	routingType := req.RoutingType

	if req.RouteID != "" {
		route, err := s.repos.Route.FindByID(ctx, req.RouteID)
		if err != nil {
			return nil, fmt.Errorf("路由模板不存在: %w", err)
		}
		if route.Status != entity.RouteStatusPublished {
			return nil, fmt.Errorf("%w: 模板 %s 未发布", engine.ErrInvalidRoute, route.ID)
		}
		if len(route.Steps) > 0 {
			if err := json.Unmarshal(route.Steps, &steps); err != nil {
				return nil, fmt.Errorf("%w: 模板steps损坏: %v", engine.ErrInvalidRoute, err)
			}
		}
		if len(route.Escalation) > 0 {
			escalation = &entity.AutoEscalation{}
			if err := json.Unmarshal(route.Escalation, escalation); err != nil {
				return nil, fmt.Errorf("%w: 模板升级策略损坏: %v", engine.ErrInvalidRoute, err)
			}
		}
		bounceLimit = route.BounceLimit
		routingType = route.Type
	}

	spec := &engine.RouteSpec{
		Type:            routingType,
		BounceLimit:     bounceLimit,
		CascadeOnReject: req.CascadeOnReject,
	}
	for _, st := range steps {
		spec.Steps = append(spec.Steps, engine.StepSpec{
			Order:           st.Order,
			Role:            st.Role,
			Required:        st.Required,
			TimeoutMs:       entity.TimeoutToMs(st.TimeoutValue, st.TimeoutUnit),
			EscalationRoles: st.EscalationRoles,
		})
	}
	if escalation != nil && escalation.Enabled {
		spec.Escalation = engine.EscalationSpec{
			Enabled:   true,
			TimeoutMs: entity.TimeoutToMs(escalation.TimeoutValue, escalation.TimeoutUnit),
			Cyclic:    escalation.Cyclic,
		}
	}
	if spec.Type == entity.RoutingParallel {
		spec.AuthorityChain = defaultAuthorityChain
	}

	// 内联提交未配steps时按收件人列表推导一条单人链
	if spec.Type != entity.RoutingParallel && len(spec.Steps) == 0 {
		for i := range req.Recipients {
			spec.Steps = append(spec.Steps, engine.StepSpec{Order: i, Required: 1})
		}
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// createChainCard 顺序/逆序/双向：一份文档一张卡
func (s *DocumentService) createChainCard(ctx context.Context, doc *entity.Document,
	spec *engine.RouteSpec, resolved []resolvedRecipient, now time.Time) ([]*entity.ApprovalCard, bool, error) {

	card := s.newCard(doc, spec, now)
	if m := assignmentsOf(resolved); m != nil {
		card.Metadata = entity.JSONB{"assignments": m}
	}
	for i, rr := range resolved {
		status := entity.CardStatusPending
		card.Recipients = append(card.Recipients, entity.CardRecipient{
			ID:              uuid.New().String(),
			CardID:          card.ID,
			RecipientID:     rr.rec.UserID,
			RecipientUserID: rr.rec.UserID,
			RecipientName:   rr.rec.Name,
			OrderIndex:      i,
			StepIndex:       rr.step,
			Status:          status,
		})
		if rr.step == 0 && card.CurrentRecipientID == "" {
			card.CurrentRecipientID = rr.rec.UserID
		}
	}

	if err := s.repos.Card.Create(ctx, card); err != nil {
		return nil, false, fmt.Errorf("创建审批卡片失败: %w", err)
	}
	s.appendSubmitted(ctx, card, doc.SubmitterID, now)

	degraded := s.armInitial(ctx, card, spec, entity.EscalationModeSequential, spec.TimeoutForStep(0))

	var firstStep []string
	for _, r := range card.Recipients {
		if r.StepIndex == 0 {
			firstStep = append(firstStep, r.RecipientID)
		}
	}
	s.notifySubmission(card, firstStep)
	s.emitCreated(card)
	return []*entity.ApprovalCard{card}, degraded, nil
}

// createSiblingCards 并行（含级联绕行）：每个收件人一张兄弟卡
func (s *DocumentService) createSiblingCards(ctx context.Context, doc *entity.Document,
	spec *engine.RouteSpec, resolved []resolvedRecipient, cascade bool, now time.Time) ([]*entity.ApprovalCard, bool, error) {

	var cards []*entity.ApprovalCard
	for _, rr := range resolved {
		card := s.newCard(doc, spec, now)
		card.ID = uuid.New().String()
		card.ApprovalID = fmt.Sprintf("APL-%s", uuid.New().String()[:8])
		card.IsParallel = true
		card.CascadeOnReject = cascade
		card.CurrentRecipientID = rr.rec.UserID
		if rr.assignments != nil {
			card.Metadata = entity.JSONB{"assignments": map[string]interface{}{rr.rec.UserID: rr.assignments}}
		}
		card.Recipients = []entity.CardRecipient{{
			ID:              uuid.New().String(),
			CardID:          card.ID,
			RecipientID:     rr.rec.UserID,
			RecipientUserID: rr.rec.UserID,
			RecipientName:   rr.rec.Name,
			Status:          entity.CardStatusPending,
		}}
		cards = append(cards, card)
	}

	if err := s.repos.Card.CreateBatch(ctx, cards); err != nil {
		return nil, false, fmt.Errorf("创建并行卡片组失败: %w", err)
	}

	degraded := false
	for _, card := range cards {
		s.appendSubmitted(ctx, card, doc.SubmitterID, now)
		if s.armInitial(ctx, card, spec, entity.EscalationModeParallel, spec.Escalation.TimeoutMs) {
			degraded = true
		}
		s.notifySubmission(card, []string{card.CurrentRecipientID})
		s.emitCreated(card)
	}
	return cards, degraded, nil
}

// createBypassCard 绕行直达：卡片生来即bypassed，不装时钟
func (s *DocumentService) createBypassCard(ctx context.Context, doc *entity.Document,
	spec *engine.RouteSpec, resolved []resolvedRecipient, now time.Time) ([]*entity.ApprovalCard, error) {

	card := s.newCard(doc, spec, now)
	card.Status = entity.CardStatusBypassed
	if m := assignmentsOf(resolved); m != nil {
		card.Metadata = entity.JSONB{"assignments": m}
	}
	var targets []string
	for i, rr := range resolved {
		card.Recipients = append(card.Recipients, entity.CardRecipient{
			ID:              uuid.New().String(),
			CardID:          card.ID,
			RecipientID:     rr.rec.UserID,
			RecipientUserID: rr.rec.UserID,
			RecipientName:   rr.rec.Name,
			OrderIndex:      i,
			Status:          entity.CardStatusBypassed,
		})
		targets = append(targets, rr.rec.UserID)
	}

	if err := s.repos.Card.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("创建绕行卡片失败: %w", err)
	}
	s.appendSubmitted(ctx, card, doc.SubmitterID, now)

	s.notifySubmission(card, targets)
	s.emitCreated(card)
	events.GlobalHub.Publish(events.Event{
		Topic:        engine.TopicApprovalBypassed,
		TrackingID:   doc.TrackingID,
		CardID:       card.ID,
		RecipientIDs: targets,
	})
	return []*entity.ApprovalCard{card}, nil
}

func (s *DocumentService) newCard(doc *entity.Document, spec *engine.RouteSpec, now time.Time) *entity.ApprovalCard {
	return &entity.ApprovalCard{
		ID:             uuid.New().String(),
		ApprovalID:     fmt.Sprintf("APL-%s", uuid.New().String()[:8]),
		TrackingCardID: doc.TrackingID,
		DocumentID:     doc.TrackingID,
		Title:          doc.Title,
		Priority:       doc.Priority,
		Status:         entity.CardStatusPending,
		SubmitterID:    doc.SubmitterID,
		RoutingType:    spec.Type,
		IsEmergency:    doc.IsEmergency,
		BounceLimit:    spec.BounceLimit,
		LastActionAt:   now,
		Workflow:       spec.Marshal(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// armInitial 装载创建时的升级时钟；失败不阻断提交，返回是否降级
func (s *DocumentService) armInitial(ctx context.Context, card *entity.ApprovalCard,
	spec *engine.RouteSpec, mode string, timeoutMs int64) bool {
	if !spec.Escalation.Enabled || timeoutMs <= 0 {
		return false
	}
	if err := s.escalation.Arm(ctx, card.ID, card.DocumentID, mode, timeoutMs, spec.Escalation.Cyclic); err != nil {
		s.logger.Warn("Escalation timer arm failed at submission, card degraded",
			zap.String("card_id", card.ID), zap.Error(err))
		return true
	}
	return false
}

func (s *DocumentService) appendSubmitted(ctx context.Context, card *entity.ApprovalCard, submitterID string, now time.Time) {
	rec := &entity.Approval{
		ID:         uuid.New().String(),
		CardID:     card.ID,
		DocumentID: card.DocumentID,
		ApproverID: submitterID,
		Action:     entity.ActionSubmitted,
		Status:     card.Status,
		CreatedAt:  now,
	}
	if err := s.repos.Approval.Append(ctx, rec); err != nil {
		s.logger.Warn("Submission audit append failed",
			zap.String("card_id", card.ID), zap.Error(err))
		if s.buf != nil {
			payload, _ := json.Marshal(rec)
			if berr := s.buf.Put(ctx, rec.ID, buffer.KindRecord, payload); berr != nil {
				s.logger.Error("Audit record lost, buffer unavailable",
					zap.String("card_id", card.ID), zap.Error(berr))
			}
		}
	}
}

func (s *DocumentService) notifySubmission(card *entity.ApprovalCard, targets []string) {
	if len(targets) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, t := range targets {
			if err := s.dispatcher.Dispatch(ctx, notify.Message{
				RecipientID: t,
				CardID:      card.ID,
				TrackingID:  card.DocumentID,
				Title:       card.Title,
				Kind:        "assignment",
			}); err != nil {
				s.logger.Warn("Submission notification failed",
					zap.String("recipient", t), zap.Error(err))
			}
		}
	}()
}

func (s *DocumentService) emitCreated(card *entity.ApprovalCard) {
	var ids []string
	for _, r := range card.Recipients {
		ids = append(ids, r.RecipientID)
	}
	events.GlobalHub.Publish(events.Event{
		Topic:              engine.TopicApprovalCreated,
		TrackingID:         card.DocumentID,
		CardID:             card.ID,
		RecipientIDs:       ids,
		CurrentRecipientID: card.CurrentRecipientID,
	})
}

// assignmentsOf 汇总各收件人的专属分派说明，无任何配置时返回nil
func assignmentsOf(resolved []resolvedRecipient) map[string]interface{} {
	var m map[string]interface{}
	for _, rr := range resolved {
		if rr.assignments == nil {
			continue
		}
		if m == nil {
			m = make(map[string]interface{})
		}
		m[rr.rec.UserID] = rr.assignments
	}
	return m
}

func priorityOf(req *SubmitDocumentRequest) string {
	if req.IsEmergency {
		return entity.PriorityEmergency
	}
	if req.Priority != "" {
		return req.Priority
	}
	return entity.PriorityNormal
}

// Get 查文档（含收件人链）
func (s *DocumentService) Get(ctx context.Context, trackingID string) (*entity.Document, error) {
	return s.repos.Document.FindByTrackingID(ctx, trackingID)
}

// List 文档列表
func (s *DocumentService) List(ctx context.Context, status string) ([]entity.Document, error) {
	return s.repos.Document.List(ctx, status)
}

// ListBySubmitter 某提交人的文档
func (s *DocumentService) ListBySubmitter(ctx context.Context, submitterID string) ([]entity.Document, error) {
	return s.repos.Document.ListBySubmitter(ctx, submitterID)
}

// TrackResult 跟踪视图：文档 + 全部卡片 + 全部流水
type TrackResult struct {
	Document  *entity.Document      `json:"document"`
	Cards     []entity.ApprovalCard `json:"cards"`
	Approvals []entity.Approval     `json:"approvals"`
}

// Track 文档全链路跟踪
func (s *DocumentService) Track(ctx context.Context, trackingID string) (*TrackResult, error) {
	doc, err := s.repos.Document.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	cards, err := s.repos.Card.ListByTracking(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	approvals, err := s.repos.Approval.ListByDocument(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	return &TrackResult{Document: doc, Cards: cards, Approvals: approvals}, nil
}

// UploadAttachment 上传文档附件到对象存储
// 对象存储不可用时写入降级缓冲，Reconcile 恢复后回放
func (s *DocumentService) UploadAttachment(ctx context.Context, trackingID, fileName, contentType string,
	reader io.Reader, fileSize int64) (*entity.Document, error) {

	doc, err := s.repos.Document.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("attachments/%s/%s%s",
		time.Now().Format("2006/01/02"), uuid.New().String()[:8], filepath.Ext(fileName))

	uploaded := false
	if s.minioClient != nil {
		_, err = s.minioClient.PutObject(ctx, s.bucketName, objectName, reader, fileSize,
			minio.PutObjectOptions{ContentType: contentType})
		if err == nil {
			uploaded = true
		} else {
			s.logger.Warn("Attachment upload failed", zap.String("tracking_id", trackingID), zap.Error(err))
		}
	}

	if !uploaded {
		if s.buf == nil {
			return nil, fmt.Errorf("附件存储不可用")
		}
		content, rerr := io.ReadAll(reader)
		if rerr != nil {
			return nil, fmt.Errorf("读取附件内容失败: %w", rerr)
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"object_name":  objectName,
			"content_type": contentType,
			"content":      content,
		})
		if err := s.buf.Put(ctx, objectName, buffer.KindAttachmentRef, payload); err != nil {
			return nil, fmt.Errorf("附件降级暂存失败: %w", err)
		}
		s.logger.Warn("Attachment buffered for later reconcile",
			zap.String("tracking_id", trackingID), zap.String("object", objectName))
	}

	s.repos.Document.SetAttachment(ctx, trackingID, objectName, fileName)
	doc.AttachmentKey = objectName
	doc.AttachmentName = fileName
	return doc, nil
}

// AttachmentURL 附件的限时下载链接
func (s *DocumentService) AttachmentURL(ctx context.Context, trackingID string) (string, error) {
	doc, err := s.repos.Document.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return "", err
	}
	if doc.AttachmentKey == "" {
		return "", repository.ErrNotFound
	}
	if s.minioClient == nil {
		return "", fmt.Errorf("附件存储不可用")
	}
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", doc.AttachmentName))
	u, err := s.minioClient.PresignedGetObject(ctx, s.bucketName, doc.AttachmentKey, 15*time.Minute, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成下载链接失败: %w", err)
	}
	return u.String(), nil
}

// Reconcile 回放缓冲中积压的写入（附件上传、审计流水），返回回放条数
func (s *DocumentService) Reconcile(ctx context.Context) (int, error) {
	if s.buf == nil {
		return 0, nil
	}
	return s.buf.Flush(ctx, func(ctx context.Context, e buffer.Entry) error {
		switch e.Kind {
		case buffer.KindAttachmentRef:
			if s.minioClient == nil {
				return fmt.Errorf("附件存储仍不可用")
			}
			var stash struct {
				ObjectName  string `json:"object_name"`
				ContentType string `json:"content_type"`
				Content     []byte `json:"content"`
			}
			if err := json.Unmarshal(e.Payload, &stash); err != nil {
				s.logger.Warn("Buffered attachment corrupt, dropping", zap.String("key", e.Key))
				return nil
			}
			_, err := s.minioClient.PutObject(ctx, s.bucketName, stash.ObjectName,
				bytes.NewReader(stash.Content), int64(len(stash.Content)),
				minio.PutObjectOptions{ContentType: stash.ContentType})
			return err
		case buffer.KindRecord:
			var rec entity.Approval
			if err := json.Unmarshal(e.Payload, &rec); err != nil {
				s.logger.Warn("Buffered audit record corrupt, dropping", zap.String("key", e.Key))
				return nil
			}
			return s.repos.Approval.Append(ctx, &rec)
		default:
			return nil
		}
	})
}

// RunReconcileLoop 周期性回放降级缓冲，ctx取消后退出
func (s *DocumentService) RunReconcileLoop(ctx context.Context, interval time.Duration) {
	if s.buf == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Reconcile(ctx)
			if err != nil {
				s.logger.Warn("Buffer reconcile failed", zap.Error(err))
			} else if n > 0 {
				s.logger.Info("Buffered writes reconciled", zap.Int("count", n))
			}
		}
	}
}
