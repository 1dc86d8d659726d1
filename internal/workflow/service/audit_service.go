package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/MarioSri/docflow/internal/workflow/entity"
	"github.com/MarioSri/docflow/internal/workflow/repository"
	"github.com/xuri/excelize/v2"
)

// AuditService 审计流水服务
// approvals 表只增不改，这里提供查询和报表导出
type AuditService struct {
	approvalRepo *repository.ApprovalRepository
	cardRepo     *repository.CardRepository
	docRepo      *repository.DocumentRepository
}

// NewAuditService 创建审计服务
func NewAuditService(approvalRepo *repository.ApprovalRepository,
	cardRepo *repository.CardRepository, docRepo *repository.DocumentRepository) *AuditService {
	return &AuditService{approvalRepo: approvalRepo, cardRepo: cardRepo, docRepo: docRepo}
}

// CardHistory 某张卡的动作流水
func (s *AuditService) CardHistory(ctx context.Context, cardID string) ([]entity.Approval, error) {
	card, err := s.cardRepo.FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return s.approvalRepo.ListByCard(ctx, card.ID)
}

// DocumentHistory 某份文档的全部流水（跨并行兄弟卡）
func (s *AuditService) DocumentHistory(ctx context.Context, trackingID string) ([]entity.Approval, error) {
	return s.approvalRepo.ListByDocument(ctx, trackingID)
}

// ExportDocumentXLSX 导出文档审计报表
func (s *AuditService) ExportDocumentXLSX(ctx context.Context, trackingID string) (*bytes.Buffer, error) {
	doc, err := s.docRepo.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	records, err := s.approvalRepo.ListByDocument(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Audit"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"时间", "卡片ID", "操作人", "动作", "结果状态", "备注"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, rec := range records {
		values := []interface{}{
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.CardID,
			rec.ApproverID,
			rec.Action,
			rec.Status,
			rec.Comments,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	// 摘要页
	summary := "Summary"
	f.NewSheet(summary)
	f.SetCellValue(summary, "A1", "标题")
	f.SetCellValue(summary, "B1", doc.Title)
	f.SetCellValue(summary, "A2", "Tracking ID")
	f.SetCellValue(summary, "B2", doc.TrackingID)
	f.SetCellValue(summary, "A3", "路由类型")
	f.SetCellValue(summary, "B3", doc.RoutingType)
	f.SetCellValue(summary, "A4", "状态")
	f.SetCellValue(summary, "B4", doc.Status)
	f.SetCellValue(summary, "A5", "流水条数")
	f.SetCellValue(summary, "B5", len(records))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("导出报表失败: %w", err)
	}
	return buf, nil
}
