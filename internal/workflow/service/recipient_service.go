package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/entity"
	"github.com/MarioSri/docflow/internal/workflow/repository"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// RecipientService 收件人目录服务
type RecipientService struct {
	repo *repository.RecipientRepository
}

// NewRecipientService 创建收件人目录服务
func NewRecipientService(repo *repository.RecipientRepository) *RecipientService {
	return &RecipientService{repo: repo}
}

// List 在册收件人列表
func (s *RecipientService) List(ctx context.Context) ([]entity.Recipient, error) {
	return s.repo.ListActive(ctx)
}

// Get 按id/user_id/email查收件人
func (s *RecipientService) Get(ctx context.Context, idOrEmail string) (*entity.Recipient, error) {
	return s.repo.FindByIDOrEmail(ctx, idOrEmail)
}

// CreateRecipientRequest 创建收件人请求
type CreateRecipientRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Department  string `json:"department"`
	Branch      string `json:"branch"`
	Designation string `json:"designation"`
	Phone       string `json:"phone"`
}

// Create 创建收件人
func (s *RecipientService) Create(ctx context.Context, req *CreateRecipientRequest) (*entity.Recipient, error) {
	now := time.Now()
	rec := &entity.Recipient{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Name:        req.Name,
		Email:       req.Email,
		Role:        req.Role,
		Department:  req.Department,
		Branch:      req.Branch,
		Designation: req.Designation,
		Phone:       req.Phone,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.Role == "" {
		rec.Role = "employee"
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("创建收件人失败: %w", err)
	}
	return rec, nil
}

// Update 更新收件人
func (s *RecipientService) Update(ctx context.Context, idOrEmail string, req *CreateRecipientRequest) (*entity.Recipient, error) {
	rec, err := s.repo.FindByIDOrEmail(ctx, idOrEmail)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		rec.Name = req.Name
	}
	if req.Email != "" {
		rec.Email = req.Email
	}
	if req.Role != "" {
		rec.Role = req.Role
	}
	if req.Department != "" {
		rec.Department = req.Department
	}
	if req.Branch != "" {
		rec.Branch = req.Branch
	}
	if req.Designation != "" {
		rec.Designation = req.Designation
	}
	if req.Phone != "" {
		rec.Phone = req.Phone
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("更新收件人失败: %w", err)
	}
	return rec, nil
}

// Deactivate 下线收件人（目录里保留，不再接收新路由）
func (s *RecipientService) Deactivate(ctx context.Context, idOrEmail string) error {
	rec, err := s.repo.FindByIDOrEmail(ctx, idOrEmail)
	if err != nil {
		return err
	}
	rec.IsActive = false
	return s.repo.Update(ctx, rec)
}

// ImportResult CSV导入结果
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportCSV 批量导入收件人目录
// 列顺序：user_id,name,email,role,department；gbk=true时按GBK解码
func (s *RecipientService) ImportCSV(ctx context.Context, r io.Reader, gbk bool) (*ImportResult, error) {
	if gbk {
		r = transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	result := &ImportResult{}
	var recs []entity.Recipient
	now := time.Now()
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("解析CSV失败: %w", err)
		}
		line++
		// 表头行跳过
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "user_id") {
			continue
		}
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: user_id and name required", line))
			continue
		}
		rec := entity.Recipient{
			ID:        uuid.New().String(),
			UserID:    strings.TrimSpace(row[0]),
			Name:      strings.TrimSpace(row[1]),
			Role:      "employee",
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if len(row) > 2 {
			rec.Email = strings.TrimSpace(row[2])
		}
		if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
			rec.Role = strings.TrimSpace(row[3])
		}
		if len(row) > 4 {
			rec.Department = strings.TrimSpace(row[4])
		}
		recs = append(recs, rec)
	}

	if len(recs) > 0 {
		if err := s.repo.UpsertBatch(ctx, recs); err != nil {
			return nil, fmt.Errorf("导入收件人失败: %w", err)
		}
	}
	result.Imported = len(recs)
	return result, nil
}
