package engine

import (
	"encoding/json"
	"fmt"

	"github.com/MarioSri/docflow/internal/workflow/entity"
)

// 事件主题——每次状态迁移对外广播一个
const (
	TopicDocumentCreated   = "document.created"
	TopicApprovalCreated   = "approval.created"
	TopicApprovalAdvanced  = "approval.advanced"
	TopicApprovalEscalated = "approval.escalated"
	TopicApprovalApproved  = "approval.approved"
	TopicApprovalRejected  = "approval.rejected"
	TopicApprovalBypassed  = "approval.bypassed"
)

// StepSpec 单个路由步骤的执行参数
type StepSpec struct {
	Order           int      `json:"order"`
	Role            string   `json:"role,omitempty"`
	Required        int      `json:"required_approvals"`
	TimeoutMs       int64    `json:"timeout_ms,omitempty"`
	EscalationRoles []string `json:"escalation_roles,omitempty"`
}

// EscalationSpec 升级策略（已在装载前归一化为毫秒）
type EscalationSpec struct {
	Enabled   bool  `json:"enabled"`
	TimeoutMs int64 `json:"timeout_ms"`
	Cyclic    bool  `json:"cyclic"`
}

// RouteSpec 卡片创建时固化的路由快照
// 存进 approval_cards.workflow，之后模板再怎么改都不影响在途卡片
type RouteSpec struct {
	Type            string         `json:"type"`
	Steps           []StepSpec     `json:"steps"`
	BounceLimit     int            `json:"bounce_limit,omitempty"`
	CascadeOnReject bool           `json:"cascade_on_reject,omitempty"`
	Escalation      EscalationSpec `json:"escalation"`
	AuthorityChain  []string       `json:"authority_chain,omitempty"`
}

// ParseSpec 从卡片的 workflow 快照还原路由参数
func ParseSpec(raw json.RawMessage) (*RouteSpec, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: 卡片缺少路由快照", ErrInvalidRoute)
	}
	var spec RouteSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("%w: 解析路由快照失败: %v", ErrInvalidRoute, err)
	}
	return &spec, nil
}

// Validate 路由定义校验——非法定义在创建期拦截，卡片不会落库
func (s *RouteSpec) Validate() error {
	switch s.Type {
	case entity.RoutingSequential, entity.RoutingParallel, entity.RoutingReverse, entity.RoutingBidirectional:
	default:
		return fmt.Errorf("%w: 未知路由类型 %q", ErrInvalidRoute, s.Type)
	}

	// 并行广播不依赖步骤序列，其余类型必须有非空steps
	if s.Type != entity.RoutingParallel {
		if len(s.Steps) == 0 {
			return fmt.Errorf("%w: steps不能为空", ErrInvalidRoute)
		}
		// order 必须唯一且连续（0..n-1）
		seen := make(map[int]bool, len(s.Steps))
		for _, st := range s.Steps {
			if st.Order < 0 || st.Order >= len(s.Steps) {
				return fmt.Errorf("%w: step order %d 越界", ErrInvalidRoute, st.Order)
			}
			if seen[st.Order] {
				return fmt.Errorf("%w: step order %d 重复", ErrInvalidRoute, st.Order)
			}
			seen[st.Order] = true
		}
	}

	if s.Type == entity.RoutingBidirectional && s.BounceLimit <= 0 {
		return fmt.Errorf("%w: 双向路由 bounce limit 必须大于0", ErrInvalidRoute)
	}

	for _, st := range s.Steps {
		if st.Required < 0 {
			return fmt.Errorf("%w: step %d required_approvals 非法", ErrInvalidRoute, st.Order)
		}
	}
	return nil
}

// Marshal 序列化为卡片快照
func (s *RouteSpec) Marshal() json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

// stepAt 返回指定步骤的参数；未配置的步骤按默认值（会签数1、无升级角色）
func (s *RouteSpec) stepAt(index int) StepSpec {
	for _, st := range s.Steps {
		if st.Order == index {
			if st.Required <= 0 {
				st.Required = 1
			}
			return st
		}
	}
	return StepSpec{Order: index, Required: 1}
}

// TimeoutForStep 步骤级超时覆盖，未配置时退回路由级超时
func (s *RouteSpec) TimeoutForStep(index int) int64 {
	st := s.stepAt(index)
	if st.TimeoutMs > 0 {
		return st.TimeoutMs
	}
	return s.Escalation.TimeoutMs
}
