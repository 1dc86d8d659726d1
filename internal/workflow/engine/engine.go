package engine

import (
	"fmt"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/entity"
)

// Decision 一次迁移的完整结果：新状态快照 + 待执行副作用
// 引擎只做决策不做写入；调用方按 Version 做 compare-and-set 落库，
// 竞争失败方观察到 StaleTransition 并丢弃自己的副作用
type Decision struct {
	Status             string
	CurrentRecipientID string
	CurrentStep        int
	EscalationLevel    int
	BounceCount        int
	LastActionAt       time.Time
	Terminal           bool

	// RecipientStatus 收件人行的状态变更（CardRecipient.ID -> 新状态）
	RecipientStatus map[string]string

	// Record 审计流水追加项（cancel 事件无流水时为 nil）
	Record *entity.Approval

	// CascadeRenotify 绕行级联：驳回后需要重新通知其余在途兄弟卡
	CascadeRenotify bool

	Effects []SideEffect
}

// Transition 路由引擎核心迁移函数
// 确定性、无I/O；approve/reject/escalate/cancel 四类事件走同一入口
func Transition(card *entity.ApprovalCard, spec *RouteSpec, ev Event) (*Decision, error) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	// 取消升级对任何状态都幂等，不触碰卡片status
	if ev.Type == EventCancel {
		return &Decision{
			Status:             card.Status,
			CurrentRecipientID: card.CurrentRecipientID,
			CurrentStep:        card.CurrentStep,
			EscalationLevel:    card.EscalationLevel,
			BounceCount:        card.BounceCount,
			LastActionAt:       card.LastActionAt,
			RecipientStatus:    map[string]string{},
			Record: &entity.Approval{
				CardID:     card.ID,
				DocumentID: card.DocumentID,
				ApproverID: ev.ActorID,
				Action:     entity.ActionCanceled,
				Status:     card.Status,
				Comments:   ev.Comment,
				CreatedAt:  ev.At,
			},
			Effects: []SideEffect{{Kind: EffectDisarm}},
		}, nil
	}

	// 终态卡片不再接受任何迁移（重复投递、乱序投递由此拦截）
	if isTerminal(card.Status) {
		return nil, fmt.Errorf("%w: 卡片 %s 已处于终态 %s", ErrStaleTransition, card.ID, card.Status)
	}

	switch ev.Type {
	case EventApprove:
		return applyApprove(card, spec, ev)
	case EventReject:
		return applyReject(card, spec, ev)
	case EventEscalate:
		return applyEscalate(card, spec, ev)
	default:
		return nil, fmt.Errorf("%w: 未知事件类型 %q", ErrStaleTransition, ev.Type)
	}
}

func isTerminal(status string) bool {
	return status == entity.CardStatusApproved ||
		status == entity.CardStatusRejected ||
		status == entity.CardStatusBypassed
}

// base 以当前卡片状态初始化决策
func base(card *entity.ApprovalCard, at time.Time) *Decision {
	return &Decision{
		Status:             card.Status,
		CurrentRecipientID: card.CurrentRecipientID,
		CurrentStep:        card.CurrentStep,
		EscalationLevel:    card.EscalationLevel,
		BounceCount:        card.BounceCount,
		LastActionAt:       at,
		RecipientStatus:    map[string]string{},
	}
}

// findActor 在卡片收件人中定位操作者（支持目录id或user_id）
func findActor(card *entity.ApprovalCard, actorID string) *entity.CardRecipient {
	for i := range card.Recipients {
		r := &card.Recipients[i]
		if r.RecipientID == actorID || r.RecipientUserID == actorID {
			return r
		}
	}
	return nil
}

// recipientsAtStep 指定步骤的收件人（并行卡step恒为0）
func recipientsAtStep(card *entity.ApprovalCard, step int) []*entity.CardRecipient {
	var out []*entity.CardRecipient
	for i := range card.Recipients {
		if card.Recipients[i].StepIndex == step {
			out = append(out, &card.Recipients[i])
		}
	}
	return out
}

func firstPendingAtStep(card *entity.ApprovalCard, step int, decided map[string]string) string {
	for _, r := range recipientsAtStep(card, step) {
		status := r.Status
		if s, ok := decided[r.ID]; ok {
			status = s
		}
		if status == entity.CardStatusPending {
			return r.RecipientID
		}
	}
	return ""
}

func maxStep(card *entity.ApprovalCard) int {
	max := 0
	for i := range card.Recipients {
		if card.Recipients[i].StepIndex > max {
			max = card.Recipients[i].StepIndex
		}
	}
	return max
}

// applyApprove 审批通过
func applyApprove(card *entity.ApprovalCard, spec *RouteSpec, ev Event) (*Decision, error) {
	actor := findActor(card, ev.ActorID)
	if actor == nil {
		return nil, fmt.Errorf("%w: %s 不在卡片 %s 的收件人中", ErrUnauthorizedActor, ev.ActorID, card.ID)
	}

	d := base(card, ev.At)

	// 并行：每张兄弟卡只有自己的收件人是当前责任人，批谁不影响其他兄弟卡
	if card.IsParallel {
		if actor.Status != entity.CardStatusPending {
			return nil, fmt.Errorf("%w: 收件人 %s 已处理过卡片 %s", ErrStaleTransition, ev.ActorID, card.ID)
		}
		d.Status = entity.CardStatusApproved
		d.Terminal = true
		d.RecipientStatus[actor.ID] = entity.CardStatusApproved
		d.Record = record(card, ev, entity.ActionApproved, entity.CardStatusApproved, ev.Comment)
		d.Effects = []SideEffect{
			{Kind: EffectDisarm},
			{Kind: EffectEmit, Topic: TopicApprovalApproved},
		}
		return d, nil
	}

	// 顺序/逆序/双向：只有当前步骤的收件人可以操作
	if actor.StepIndex != card.CurrentStep {
		return nil, fmt.Errorf("%w: %s 不是卡片 %s 的当前责任人", ErrUnauthorizedActor, ev.ActorID, card.ID)
	}
	if actor.Status == entity.CardStatusApproved {
		// 同一人重复审批只计一次
		return nil, fmt.Errorf("%w: %s 已在当前步骤审批过", ErrStaleTransition, ev.ActorID)
	}
	if actor.Status != entity.CardStatusPending {
		return nil, fmt.Errorf("%w: 收件人状态 %s 不可审批", ErrStaleTransition, actor.Status)
	}

	d.RecipientStatus[actor.ID] = entity.CardStatusApproved
	d.Record = record(card, ev, entity.ActionApproved, entity.CardStatusApproved, ev.Comment)

	// 会签：同一步骤凑满 required 个不同审批人才推进
	step := spec.stepAt(card.CurrentStep)
	stepRecipients := recipientsAtStep(card, card.CurrentStep)
	required := step.Required
	if required > len(stepRecipients) {
		required = len(stepRecipients)
	}
	approved := 0
	for _, r := range stepRecipients {
		status := r.Status
		if s, ok := d.RecipientStatus[r.ID]; ok {
			status = s
		}
		if status == entity.CardStatusApproved {
			approved++
		}
	}

	if approved < required {
		// 当前步骤还没凑齐，责任停留在剩余的待审人身上
		d.CurrentRecipientID = firstPendingAtStep(card, card.CurrentStep, d.RecipientStatus)
		d.Effects = []SideEffect{
			{Kind: EffectArmTimer, TimeoutMs: spec.TimeoutForStep(card.CurrentStep)},
		}
		return d, nil
	}

	// 步骤完成，看是否还有下一步
	if card.CurrentStep < maxStep(card) {
		next := card.CurrentStep + 1
		d.CurrentStep = next
		d.CurrentRecipientID = firstPendingAtStep(card, next, d.RecipientStatus)
		d.Status = entity.CardStatusPending
		var targets []string
		for _, r := range recipientsAtStep(card, next) {
			targets = append(targets, r.RecipientID)
		}
		d.Effects = []SideEffect{
			{Kind: EffectNotify, Targets: targets},
			{Kind: EffectArmTimer, TimeoutMs: spec.TimeoutForStep(next)},
			{Kind: EffectEmit, Topic: TopicApprovalAdvanced},
		}
		return d, nil
	}

	// 链路走完，整体通过
	d.Status = entity.CardStatusApproved
	d.Terminal = true
	d.CurrentRecipientID = ""
	d.Effects = []SideEffect{
		{Kind: EffectDisarm},
		{Kind: EffectEmit, Topic: TopicApprovalApproved},
	}
	return d, nil
}

// applyReject 驳回
func applyReject(card *entity.ApprovalCard, spec *RouteSpec, ev Event) (*Decision, error) {
	if ev.Reason == "" {
		return nil, ErrReasonRequired
	}

	actor := findActor(card, ev.ActorID)
	if actor == nil {
		return nil, fmt.Errorf("%w: %s 不在卡片 %s 的收件人中", ErrUnauthorizedActor, ev.ActorID, card.ID)
	}

	d := base(card, ev.At)

	if card.IsParallel {
		if actor.Status != entity.CardStatusPending {
			return nil, fmt.Errorf("%w: 收件人 %s 已处理过卡片 %s", ErrStaleTransition, ev.ActorID, card.ID)
		}
		if card.CascadeOnReject {
			// 绕行级联：驳回不中止传播，本卡转bypassed并重新通知其余兄弟卡
			d.Status = entity.CardStatusBypassed
			d.Terminal = true
			d.CascadeRenotify = true
			d.RecipientStatus[actor.ID] = entity.CardStatusBypassed
			d.Record = record(card, ev, entity.ActionRejected, entity.CardStatusBypassed, ev.Reason)
			d.Effects = []SideEffect{
				{Kind: EffectDisarm},
				{Kind: EffectEmit, Topic: TopicApprovalBypassed},
			}
			return d, nil
		}
		// 普通并行：一张兄弟卡被驳回不自动牵连其他卡
		d.Status = entity.CardStatusRejected
		d.Terminal = true
		d.RecipientStatus[actor.ID] = entity.CardStatusRejected
		d.Record = record(card, ev, entity.ActionRejected, entity.CardStatusRejected, ev.Reason)
		d.Effects = []SideEffect{
			{Kind: EffectDisarm},
			{Kind: EffectEmit, Topic: TopicApprovalRejected},
		}
		return d, nil
	}

	if actor.StepIndex != card.CurrentStep {
		return nil, fmt.Errorf("%w: %s 不是卡片 %s 的当前责任人", ErrUnauthorizedActor, ev.ActorID, card.ID)
	}
	if actor.Status != entity.CardStatusPending {
		return nil, fmt.Errorf("%w: 收件人 %s 已处理过", ErrStaleTransition, ev.ActorID)
	}

	// 双向路由：驳回回弹一步而不是终止，直到超过bounce limit
	if card.RoutingType == entity.RoutingBidirectional {
		bounce := card.BounceCount + 1
		limit := spec.BounceLimit
		if limit <= 0 {
			limit = card.BounceLimit
		}
		if card.CurrentStep > 0 && bounce <= limit {
			prev := card.CurrentStep - 1
			d.BounceCount = bounce
			d.CurrentStep = prev
			d.Status = entity.CardStatusPending
			// 重新激活上一步收件人；本步收件人保持pending等流程再次到达
			var targets []string
			for _, r := range recipientsAtStep(card, prev) {
				d.RecipientStatus[r.ID] = entity.CardStatusPending
				targets = append(targets, r.RecipientID)
			}
			d.CurrentRecipientID = firstPendingAtStep(card, prev, d.RecipientStatus)
			d.Record = record(card, ev, entity.ActionBounced, entity.CardStatusPending, ev.Reason)
			d.Effects = []SideEffect{
				{Kind: EffectNotify, Targets: targets},
				{Kind: EffectArmTimer, TimeoutMs: spec.TimeoutForStep(prev)},
				{Kind: EffectEmit, Topic: TopicApprovalAdvanced},
			}
			return d, nil
		}
		// 无路可退或超过回弹上限：转终态驳回
	}

	d.Status = entity.CardStatusRejected
	d.Terminal = true
	d.RecipientStatus[actor.ID] = entity.CardStatusRejected
	d.Record = record(card, ev, entity.ActionRejected, entity.CardStatusRejected, ev.Reason)
	d.Effects = []SideEffect{
		{Kind: EffectDisarm},
		{Kind: EffectEmit, Topic: TopicApprovalRejected},
	}
	return d, nil
}

// applyEscalate 升级——定时器超时无人响应时由调度器打入
func applyEscalate(card *entity.ApprovalCard, spec *RouteSpec, ev Event) (*Decision, error) {
	d := base(card, ev.At)
	d.EscalationLevel = card.EscalationLevel + 1
	d.Status = entity.CardStatusEscalated
	d.Record = record(card, ev, entity.ActionEscalated, entity.CardStatusEscalated,
		fmt.Sprintf("escalation level %d", d.EscalationLevel))

	if card.IsParallel {
		// 并行：不挪卡，按权限链逐级通知上级
		if len(spec.AuthorityChain) > 0 {
			idx := d.EscalationLevel - 1
			if idx >= len(spec.AuthorityChain) {
				idx = len(spec.AuthorityChain) - 1
			}
			d.Effects = append(d.Effects, SideEffect{Kind: EffectNotifyRole, Role: spec.AuthorityChain[idx]})
		} else {
			d.Effects = append(d.Effects, SideEffect{Kind: EffectNotify, Targets: pendingRecipientIDs(card)})
		}
	} else {
		step := spec.stepAt(card.CurrentStep)
		if len(step.EscalationRoles) > 0 {
			// 升级角色接棒，而不是链上的下一个收件人
			idx := d.EscalationLevel - 1
			if idx >= len(step.EscalationRoles) {
				idx = len(step.EscalationRoles) - 1
			}
			d.Effects = append(d.Effects, SideEffect{Kind: EffectNotifyRole, Role: step.EscalationRoles[idx]})
		} else {
			// 没配升级角色：原地催办，不改变责任人
			d.Effects = append(d.Effects, SideEffect{Kind: EffectNotify,
				Targets: pendingStepRecipientIDs(card, card.CurrentStep)})
		}
	}

	d.Effects = append(d.Effects, SideEffect{Kind: EffectEmit, Topic: TopicApprovalEscalated})

	// 循环升级：同样的超时重新装载，直到卡片到达终态；一次性升级打完即收
	if spec.Escalation.Cyclic {
		d.Effects = append(d.Effects, SideEffect{Kind: EffectArmTimer, TimeoutMs: spec.Escalation.TimeoutMs})
	} else {
		d.Effects = append(d.Effects, SideEffect{Kind: EffectDisarm})
	}
	return d, nil
}

func pendingRecipientIDs(card *entity.ApprovalCard) []string {
	var out []string
	for i := range card.Recipients {
		if card.Recipients[i].Status == entity.CardStatusPending {
			out = append(out, card.Recipients[i].RecipientID)
		}
	}
	return out
}

func pendingStepRecipientIDs(card *entity.ApprovalCard, step int) []string {
	var out []string
	for _, r := range recipientsAtStep(card, step) {
		if r.Status == entity.CardStatusPending {
			out = append(out, r.RecipientID)
		}
	}
	return out
}

func record(card *entity.ApprovalCard, ev Event, action, status, comments string) *entity.Approval {
	return &entity.Approval{
		CardID:     card.ID,
		DocumentID: card.DocumentID,
		ApproverID: ev.ActorID,
		Action:     action,
		Status:     status,
		Comments:   comments,
		CreatedAt:  ev.At,
	}
}
