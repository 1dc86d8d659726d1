package engine

import "time"

// EventType 引擎消费的事件类型
// 人工操作（approve/reject）和定时器触发（escalate）是仅有的两类输入，
// 外加操作员取消升级；全部走同一个 Transition 函数
type EventType string

const (
	EventApprove  EventType = "approve"
	EventReject   EventType = "reject"
	EventEscalate EventType = "escalate"
	EventCancel   EventType = "cancel_escalation"
)

// Event 一次状态迁移的输入
type Event struct {
	Type    EventType
	ActorID string // approve/reject 的操作者；escalate/cancel 为空或操作员id
	Comment string
	Reason  string // reject 必填
	At      time.Time
}

// EffectKind 副作用指令类型
// 引擎本身不做任何I/O，所有持久化/通知/定时器操作以指令形式返回给调用方执行
type EffectKind string

const (
	EffectNotify     EffectKind = "notify"      // 通知 Targets 中的收件人
	EffectNotifyRole EffectKind = "notify_role" // 按角色解析后通知（升级目标）
	EffectArmTimer   EffectKind = "arm_timer"   // (重新)装载升级定时器
	EffectDisarm     EffectKind = "disarm"      // 取消升级定时器
	EffectEmit       EffectKind = "emit"        // 发布事件主题
)

// SideEffect 待执行的副作用指令
type SideEffect struct {
	Kind      EffectKind
	Topic     string   // EffectEmit: 事件主题
	Targets   []string // EffectNotify: 收件人id列表
	Role      string   // EffectNotifyRole: 升级目标角色
	TimeoutMs int64    // EffectArmTimer: 毫秒超时
}
