package engine

import "errors"

// 错误分类——对外必须保持可区分（errors.Is），HTTP层据此映射具体错误码
var (
	// ErrUnauthorizedActor 操作者不是当前责任人（顺序/双向）或不在收件人集合内（并行）
	// 可恢复：上报调用方，状态不变
	ErrUnauthorizedActor = errors.New("unauthorized actor")

	// ErrStaleTransition 事件所假设的卡片状态已经被超越（升级与人工操作竞争、消息重放）
	// 可恢复：调用方刷新后按需静默丢弃
	ErrStaleTransition = errors.New("stale transition")

	// ErrInvalidRoute 路由定义非法（空步骤、order不连续、双向bounce limit为0）
	// 创建期致命：卡片不会被创建
	ErrInvalidRoute = errors.New("invalid route definition")

	// ErrNoValidRecipients 所有收件人都无法通过目录解析
	// 提交期致命：中止文档创建
	ErrNoValidRecipients = errors.New("no valid recipients")

	// ErrSchedulerUnavailable 升级定时器无法装载
	// 卡片仍按pending创建，但进入降级模式（只剩人工升级）
	ErrSchedulerUnavailable = errors.New("escalation scheduler unavailable")

	// ErrReasonRequired 驳回必须携带非空理由
	ErrReasonRequired = errors.New("rejection reason required")
)
