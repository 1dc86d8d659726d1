package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// 通知分发器 — 路由引擎的外部协作方
// 引擎每次状态迁移后把新责任人告知这里；分发是fire-and-forget，
// 引擎从不等待投递结果，下游按at-least-once自行兜底
// =============================================================================

// Message 一次通知的内容
type Message struct {
	RecipientID string `json:"recipient_id"`
	CardID      string `json:"card_id"`
	TrackingID  string `json:"tracking_id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"` // assignment/reminder/escalation/result
	Body        string `json:"body,omitempty"`
}

// Dispatcher 通知分发契约
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// WebhookDispatcher 把通知POST到配置的webhook端点
// 实际的推送/短信/邮件投递由端点后面的网关完成，不在本系统范围内
type WebhookDispatcher struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewWebhookDispatcher 创建webhook分发器
func NewWebhookDispatcher(endpoint, token string) *WebhookDispatcher {
	return &WebhookDispatcher{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Dispatch 投递一条通知
func (d *WebhookDispatcher) Dispatch(ctx context.Context, msg Message) error {
	bodyBytes, _ := json.Marshal(msg)

	req, err := http.NewRequestWithContext(ctx, "POST", d.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建通知请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("投递通知失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("通知端点返回 %d", resp.StatusCode)
	}
	return nil
}

// NopDispatcher 未配置端点时的空实现
type NopDispatcher struct{}

// Dispatch 丢弃通知
func (NopDispatcher) Dispatch(ctx context.Context, msg Message) error {
	return nil
}
