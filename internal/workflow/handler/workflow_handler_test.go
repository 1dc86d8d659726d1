package handler

import (
	"testing"
	"time"

	"github.com/MarioSri/docflow/internal/config"
	"github.com/MarioSri/docflow/internal/workflow/repository"
	"github.com/MarioSri/docflow/internal/workflow/service"
	"github.com/MarioSri/docflow/internal/workflow/testutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupWorkflowTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	cfg := &config.Config{}
	cfg.JWT.Secret = testutil.JWTSecret
	cfg.Escalation.SweepInterval = time.Second

	repos := repository.NewRepositories(db)
	svcs := service.NewServices(repos, nil, cfg, zap.NewNop())
	h := NewHandlers(svcs)

	router := testutil.SetupRouter()
	RegisterRoutes(router, h, cfg)
	return router, db
}

// submitDocument 提交文档并返回文档ID和创建出的卡片
func submitDocument(t *testing.T, router *gin.Engine, token string, body map[string]interface{}) (string, []map[string]interface{}) {
	t.Helper()
	w := testutil.DoRequest(router, "POST", "/api/v1/documents", body, token)
	if w.Code != 201 {
		t.Fatalf("Submit failed: status=%d body=%s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	doc := data["document"].(map[string]interface{})

	var cards []map[string]interface{}
	for _, c := range data["cards"].([]interface{}) {
		cards = append(cards, c.(map[string]interface{}))
	}
	return doc["tracking_id"].(string), cards
}

func cardForRecipient(t *testing.T, cards []map[string]interface{}, recipientID string) string {
	t.Helper()
	for _, c := range cards {
		if c["current_recipient_id"] == recipientID {
			return c["id"].(string)
		}
	}
	t.Fatalf("No card assigned to recipient %s", recipientID)
	return ""
}

func TestSequentialChainOverHTTP(t *testing.T) {
	router, db := setupWorkflowTest(t)
	testutil.SeedRecipient(t, db, "alice", "Alice", "employee")
	testutil.SeedRecipient(t, db, "bob", "Bob", "dean")

	submitter := testutil.GenerateTestToken("carol", "Carol", "carol@test.com", nil)
	aliceToken := testutil.GenerateTestToken("alice", "Alice", "alice@test.com", nil)
	bobToken := testutil.GenerateTestToken("bob", "Bob", "bob@test.com", nil)

	docID, cards := submitDocument(t, router, submitter, map[string]interface{}{
		"title":        "经费申请",
		"routing_type": "sequential",
		"recipients":   []map[string]interface{}{{"id": "alice"}, {"id": "bob"}},
	})
	if len(cards) != 1 {
		t.Fatalf("Expected 1 card for sequential routing, got %d", len(cards))
	}
	cardID := cards[0]["id"].(string)

	// alice 是第一步当前审批人
	w := testutil.DoRequest(router, "GET", "/api/v1/approvals/pending", nil, aliceToken)
	resp := testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 pending card for alice, got %d", len(items))
	}

	// bob 在第二步，链路没走到他之前不算待办
	w = testutil.DoRequest(router, "GET", "/api/v1/approvals/pending", nil, bobToken)
	resp = testutil.ParseResponse(w)
	items = resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 0 {
		t.Fatalf("Future-step recipient must have empty pending list, got %d", len(items))
	}

	// bob 还不能动卡
	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/approve",
		map[string]interface{}{"comment": "ok"}, bobToken)
	if w.Code != 403 {
		t.Errorf("Expected 403 for non-current actor, got %d: %s", w.Code, w.Body.String())
	}

	// alice 通过后卡片推进到 bob
	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/approve",
		map[string]interface{}{"comment": "同意"}, aliceToken)
	if w.Code != 200 {
		t.Fatalf("Approve failed: status=%d body=%s", w.Code, w.Body.String())
	}
	card := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if card["current_recipient_id"] != "bob" {
		t.Errorf("Expected chain to advance to bob, got %v", card["current_recipient_id"])
	}
	if card["status"] != "pending" {
		t.Errorf("Expected card still pending, got %v", card["status"])
	}

	// 责任移交后卡片进入 bob 的待办
	w = testutil.DoRequest(router, "GET", "/api/v1/approvals/pending", nil, bobToken)
	resp = testutil.ParseResponse(w)
	items = resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 pending card for bob after handoff, got %d", len(items))
	}

	// bob 终审通过，文档整体通过
	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/approve",
		map[string]interface{}{"comment": "同意"}, bobToken)
	if w.Code != 200 {
		t.Fatalf("Final approve failed: status=%d body=%s", w.Code, w.Body.String())
	}
	card = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if card["status"] != "approved" {
		t.Errorf("Expected card approved, got %v", card["status"])
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID, nil, submitter)
	doc := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if doc["status"] != "approved" {
		t.Errorf("Expected document approved, got %v", doc["status"])
	}
}

func TestRejectRequiresReasonOverHTTP(t *testing.T) {
	router, db := setupWorkflowTest(t)
	testutil.SeedRecipient(t, db, "alice", "Alice", "employee")

	submitter := testutil.GenerateTestToken("carol", "Carol", "carol@test.com", nil)
	aliceToken := testutil.GenerateTestToken("alice", "Alice", "alice@test.com", nil)

	_, cards := submitDocument(t, router, submitter, map[string]interface{}{
		"title":        "请假条",
		"routing_type": "sequential",
		"recipients":   []map[string]interface{}{{"id": "alice"}},
	})
	cardID := cards[0]["id"].(string)

	// 不带理由的驳回被拒
	w := testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/reject",
		map[string]interface{}{}, aliceToken)
	if w.Code != 400 {
		t.Fatalf("Expected 400 for reject without reason, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if int(resp["code"].(float64)) != 40010 {
		t.Errorf("Expected code 40010, got %v", resp["code"])
	}

	// 带理由驳回进入终态
	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/reject",
		map[string]interface{}{"reason": "材料不全"}, aliceToken)
	if w.Code != 200 {
		t.Fatalf("Reject failed: status=%d body=%s", w.Code, w.Body.String())
	}
	card := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if card["status"] != "rejected" {
		t.Errorf("Expected card rejected, got %v", card["status"])
	}

	// 终态卡不再接受动作
	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/approve",
		map[string]interface{}{"comment": "late"}, aliceToken)
	if w.Code != 409 {
		t.Errorf("Expected 409 for action on terminal card, got %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	if int(resp["code"].(float64)) != 40910 {
		t.Errorf("Expected code 40910, got %v", resp["code"])
	}
}

func TestParallelCascadeBypassOverHTTP(t *testing.T) {
	router, db := setupWorkflowTest(t)
	testutil.SeedRecipient(t, db, "alice", "Alice", "dean")
	testutil.SeedRecipient(t, db, "bob", "Bob", "registrar")

	submitter := testutil.GenerateTestToken("carol", "Carol", "carol@test.com", nil)
	aliceToken := testutil.GenerateTestToken("alice", "Alice", "alice@test.com", nil)
	bobToken := testutil.GenerateTestToken("bob", "Bob", "bob@test.com", nil)

	docID, cards := submitDocument(t, router, submitter, map[string]interface{}{
		"title":             "紧急采购",
		"routing_type":      "parallel",
		"bypass":            true,
		"cascade_on_reject": true,
		"recipients":        []map[string]interface{}{{"id": "alice"}, {"id": "bob"}},
	})
	if len(cards) != 2 {
		t.Fatalf("Expected 2 sibling cards, got %d", len(cards))
	}
	aliceCard := cardForRecipient(t, cards, "alice")
	bobCard := cardForRecipient(t, cards, "bob")
	trackingCardID := cards[0]["tracking_card_id"].(string)

	// alice 驳回：级联绕行，本卡落 bypassed
	w := testutil.DoRequest(router, "POST", "/api/v1/approvals/"+aliceCard+"/reject",
		map[string]interface{}{"reason": "预算超标"}, aliceToken)
	if w.Code != 200 {
		t.Fatalf("Reject failed: status=%d body=%s", w.Code, w.Body.String())
	}
	card := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if card["status"] != "bypassed" {
		t.Errorf("Expected cascade reject to land bypassed, got %v", card["status"])
	}

	// bob 的兄弟卡不受影响，仍可独立通过
	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+bobCard+"/approve",
		map[string]interface{}{"comment": "同意"}, bobToken)
	if w.Code != 200 {
		t.Fatalf("Sibling approve failed: status=%d body=%s", w.Code, w.Body.String())
	}

	// 组内状态汇总
	w = testutil.DoRequest(router, "GET", "/api/v1/approvals/group/"+trackingCardID, nil, submitter)
	group := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if int(group["approved"].(float64)) != 1 || int(group["bypassed"].(float64)) != 1 {
		t.Errorf("Unexpected group tally: %v", group)
	}

	// 绕行后剩余审批人全部通过，文档整体通过
	w = testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID, nil, submitter)
	doc := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if doc["status"] != "approved" {
		t.Errorf("Expected document approved after group resolved, got %v", doc["status"])
	}
}

func TestReverseCoApprovalGroupsStayIntact(t *testing.T) {
	router, db := setupWorkflowTest(t)
	testutil.SeedRecipient(t, db, "alice", "Alice", "employee")
	testutil.SeedRecipient(t, db, "bob", "Bob", "dean")
	testutil.SeedRecipient(t, db, "carl", "Carl", "dean")

	submitter := testutil.GenerateTestToken("dora", "Dora", "dora@test.com", nil)
	aliceToken := testutil.GenerateTestToken("alice", "Alice", "alice@test.com", nil)
	bobToken := testutil.GenerateTestToken("bob", "Bob", "bob@test.com", nil)
	carlToken := testutil.GenerateTestToken("carl", "Carl", "carl@test.com", nil)

	// 正向定义：第0步 alice 单签，第1步 bob+carl 会签（required 2）
	// 逆序执行时会签组必须整组先走，且quorum跟着组走
	_, cards := submitDocument(t, router, submitter, map[string]interface{}{
		"title":        "年度预算",
		"routing_type": "reverse",
		"steps": []map[string]interface{}{
			{"order": 0, "required_approvals": 1},
			{"order": 1, "required_approvals": 2},
		},
		"recipients": []map[string]interface{}{
			{"id": "alice", "step": 0},
			{"id": "bob", "step": 1},
			{"id": "carl", "step": 1},
		},
	})
	cardID := cards[0]["id"].(string)
	if got := cards[0]["current_recipient_id"]; got != "bob" {
		t.Fatalf("Expected reversed chain to start at bob, got %v", got)
	}

	// alice 在逆序后的末步，还轮不到她
	w := testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/approve",
		map[string]interface{}{"comment": "早到"}, aliceToken)
	if w.Code != 403 {
		t.Fatalf("Expected 403 for last-step recipient acting first, got %d: %s", w.Code, w.Body.String())
	}

	// bob 通过后仍停在会签步骤等 carl
	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/approve",
		map[string]interface{}{"comment": "同意"}, bobToken)
	if w.Code != 200 {
		t.Fatalf("Approve failed: status=%d body=%s", w.Code, w.Body.String())
	}
	card := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if int(card["current_step"].(float64)) != 0 {
		t.Fatalf("Co-approval quorum not met, chain must stay at step 0, got step %v", card["current_step"])
	}

	// carl 补齐quorum，推进到 alice
	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/approve",
		map[string]interface{}{"comment": "同意"}, carlToken)
	if w.Code != 200 {
		t.Fatalf("Approve failed: status=%d body=%s", w.Code, w.Body.String())
	}
	card = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if card["current_recipient_id"] != "alice" {
		t.Fatalf("Expected chain to advance to alice, got %v", card["current_recipient_id"])
	}

	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/approve",
		map[string]interface{}{"comment": "同意"}, aliceToken)
	card = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if card["status"] != "approved" {
		t.Errorf("Expected card approved, got %v", card["status"])
	}
}

func TestPlainBypassSkipsApproval(t *testing.T) {
	router, db := setupWorkflowTest(t)
	testutil.SeedRecipient(t, db, "alice", "Alice", "dean")
	testutil.SeedRecipient(t, db, "bob", "Bob", "registrar")

	submitter := testutil.DefaultTestToken()

	docID, cards := submitDocument(t, router, submitter, map[string]interface{}{
		"title":        "校长特批",
		"routing_type": "sequential",
		"bypass":       true,
		"recipients":   []map[string]interface{}{{"id": "alice"}, {"id": "bob"}},
	})
	if cards[0]["status"] != "bypassed" {
		t.Errorf("Expected bypass card born bypassed, got %v", cards[0]["status"])
	}

	w := testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID, nil, submitter)
	doc := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if doc["status"] != "bypassed" {
		t.Errorf("Expected document bypassed, got %v", doc["status"])
	}
}

func TestReopenBypassRequiresRole(t *testing.T) {
	router, db := setupWorkflowTest(t)
	testutil.SeedRecipient(t, db, "alice", "Alice", "employee")

	submitter := testutil.GenerateTestToken("carol", "Carol", "carol@test.com", nil)
	aliceToken := testutil.GenerateTestToken("alice", "Alice", "alice@test.com", nil)
	principal := testutil.GenerateTestToken("pat", "Pat", "pat@test.com", []string{"principal"})

	_, cards := submitDocument(t, router, submitter, map[string]interface{}{
		"title":        "报销单",
		"routing_type": "sequential",
		"recipients":   []map[string]interface{}{{"id": "alice"}},
	})
	cardID := cards[0]["id"].(string)

	testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/reject",
		map[string]interface{}{"reason": "发票缺失"}, aliceToken)

	// 普通用户无权绕行复活
	w := testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/reopen-bypass", nil, aliceToken)
	if w.Code != 403 {
		t.Errorf("Expected 403 for unprivileged reopen, got %d", w.Code)
	}

	// principal 复活出一张新的绕行卡，原卡保持终态不变
	w = testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/reopen-bypass", nil, principal)
	if w.Code != 201 {
		t.Fatalf("Reopen bypass failed: status=%d body=%s", w.Code, w.Body.String())
	}
	reopened := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if reopened["id"] == cardID {
		t.Error("Expected reopen to create a new card, got the original")
	}
	if reopened["status"] != "bypassed" {
		t.Errorf("Expected reopened card bypassed, got %v", reopened["status"])
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/approvals/"+cardID, nil, submitter)
	original := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if original["status"] != "rejected" {
		t.Errorf("Expected original card untouched, got %v", original["status"])
	}
}

func TestDocumentTrackOverHTTP(t *testing.T) {
	router, db := setupWorkflowTest(t)
	testutil.SeedRecipient(t, db, "alice", "Alice", "employee")

	submitter := testutil.GenerateTestToken("carol", "Carol", "carol@test.com", nil)
	aliceToken := testutil.GenerateTestToken("alice", "Alice", "alice@test.com", nil)

	docID, cards := submitDocument(t, router, submitter, map[string]interface{}{
		"title":        "差旅报告",
		"routing_type": "sequential",
		"recipients":   []map[string]interface{}{{"id": "alice"}},
	})
	cardID := cards[0]["id"].(string)

	testutil.DoRequest(router, "POST", "/api/v1/approvals/"+cardID+"/approve",
		map[string]interface{}{"comment": "收到"}, aliceToken)

	w := testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID+"/track", nil, submitter)
	if w.Code != 200 {
		t.Fatalf("Track failed: status=%d body=%s", w.Code, w.Body.String())
	}
	track := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if track["document"].(map[string]interface{})["status"] != "approved" {
		t.Errorf("Expected tracked document approved, got %v", track["document"])
	}
	approvals := track["approvals"].([]interface{})
	if len(approvals) == 0 {
		t.Error("Expected approval history in track result")
	}
}
