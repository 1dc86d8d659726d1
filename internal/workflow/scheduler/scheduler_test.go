package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/engine"
	"github.com/MarioSri/docflow/internal/workflow/entity"
)

// memStore 内存版时钟存储，测试专用
type memStore struct {
	mu     sync.Mutex
	states map[string]entity.EscalationState
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]entity.EscalationState)}
}

func (m *memStore) Arm(ctx context.Context, st *entity.EscalationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.CardID] = *st
	return nil
}

func (m *memStore) Disarm(ctx context.Context, cardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[cardID]; ok {
		st.Stopped = true
		m.states[cardID] = st
	}
	return nil
}

func (m *memStore) DisarmIfDeadline(ctx context.Context, cardID string, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[cardID]; ok && st.Deadline.Equal(deadline) {
		st.Stopped = true
		m.states[cardID] = st
	}
	return nil
}

func (m *memStore) Due(ctx context.Context, now time.Time) ([]entity.EscalationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []entity.EscalationState
	for _, st := range m.states {
		if !st.Stopped && !st.Deadline.After(now) {
			due = append(due, st)
		}
	}
	return due, nil
}

func TestTimerFiresExactlyOnceAfterDeadline(t *testing.T) {
	store := newMemStore()
	clock := NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	fired := 0
	s := New(store, clock, func(ctx context.Context, st entity.EscalationState) error {
		fired++
		// 一次性升级：引擎的Disarm副作用
		return store.Disarm(ctx, st.CardID)
	}, time.Second, nil)

	if err := s.Arm(context.Background(), "card-1", "doc-1", entity.EscalationModeSequential, 60_000, false); err != nil {
		t.Fatalf("arm failed: %v", err)
	}

	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("timer must not fire before deadline, fired %d", n)
	}

	clock.Advance(61 * time.Second)
	if n := s.Sweep(context.Background()); n != 1 {
		t.Fatalf("expected exactly one fire after deadline, got %d", n)
	}
	if fired != 1 {
		t.Fatalf("fire callback expected once, got %d", fired)
	}

	// 已停表的时钟不再触发
	clock.Advance(10 * time.Minute)
	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("disarmed timer fired again: %d", n)
	}
}

func TestCyclicTimerKeepsFiringUntilDisarmed(t *testing.T) {
	store := newMemStore()
	clock := NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	var s *Scheduler
	fired := 0
	s = New(store, clock, func(ctx context.Context, st entity.EscalationState) error {
		fired++
		// 循环升级：引擎的ArmTimer副作用重新装载同样的超时
		return s.Arm(ctx, st.CardID, st.DocumentID, st.Mode, st.TimeoutMs, true)
	}, time.Second, nil)

	s.Arm(context.Background(), "card-1", "doc-1", entity.EscalationModeParallel, 30_000, true)

	for i := 0; i < 3; i++ {
		clock.Advance(31 * time.Second)
		if n := s.Sweep(context.Background()); n != 1 {
			t.Fatalf("cycle %d: expected one fire, got %d", i+1, n)
		}
	}
	if fired != 3 {
		t.Fatalf("cyclic timer expected 3 fires, got %d", fired)
	}

	// 终态后停表，循环终止
	s.Disarm(context.Background(), "card-1")
	clock.Advance(time.Hour)
	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("disarmed cyclic timer fired: %d", n)
	}
}

func TestMissedDeadlineFiresOnRecovery(t *testing.T) {
	store := newMemStore()
	clock := NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	// 宕机前装载的时钟
	armClock := NewFakeClock(clock.Now())
	armScheduler := New(store, armClock, nil, time.Second, nil)
	armScheduler.Arm(context.Background(), "card-1", "doc-1", entity.EscalationModeSequential, 60_000, false)

	// 调度器宕机错过deadline，恢复后的首次sweep必须补打
	clock.Advance(2 * time.Hour)
	fired := 0
	recovered := New(store, clock, func(ctx context.Context, st entity.EscalationState) error {
		fired++
		return store.Disarm(ctx, st.CardID)
	}, time.Second, nil)

	if n := recovered.Sweep(context.Background()); n != 1 {
		t.Fatalf("missed deadline must fire on recovery, got %d", n)
	}
	if fired != 1 {
		t.Fatalf("expected one recovery fire, got %d", fired)
	}
}

func TestStaleFireDisarmsSilently(t *testing.T) {
	store := newMemStore()
	clock := NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	s := New(store, clock, func(ctx context.Context, st entity.EscalationState) error {
		// 卡片已被人工操作超越
		return engine.ErrStaleTransition
	}, time.Second, nil)

	s.Arm(context.Background(), "card-1", "doc-1", entity.EscalationModeSequential, 1_000, false)
	clock.Advance(2 * time.Second)

	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("stale fire must not count as fired, got %d", n)
	}

	// 停表后不再重试
	clock.Advance(time.Minute)
	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("stale timer retried after disarm: %d", n)
	}
}

func TestTransientFireErrorKeepsTimerArmed(t *testing.T) {
	store := newMemStore()
	clock := NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	calls := 0
	s := New(store, clock, func(ctx context.Context, st entity.EscalationState) error {
		calls++
		if calls == 1 {
			// 基础设施抖动，不是卡片状态问题
			return errors.New("db connection reset")
		}
		return store.Disarm(ctx, st.CardID)
	}, time.Second, nil)

	s.Arm(context.Background(), "card-1", "doc-1", entity.EscalationModeSequential, 1_000, false)
	clock.Advance(2 * time.Second)

	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("failed fire must not count as fired, got %d", n)
	}
	if st := store.states["card-1"]; st.Stopped {
		t.Fatal("transient fire error must not disarm the timer")
	}

	// 下一轮sweep重试成功
	if n := s.Sweep(context.Background()); n != 1 {
		t.Fatalf("expected retry to fire, got %d", n)
	}
	if calls != 2 {
		t.Fatalf("expected 2 fire attempts, got %d", calls)
	}
}

func TestStaleFireKeepsRearmedTimer(t *testing.T) {
	store := newMemStore()
	clock := NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	// sweep输给并发的人工审批：赢家的迁移已为下一步重新装载了时钟，
	// 输家只能返回stale，不得停掉那只新表
	var s *Scheduler
	s = New(store, clock, func(ctx context.Context, st entity.EscalationState) error {
		s.Arm(ctx, st.CardID, st.DocumentID, st.Mode, 60_000, false)
		return engine.ErrStaleTransition
	}, time.Second, nil)

	s.Arm(context.Background(), "card-1", "doc-1", entity.EscalationModeSequential, 1_000, false)
	clock.Advance(2 * time.Second)

	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("stale fire must not count as fired, got %d", n)
	}
	st := store.states["card-1"]
	if st.Stopped {
		t.Fatal("losing sweep disarmed the timer the winning transition re-armed")
	}
	if !st.Deadline.Equal(clock.Now().Add(60 * time.Second)) {
		t.Fatalf("re-armed deadline lost: %v", st.Deadline)
	}
}

func TestRearmResetsDeadline(t *testing.T) {
	store := newMemStore()
	clock := NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	fired := 0
	s := New(store, clock, func(ctx context.Context, st entity.EscalationState) error {
		fired++
		return store.Disarm(ctx, st.CardID)
	}, time.Second, nil)

	s.Arm(context.Background(), "card-1", "doc-1", entity.EscalationModeSequential, 60_000, false)

	// 审批动作推进链路时会重新装载：deadline后移
	clock.Advance(50 * time.Second)
	s.Arm(context.Background(), "card-1", "doc-1", entity.EscalationModeSequential, 60_000, false)

	clock.Advance(30 * time.Second)
	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("re-armed timer fired on the old deadline: %d", n)
	}

	clock.Advance(31 * time.Second)
	if n := s.Sweep(context.Background()); n != 1 {
		t.Fatalf("re-armed timer expected to fire on the new deadline, got %d", n)
	}
}
