package scheduler

import (
	"sync"
	"time"
)

// Clock 时间源抽象——生产用系统时钟，测试用可推进的模拟时钟
// 升级语义（deadline比较、重新装载）全部经由它，保证测试可确定性回放
type Clock interface {
	Now() time.Time
}

// SystemClock 真实时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FakeClock 测试用模拟时钟，手动推进
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock 从指定时间点开始
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 推进模拟时间
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
