package buffer

import (
	"testing"
	"time"
)

func entry(key, kind string, age time.Duration) Entry {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return Entry{Key: key, Kind: kind, UpdatedAt: base.Add(-age)}
}

func TestEvictionOrderPrefersAttachmentRefs(t *testing.T) {
	entries := []Entry{
		entry("rec-old", KindRecord, 3*time.Hour),
		entry("att-new", KindAttachmentRef, time.Minute),
		entry("rec-new", KindRecord, time.Minute),
		entry("att-old", KindAttachmentRef, 2*time.Hour),
	}

	got := EvictionOrder(entries, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 evictions, got %v", got)
	}
	// 附件引用先于完整记录，同类先逐出最旧的
	if got[0] != "att-old" || got[1] != "att-new" {
		t.Fatalf("expected [att-old att-new], got %v", got)
	}
}

func TestEvictionOrderFallsThroughToRecords(t *testing.T) {
	entries := []Entry{
		entry("rec-oldest", KindRecord, 3*time.Hour),
		entry("att-only", KindAttachmentRef, time.Minute),
		entry("rec-newer", KindRecord, time.Hour),
	}

	got := EvictionOrder(entries, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 evictions, got %v", got)
	}
	if got[0] != "att-only" || got[1] != "rec-oldest" {
		t.Fatalf("attachment refs go first, then oldest records; got %v", got)
	}
}

func TestEvictionOrderWithinCapacity(t *testing.T) {
	entries := []Entry{entry("a", KindRecord, time.Hour)}
	if got := EvictionOrder(entries, 5); got != nil {
		t.Fatalf("under capacity must evict nothing, got %v", got)
	}
	if got := EvictionOrder(entries, 0); got != nil {
		t.Fatalf("capacity 0 means unbounded, got %v", got)
	}
}
