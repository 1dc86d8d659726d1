package entity

import "testing"

func TestTimeoutToMs(t *testing.T) {
	cases := []struct {
		value int
		unit  string
		want  int64
	}{
		{30, UnitSeconds, 30_000},
		{5, UnitMinutes, 300_000},
		{2, UnitHours, 7_200_000},
		{1, UnitDays, 86_400_000},
		{1, UnitWeeks, 604_800_000},
		{1, UnitMonths, 2_592_000_000}, // months按30天计
		{3, "fortnights", 180_000},     // 未知单位按分钟兜底
	}

	for _, tc := range cases {
		if got := TimeoutToMs(tc.value, tc.unit); got != tc.want {
			t.Errorf("TimeoutToMs(%d, %q) = %d, want %d", tc.value, tc.unit, got, tc.want)
		}
	}
}
