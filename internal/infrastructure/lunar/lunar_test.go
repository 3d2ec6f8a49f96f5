package lunar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFestivalKnownDates(t *testing.T) {
	a := NewAdapter()

	// 2025 年春节
	got := a.Festival(time.Date(2025, time.January, 29, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "乙巳蛇年正月初一", got)

	// 2024 年端午
	got = a.Festival(time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "甲辰龙年五月初五", got)
}

func TestFestivalAppendsSolarTerm(t *testing.T) {
	a := NewAdapter()
	got := a.Festival(time.Date(2024, time.December, 21, 12, 0, 0, 0, time.UTC))
	assert.Contains(t, got, " 冬至", "节气日在农历信息后追加节气名")
}
