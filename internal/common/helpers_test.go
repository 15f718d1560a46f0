package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPluralize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "пользователей"},
		{1, "пользователь"},
		{2, "пользователя"},
		{4, "пользователя"},
		{5, "пользователей"},
		{11, "пользователей"},
		{12, "пользователей"},
		{21, "пользователь"},
		{22, "пользователя"},
		{111, "пользователей"},
		{-1, "пользователь"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Pluralize(tt.n, "пользователь", "пользователя", "пользователей"), "n=%d", tt.n)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "2 350", FormatNumber(2350))
	assert.Equal(t, "1 000 001", FormatNumber(1000001))
	assert.Equal(t, "-12 000", FormatNumber(-12000))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "5 пользователей", FormatUsers(5))
	assert.Equal(t, "3 минуты", FormatMinutes(3))
	assert.Equal(t, "30 секунд", FormatSeconds(30*time.Second))
	assert.Equal(t, "1 секунда", FormatSeconds(time.Second))

	ts := time.Date(2026, 1, 2, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "02.01.2026 15:30", FormatDateTime(ts, time.FixedZone("MSK", 3*60*60)))
	assert.Equal(t, "02.01.2026 12:30", FormatDateTime(ts, nil))
}
