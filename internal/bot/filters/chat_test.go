package filters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type banList struct {
	ids map[int64]bool
	err error
}

func (b banList) IsBanned(_ context.Context, userID int64) (bool, error) {
	return b.ids[userID], b.err
}

func TestCheckAccess(t *testing.T) {
	bans := banList{ids: map[int64]bool{13: true}}
	enabled := true
	f := NewChatFilter(bans, func() bool { return enabled })

	tests := []struct {
		name    string
		in      Inbound
		enabled bool
		want    bool
	}{
		{"private user", Inbound{ChatType: "private", UserID: 1}, true, true},
		{"group", Inbound{ChatType: "supergroup", UserID: 1}, true, false},
		{"group operator", Inbound{ChatType: "group", UserID: 1, Operator: true}, true, false},
		{"no sender", Inbound{ChatType: "private"}, true, false},
		{"banned", Inbound{ChatType: "private", UserID: 13}, true, false},
		{"banned operator", Inbound{ChatType: "private", UserID: 13, Operator: true}, true, true},
		{"bot disabled", Inbound{ChatType: "private", UserID: 1}, false, false},
		{"bot disabled operator", Inbound{ChatType: "private", UserID: 1, Operator: true}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled = tt.enabled
			assert.Equal(t, tt.want, f.CheckAccess(context.Background(), tt.in))
		})
	}
}

func TestCheckAccessFailsClosedOnDBError(t *testing.T) {
	f := NewChatFilter(banList{err: errors.New("db down")}, nil)
	assert.False(t, f.CheckAccess(context.Background(), Inbound{ChatType: "private", UserID: 1}))
	assert.True(t, f.CheckAccess(context.Background(), Inbound{ChatType: "private", UserID: 1, Operator: true}))
}
