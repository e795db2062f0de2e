package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFees(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		fees    int64
		wantNet int64
		wantErr bool
	}{
		{
			name:    "typical fee breakdown",
			amount:  10000,
			fees:    150,
			wantNet: 9850,
		},
		{
			name:    "zero fees",
			amount:  10000,
			fees:    0,
			wantNet: 10000,
		},
		{
			name:    "fees equal amount",
			amount:  10000,
			fees:    10000,
			wantNet: 0,
		},
		{
			name:    "negative fees",
			amount:  10000,
			fees:    -1,
			wantErr: true,
		},
		{
			name:    "fees exceed amount",
			amount:  10000,
			fees:    10001,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Amount: tt.amount}
			err := p.ApplyFees(tt.fees)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fees, p.Fees)
			assert.Equal(t, tt.wantNet, p.NetAmount)
		})
	}
}

func TestApplyFeesNetNeverStale(t *testing.T) {
	p := &Payment{Amount: 5000}
	require.NoError(t, p.ApplyFees(100))
	require.NoError(t, p.ApplyFees(250))
	assert.Equal(t, int64(250), p.Fees)
	assert.Equal(t, int64(4750), p.NetAmount)
}

func TestPaymentStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		ok   bool
	}{
		{"pending to processing", PaymentPending, PaymentProcessing, true},
		{"pending to success", PaymentPending, PaymentSuccess, true},
		{"pending to failed", PaymentPending, PaymentFailed, true},
		{"pending to expired", PaymentPending, PaymentExpired, true},
		{"processing to success", PaymentProcessing, PaymentSuccess, true},
		{"processing to expired", PaymentProcessing, PaymentExpired, false},
		{"success to refunded", PaymentSuccess, PaymentRefunded, true},
		{"success to failed", PaymentSuccess, PaymentFailed, false},
		{"success to pending", PaymentSuccess, PaymentPending, false},
		{"failed to success", PaymentFailed, PaymentSuccess, false},
		{"expired to success", PaymentExpired, PaymentSuccess, false},
		{"refunded to success", PaymentRefunded, PaymentSuccess, false},
		{"cancelled to refunded", PaymentCancelled, PaymentRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestTransition(t *testing.T) {
	p := &Payment{Status: PaymentPending}

	require.NoError(t, p.Transition(PaymentSuccess))
	assert.Equal(t, PaymentSuccess, p.Status)

	// Same-state transition is a no-op, not an error
	require.NoError(t, p.Transition(PaymentSuccess))

	err := p.Transition(PaymentPending)
	require.Error(t, err)
	assert.Equal(t, PaymentSuccess, p.Status)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, PaymentPending.IsTerminal())
	assert.False(t, PaymentProcessing.IsTerminal())
	assert.False(t, PaymentSuccess.IsTerminal())
	assert.True(t, PaymentFailed.IsTerminal())
	assert.True(t, PaymentCancelled.IsTerminal())
	assert.True(t, PaymentExpired.IsTerminal())
	assert.True(t, PaymentRefunded.IsTerminal())
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		status    PaymentStatus
		expiresAt time.Time
		want      bool
	}{
		{"pending past ttl", PaymentPending, now.Add(-time.Minute), true},
		{"pending within ttl", PaymentPending, now.Add(time.Minute), false},
		{"success past ttl", PaymentSuccess, now.Add(-time.Minute), false},
		{"failed past ttl", PaymentFailed, now.Add(-time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.status, ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, p.IsExpired(now))
		})
	}
}

func TestVotingOpenAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

	c := &Category{Active: true, VotingStart: start, VotingEnd: end}

	assert.True(t, c.VotingOpenAt(start))
	assert.True(t, c.VotingOpenAt(end))
	assert.True(t, c.VotingOpenAt(start.Add(24*time.Hour)))
	assert.False(t, c.VotingOpenAt(start.Add(-time.Second)))
	assert.False(t, c.VotingOpenAt(end.Add(time.Second)))

	c.Active = false
	assert.False(t, c.VotingOpenAt(start.Add(24*time.Hour)))
}
