package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Eursukkul/token-bidding/internal/models"
)

func TestCurrentStatus(t *testing.T) {
	opens := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	closes := time.Date(2026, 3, 5, 17, 0, 0, 0, time.UTC)
	event := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	opp := &models.Opportunity{OpensAt: opens, ClosesAt: closes, EventDate: event}

	tests := []struct {
		name string
		now  time.Time
		want models.OpportunityStatus
	}{
		{"before window", opens.Add(-time.Second), models.OpportunityUpcoming},
		{"at opensAt", opens, models.OpportunityOpen},
		{"inside window", opens.Add(24 * time.Hour), models.OpportunityOpen},
		{"at closesAt", closes, models.OpportunityClosed},
		{"between close and event", closes.Add(48 * time.Hour), models.OpportunityClosed},
		{"event day after start time", time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC), models.OpportunityClosed},
		{"day after event", time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), models.OpportunityCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentStatus(opp, tt.now))
		})
	}
}

func TestCurrentStatus_EventDateInCallerLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	opp := &models.Opportunity{
		OpensAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ClosesAt:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EventDate: time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC), // 11 March in UTC+9
	}

	now := time.Date(2026, 3, 11, 8, 0, 0, 0, loc)
	assert.Equal(t, models.OpportunityClosed, CurrentStatus(opp, now))
	assert.Equal(t, models.OpportunityCompleted, CurrentStatus(opp, now.Add(24*time.Hour)))
}

func TestRefresh(t *testing.T) {
	opens := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	opp := &models.Opportunity{
		OpensAt:   opens,
		ClosesAt:  opens.Add(time.Hour),
		EventDate: opens.Add(48 * time.Hour),
		Status:    models.OpportunityUpcoming,
	}

	assert.False(t, Refresh(opp, opens.Add(-time.Minute)))
	assert.True(t, Refresh(opp, opens))
	assert.Equal(t, models.OpportunityOpen, opp.Status)
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())
	c.Set(start)
	assert.Equal(t, start, c.Now())
}
