package lifecycle

import (
	"time"

	"github.com/Eursukkul/token-bidding/internal/models"
)

// CurrentStatus derives an opportunity's status from its window and event
// date. The window is half-open: OpensAt is inside it, ClosesAt is not. After
// the window, the opportunity stays closed through the whole event day (in
// now's location) and becomes completed the day after.
func CurrentStatus(opp *models.Opportunity, now time.Time) models.OpportunityStatus {
	switch {
	case now.Before(opp.OpensAt):
		return models.OpportunityUpcoming
	case now.Before(opp.ClosesAt):
		return models.OpportunityOpen
	case !dateOf(opp.EventDate, now.Location()).Before(dateOf(now, now.Location())):
		return models.OpportunityClosed
	default:
		return models.OpportunityCompleted
	}
}

// Refresh recomputes the status and stores it on opp. It reports whether the
// stored value changed, so callers know to persist it.
func Refresh(opp *models.Opportunity, now time.Time) bool {
	s := CurrentStatus(opp, now)
	if s == opp.Status {
		return false
	}
	opp.Status = s
	return true
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
