package queue

import (
	"sort"
	"time"

	"fairq/queue-service/internal/models"
)

// Defaults for position and arrival-window math. The first ticket in an
// empty scope still waits PerTicketMinutes; the buffer is intentional.
const (
	PerTicketMinutes   = 15
	ArrivalLeadMinutes = 10
	ArrivalWindowSpan  = 15 * time.Minute
)

// Rank tiers, lower is served sooner.
const (
	RankEmergency = 0
	RankElderly   = 1
	RankPrepared  = 2
	RankNormal    = 3
)

// Rank collapses the independent priority flags into a single tier.
// Tiers are checked in fixed order, so a ticket that is both emergency
// and elderly ranks as emergency.
func Rank(ticket models.Ticket) int {
	switch {
	case ticket.Priority.Emergency:
		return RankEmergency
	case ticket.Priority.Elderly:
		return RankElderly
	case ticket.Priority.Prepared:
		return RankPrepared
	default:
		return RankNormal
	}
}

// Reorder returns the effective service order for a set of tickets:
// ascending rank, then ascending booking time. The input slice is not
// modified. Reorder does no scope or status filtering; callers pass a
// fresh snapshot already narrowed to one scope and the active statuses.
func Reorder(tickets []models.Ticket) []models.Ticket {
	ordered := make([]models.Ticket, len(tickets))
	copy(ordered, tickets)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := Rank(ordered[i]), Rank(ordered[j])
		if ri != rj {
			return ri < rj
		}
		return ordered[i].BookedAt.Before(ordered[j].BookedAt)
	})
	return ordered
}

// Position holds a new ticket's slot in its scope at booking time.
type Position struct {
	QueuePosition        int
	EstimatedWaitMinutes int
}

// AssignPosition computes the booking position from the number of active
// (pending or processing) tickets already in the scope. The caller is
// responsible for reading that count under the scope's booking lock.
func AssignPosition(activeInScope int) Position {
	position := activeInScope + 1
	return Position{
		QueuePosition:        position,
		EstimatedWaitMinutes: position * PerTicketMinutes,
	}
}

// ArrivalWindowAt derives the suggested arrival window from a ticket's
// original estimated wait. Windows drift toward now as the scope drains;
// they do not account for priority reordering.
func ArrivalWindowAt(now time.Time, estimatedWaitMinutes int) models.ArrivalWindow {
	start := now.Add(time.Duration(estimatedWaitMinutes-ArrivalLeadMinutes) * time.Minute)
	return models.ArrivalWindow{
		Start: start,
		End:   start.Add(ArrivalWindowSpan),
	}
}
