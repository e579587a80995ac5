package queue

import (
	"testing"
	"time"

	"fairq/queue-service/internal/models"
)

func ticketAt(id string, bookedAt time.Time, priority models.Priority) models.Ticket {
	return models.Ticket{
		TicketID: id,
		Priority: priority,
		BookedAt: bookedAt,
	}
}

func TestRankFixedOrder(t *testing.T) {
	cases := []struct {
		name     string
		priority models.Priority
		want     int
	}{
		{"normal", models.Priority{}, RankNormal},
		{"prepared", models.Priority{Prepared: true}, RankPrepared},
		{"elderly", models.Priority{Elderly: true}, RankElderly},
		{"emergency", models.Priority{Emergency: true}, RankEmergency},
		{"emergency wins over elderly", models.Priority{Emergency: true, Elderly: true}, RankEmergency},
		{"elderly wins over prepared", models.Priority{Elderly: true, Prepared: true}, RankElderly},
		{"all flags", models.Priority{Emergency: true, Elderly: true, Prepared: true}, RankEmergency},
	}
	for _, tt := range cases {
		if got := Rank(models.Ticket{Priority: tt.priority}); got != tt.want {
			t.Fatalf("%s: Rank=%d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestReorderPriorityThenBookingTime(t *testing.T) {
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	t1 := ticketAt("t1", base, models.Priority{})
	t2 := ticketAt("t2", base.Add(time.Minute), models.Priority{Emergency: true})
	t3 := ticketAt("t3", base.Add(2*time.Minute), models.Priority{Elderly: true})

	got := Reorder([]models.Ticket{t1, t2, t3})

	want := []string{"t2", "t3", "t1"}
	for i, id := range want {
		if got[i].TicketID != id {
			t.Fatalf("position %d: got %s, want %s", i, got[i].TicketID, id)
		}
	}
}

func TestReorderFIFOWithinTier(t *testing.T) {
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	tickets := []models.Ticket{
		ticketAt("late", base.Add(time.Hour), models.Priority{Elderly: true}),
		ticketAt("early", base, models.Priority{Elderly: true}),
		ticketAt("middle", base.Add(time.Minute), models.Priority{Elderly: true}),
	}

	got := Reorder(tickets)
	want := []string{"early", "middle", "late"}
	for i, id := range want {
		if got[i].TicketID != id {
			t.Fatalf("position %d: got %s, want %s", i, got[i].TicketID, id)
		}
	}
}

func TestReorderIdempotent(t *testing.T) {
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	tickets := []models.Ticket{
		ticketAt("a", base.Add(3*time.Minute), models.Priority{}),
		ticketAt("b", base, models.Priority{Prepared: true}),
		ticketAt("c", base.Add(time.Minute), models.Priority{Emergency: true}),
		ticketAt("d", base.Add(2*time.Minute), models.Priority{Emergency: true, Elderly: true}),
	}

	once := Reorder(tickets)
	twice := Reorder(once)
	if len(once) != len(twice) {
		t.Fatalf("length changed on second reorder")
	}
	for i := range once {
		if once[i].TicketID != twice[i].TicketID {
			t.Fatalf("position %d changed on second reorder: %s vs %s", i, once[i].TicketID, twice[i].TicketID)
		}
	}
}

func TestReorderDoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	tickets := []models.Ticket{
		ticketAt("a", base.Add(time.Minute), models.Priority{}),
		ticketAt("b", base, models.Priority{Emergency: true}),
	}

	_ = Reorder(tickets)
	if tickets[0].TicketID != "a" || tickets[1].TicketID != "b" {
		t.Fatalf("input slice mutated: %s, %s", tickets[0].TicketID, tickets[1].TicketID)
	}
}

func TestReorderEmpty(t *testing.T) {
	if got := Reorder(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestAssignPosition(t *testing.T) {
	cases := []struct {
		active       int
		wantPosition int
		wantWait     int
	}{
		{0, 1, 15},
		{1, 2, 30},
		{2, 3, 45},
		{9, 10, 150},
	}
	for _, tt := range cases {
		got := AssignPosition(tt.active)
		if got.QueuePosition != tt.wantPosition || got.EstimatedWaitMinutes != tt.wantWait {
			t.Fatalf("AssignPosition(%d)=%+v, want position %d wait %d", tt.active, got, tt.wantPosition, tt.wantWait)
		}
	}
}

func TestArrivalWindowAt(t *testing.T) {
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	window := ArrivalWindowAt(now, 30)
	if want := now.Add(20 * time.Minute); !window.Start.Equal(want) {
		t.Fatalf("start=%v, want %v", window.Start, want)
	}
	if want := now.Add(35 * time.Minute); !window.End.Equal(want) {
		t.Fatalf("end=%v, want %v", window.End, want)
	}

	// First ticket in an empty scope: wait 15, lead 10, start lands 5
	// minutes out.
	window = ArrivalWindowAt(now, 15)
	if want := now.Add(5 * time.Minute); !window.Start.Equal(want) {
		t.Fatalf("start=%v, want %v", window.Start, want)
	}
}
