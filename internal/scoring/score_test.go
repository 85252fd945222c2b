package scoring

import (
	"context"
	"testing"

	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

func TestScoreComponents(t *testing.T) {
	room := ticket.Ticket{Area: ticket.AreaHousekeeping}
	cases := []struct {
		name string
		w    workers.Worker
		load Load
		want int
	}{
		{"matched idle on shift", workers.Worker{Area: ticket.AreaHousekeeping, ShiftActive: true}, Load{}, 100 + 200 + 50 + 30},
		{"matched busy on shift", workers.Worker{Area: ticket.AreaHousekeeping, ShiftActive: true}, Load{InProgress: 1, Assigned: 1}, 100 + 200 - 30 - 20 + 30},
		{"matched paused off shift", workers.Worker{Area: ticket.AreaHousekeeping}, Load{Paused: 1}, 100 + 200 - 100 - 50},
		{"maintenance near miss", workers.Worker{Area: ticket.AreaMaintenance, ShiftActive: true}, Load{}, 100 - 50 + 50 + 30},
		{"common areas mismatch", workers.Worker{Area: ticket.AreaCommonAreas, ShiftActive: true}, Load{}, 100 - 100 + 50 + 30},
		{"floored", workers.Worker{Area: ticket.AreaCommonAreas}, Load{Paused: 2, Assigned: 5}, 0},
	}
	for _, tc := range cases {
		if got := Score(tc.w, tc.load, room); got != tc.want {
			t.Fatalf("%s: want %d got %d", tc.name, tc.want, got)
		}
	}

	lift := ticket.Ticket{Area: ticket.AreaMaintenance}
	common := workers.Worker{Area: ticket.AreaCommonAreas, ShiftActive: true}
	if got := Score(common, Load{}, lift); got != 100-50+50+30 {
		t.Fatalf("common areas should be a near miss for maintenance, got %d", got)
	}
	hk := workers.Worker{Area: ticket.AreaHousekeeping, ShiftActive: true}
	if got := Score(hk, Load{}, lift); got != 100-100+50+30 {
		t.Fatalf("housekeeping should be a clear mismatch for maintenance, got %d", got)
	}
}

func TestScoreNeverNegativeAndMatchedIdleOutranks(t *testing.T) {
	areas := []ticket.Area{ticket.AreaHousekeeping, ticket.AreaCommonAreas, ticket.AreaMaintenance}
	loads := []Load{{}, {Assigned: 3}, {InProgress: 2}, {Paused: 1, Assigned: 10}, {Assigned: 40, InProgress: 4, Paused: 4}}
	for _, ta := range areas {
		tk := ticket.Ticket{Area: ta}
		best := Score(workers.Worker{Area: ta, ShiftActive: true}, Load{}, tk)
		for _, wa := range areas {
			for _, shift := range []bool{true, false} {
				for _, l := range loads {
					got := Score(workers.Worker{Area: wa, ShiftActive: shift}, l, tk)
					if got < 0 {
						t.Fatalf("negative score for %s/%s/%v/%+v", ta, wa, shift, l)
					}
					if wa != ta && !shift && l.Busy() && got >= best {
						t.Fatalf("off-area off-shift busy worker outranked matched idle worker: %d >= %d", got, best)
					}
				}
			}
		}
	}
}

func TestEngineSuggestOrdersAndLimits(t *testing.T) {
	ctx := context.Background()
	store := ticket.NewMemoryStore()
	dir := workers.NewMemoryDirectory(
		workers.Worker{Phone: "+1", Name: "Ana", Area: ticket.AreaHousekeeping, ShiftActive: true},
		workers.Worker{Phone: "+2", Name: "Bea", Area: ticket.AreaHousekeeping, ShiftActive: true},
		workers.Worker{Phone: "+3", Name: "Ciro", Area: ticket.AreaMaintenance, ShiftActive: true},
		workers.Worker{Phone: "+4", Name: "Dora", Area: ticket.AreaCommonAreas},
	)

	busy, _ := store.Create(ctx, ticket.NewTicket{Location: "101", Detail: "x", CreatedBy: "+9"})
	assignee := "+1"
	_, _ = store.UpdateStatus(ctx, busy.ID, ticket.StatusPending, ticket.StatusInProgress, ticket.Fields{Assignee: &assignee})

	target := ticket.Ticket{Area: ticket.AreaHousekeeping}
	engine := NewEngine(store, dir)
	got, err := engine.Suggest(ctx, target, 3)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	want := []string{"+2", "+1", "+3"}
	for i, c := range got {
		if c.Worker.Phone != want[i] {
			t.Fatalf("position %d: want %s got %s (%+v)", i, want[i], c.Worker.Phone, got)
		}
	}
	if got[1].Load.InProgress != 1 {
		t.Fatalf("expected load to be attached, got %+v", got[1].Load)
	}
}
