package ticket

import (
	"testing"
	"time"
)

func TestDurations(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	started := created.Add(5 * time.Minute)
	finished := started.Add(40 * time.Minute)

	tk := Ticket{CreatedAt: created}
	if _, ok := tk.WallDuration(); ok {
		t.Fatalf("expected no wall duration before start")
	}
	if got := tk.Elapsed(created.Add(3 * time.Minute)); got != 3*time.Minute {
		t.Fatalf("expected elapsed since creation, got %s", got)
	}

	tk.StartedAt = &started
	if got := tk.Elapsed(started.Add(10 * time.Minute)); got != 10*time.Minute {
		t.Fatalf("expected elapsed since start, got %s", got)
	}

	tk.FinishedAt = &finished
	tk.PausedSeconds = 600
	wall, _ := tk.WallDuration()
	work, _ := tk.WorkDuration()
	if wall != 40*time.Minute || work != 30*time.Minute {
		t.Fatalf("unexpected durations wall=%s work=%s", wall, work)
	}

	tk.PausedSeconds = 100000
	if work, _ := tk.WorkDuration(); work != 0 {
		t.Fatalf("expected work duration floored at zero, got %s", work)
	}
}
