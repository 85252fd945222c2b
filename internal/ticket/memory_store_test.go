package ticket

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestMemoryStoreClosed(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Close()
	if _, err := store.Create(context.Background(), sampleTicket("305")); err == nil {
		t.Fatalf("expected error from closed store")
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	first, err := store.Create(ctx, sampleTicket("305"))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := store.Create(ctx, NewTicket{Location: "Lobby", Detail: "derrame", CreatedBy: "+5690001"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}
	if first.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", first.Status)
	}
	if second.Priority != PriorityMedium || second.Area != AreaHousekeeping || second.LocationKind != LocationArea {
		t.Fatalf("unexpected defaults: %+v", second)
	}

	if _, err := store.Create(ctx, NewTicket{Location: "305", CreatedBy: "x"}); err == nil {
		t.Fatalf("expected error for missing detail")
	}

	if _, err := store.Get(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	assignee := "+5691111"
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ok, err := store.UpdateStatus(ctx, first.ID, StatusPending, StatusAssigned, Fields{Assignee: &assignee, AssignedAt: &at})
	if err != nil || !ok {
		t.Fatalf("update status: ok=%v err=%v", ok, err)
	}
	ok, err = store.UpdateStatus(ctx, first.ID, StatusPending, StatusAssigned, Fields{Assignee: &assignee})
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Fatalf("expected stale conditional update to be rejected")
	}

	loaded, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != StatusAssigned || loaded.Assignee != assignee {
		t.Fatalf("unexpected ticket after update: %+v", loaded)
	}
	if loaded.AssignedAt == nil || !loaded.AssignedAt.Equal(at) {
		t.Fatalf("unexpected assigned_at: %v", loaded.AssignedAt)
	}

	pausedAt := at.Add(time.Minute)
	if ok, err := store.UpdateStatus(ctx, first.ID, StatusAssigned, StatusPaused, Fields{PausedAt: &pausedAt}); err != nil || !ok {
		t.Fatalf("set paused_at: ok=%v err=%v", ok, err)
	}
	secs := int64(42)
	if ok, err := store.UpdateStatus(ctx, first.ID, StatusPaused, StatusInProgress, Fields{ClearPausedAt: true, PausedSeconds: &secs}); err != nil || !ok {
		t.Fatalf("clear paused_at: ok=%v err=%v", ok, err)
	}
	loaded, err = store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if loaded.PausedAt != nil || loaded.PausedSeconds != 42 {
		t.Fatalf("expected paused_at cleared and 42 paused seconds, got %v %d", loaded.PausedAt, loaded.PausedSeconds)
	}

	someoneElse := "+5699999"
	if ok, err := store.UpdateStatus(ctx, first.ID, StatusInProgress, StatusPaused, Fields{ExpectedAssignee: &someoneElse, PausedAt: &pausedAt}); err != nil || ok {
		t.Fatalf("expected write guarded by another assignee to be rejected: ok=%v err=%v", ok, err)
	}
	if ok, err := store.UpdateStatus(ctx, first.ID, StatusInProgress, StatusInProgress, Fields{ExpectedAssignee: &assignee}); err != nil || !ok {
		t.Fatalf("expected write guarded by the current assignee to apply: ok=%v err=%v", ok, err)
	}

	pending, err := store.ListByStatus(ctx, StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
	all, err := store.ListByStatus(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].ID != first.ID {
		t.Fatalf("unexpected full list: %+v", all)
	}

	mine, err := store.ListByAssignee(ctx, assignee, StatusInProgress, StatusPaused)
	if err != nil {
		t.Fatalf("list by assignee: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Fatalf("unexpected assignee list: %+v", mine)
	}
	none, err := store.ListByAssignee(ctx, assignee, StatusResolved)
	if err != nil {
		t.Fatalf("list resolved by assignee: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no resolved tickets, got %d", len(none))
	}
}

func sampleTicket(room string) NewTicket {
	return NewTicket{
		Location:     room,
		LocationKind: LocationRoom,
		Detail:       "fuga de agua",
		Priority:     PriorityHigh,
		Area:         AreaMaintenance,
		CreatedBy:    "+5690001",
	}
}
