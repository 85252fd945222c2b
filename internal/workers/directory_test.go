package workers

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"hestia.local/dispatch/internal/db"
	"hestia.local/dispatch/internal/ticket"
)

func TestMemoryDirectoryContract(t *testing.T) {
	dir := NewMemoryDirectory()
	defer func() { _ = dir.Close() }()
	exerciseDirectory(t, dir)
}

func TestGormDirectorySQLiteContract(t *testing.T) {
	gdb, err := db.OpenGorm("sqlite", filepath.Join(t.TempDir(), "workers.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	dir, err := NewGormDirectory(gdb)
	if err != nil {
		t.Fatalf("new gorm directory: %v", err)
	}
	exerciseDirectory(t, dir)
}

func exerciseDirectory(t *testing.T, dir Directory) {
	t.Helper()
	ctx := context.Background()

	for _, w := range testRoster() {
		if err := dir.Upsert(ctx, w); err != nil {
			t.Fatalf("upsert %s: %v", w.Phone, err)
		}
	}
	if err := dir.Upsert(ctx, Worker{Phone: "", Name: "x"}); err == nil {
		t.Fatalf("expected error for missing phone")
	}

	got, err := dir.FindByPhone(ctx, "whatsapp:+56933")
	if err != nil {
		t.Fatalf("find by phone: %v", err)
	}
	if got.Name != "María González" || len(got.Nicknames) != 1 || got.Nicknames[0] != "Mari" {
		t.Fatalf("unexpected worker: %+v", got)
	}
	if _, err := dir.FindByPhone(ctx, "+000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	matches, err := dir.FindByName(ctx, "pedro")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected two Pedros, got %+v", matches)
	}

	ok, err := dir.SetShiftActive(ctx, "+56911", true)
	if err != nil || !ok {
		t.Fatalf("set shift active: ok=%v err=%v", ok, err)
	}
	ok, err = dir.SetShiftActive(ctx, "+000", true)
	if err != nil || ok {
		t.Fatalf("expected unknown phone to report false, ok=%v err=%v", ok, err)
	}
	got, _ = dir.FindByPhone(ctx, "+56911")
	if !got.ShiftActive {
		t.Fatalf("expected shift to be active")
	}

	updated := got
	updated.Area = ticket.AreaCommonAreas
	if err := dir.Upsert(ctx, updated); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	all, err := dir.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 workers, got %d", len(all))
	}
	if all[0].Phone != "+56911" || all[0].Area != ticket.AreaCommonAreas {
		t.Fatalf("unexpected first worker after upsert: %+v", all[0])
	}
}

func TestParseRosterAndImport(t *testing.T) {
	raw := `
workers:
  - phone: "+56 9 1111"
    name: María González
    nicknames: [mari]
    area: housekeeping
    shift_active: true
  - phone: "+569 2222"
    name: Pedro Soto
    area: mantenimiento
`
	roster, err := ParseRoster(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parse roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(roster))
	}
	if roster[0].Phone != "+5691111" || !roster[0].ShiftActive {
		t.Fatalf("unexpected first entry: %+v", roster[0])
	}
	if roster[1].Area != ticket.AreaMaintenance {
		t.Fatalf("expected maintenance area, got %s", roster[1].Area)
	}

	dir := NewMemoryDirectory()
	n, err := Import(context.Background(), dir, roster)
	if err != nil || n != 2 {
		t.Fatalf("import: n=%d err=%v", n, err)
	}
}

func TestParseRosterRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"unknown area":  "workers:\n  - phone: '+1'\n    name: A\n    area: kitchen\n",
		"missing name":  "workers:\n  - phone: '+1'\n",
		"duplicate":     "workers:\n  - phone: '+1'\n    name: A\n  - phone: '+1'\n    name: B\n",
		"unknown field": "workers:\n  - phone: '+1'\n    name: A\n    role: boss\n",
	}
	for name, raw := range cases {
		if _, err := ParseRoster(strings.NewReader(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
