package intent

import (
	"errors"
	"testing"

	"hestia.local/dispatch/internal/ticket"
)

var lexicon = []string{"Pedro Soto", "Pedro", "Pedro Rojas", "María González", "María", "Mari"}

func TestParseRoomReport(t *testing.T) {
	res := Parse("hab 305 fuga de agua", Context{Area: ticket.AreaHousekeeping})
	if res.Kind != KindCreate {
		t.Fatalf("expected create, got %s", res.Kind)
	}
	if res.Location == nil || res.Location.Name != "305" || res.Location.Kind != ticket.LocationRoom {
		t.Fatalf("unexpected location: %+v", res.Location)
	}
	if res.Detail != "fuga de agua" {
		t.Fatalf("unexpected detail: %q", res.Detail)
	}
	if res.Priority != ticket.PriorityHigh {
		t.Fatalf("expected HIGH, got %s", res.Priority)
	}
	if res.Area != ticket.AreaHousekeeping {
		t.Fatalf("expected housekeeping area, got %s", res.Area)
	}
}

func TestParseKeepsOriginalCasingInDetail(t *testing.T) {
	res := Parse("Habitación 1204: Ducha sin agua caliente", Context{})
	if res.Location == nil || res.Location.Name != "1204" {
		t.Fatalf("unexpected location: %+v", res.Location)
	}
	if res.Detail != "Ducha sin agua caliente" {
		t.Fatalf("unexpected detail: %q", res.Detail)
	}
}

func TestExtractLocationRuleOrder(t *testing.T) {
	cases := []struct {
		text string
		name string
		kind ticket.LocationKind
		area ticket.Area
		ok   bool
	}{
		{text: "room 412 towels", name: "412", kind: ticket.LocationRoom, area: ticket.AreaHousekeeping, ok: true},
		{text: "#305 sin toallas", name: "305", kind: ticket.LocationRoom, area: ticket.AreaHousekeeping, ok: true},
		{text: "ascensor 2 no funciona", name: "Ascensor 2", kind: ticket.LocationArea, area: ticket.AreaMaintenance, ok: true},
		{text: "pasillo piso 3 sucio", name: "Pasillo piso 3", kind: ticket.LocationArea, area: ticket.AreaCommonAreas, ok: true},
		{text: "la piscina esta sucia", name: "Piscina", kind: ticket.LocationArea, area: ticket.AreaCommonAreas, ok: true},
		{text: "Recepción sin luz", name: "Lobby", kind: ticket.LocationArea, area: ticket.AreaCommonAreas, ok: true},
		{text: "cuarto 210 y ascensor", name: "210", kind: ticket.LocationRoom, area: ticket.AreaHousekeeping, ok: true},
		{text: "ascensor piso 12 y 305", name: "Ascensor piso 12", kind: ticket.LocationArea, area: ticket.AreaMaintenance, ok: true},
		{text: "305 toallas", name: "305", kind: ticket.LocationRoom, area: ticket.AreaHousekeeping, ok: true},
		{text: "algo raro pasa", ok: false},
		{text: "espanol", ok: false},
	}
	for _, tc := range cases {
		loc, ok := ExtractLocation(tc.text)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v got %v (%+v)", tc.text, tc.ok, ok, loc)
		}
		if !ok {
			continue
		}
		if loc.Name != tc.name || loc.Kind != tc.kind || loc.Area != tc.area {
			t.Fatalf("%q: unexpected location %+v", tc.text, loc)
		}
	}
}

func TestExtractPriority(t *testing.T) {
	cases := map[string]ticket.Priority{
		"fuga de agua":                    ticket.PriorityHigh,
		"the sink is leaking":             ticket.PriorityHigh,
		"inodoro tapado":                  ticket.PriorityHigh,
		"cambiar ampolleta cuando puedas": ticket.PriorityLow,
		"no urgente, revisar cortina":     ticket.PriorityLow,
		"olor raro, cuando puedas":        ticket.PriorityHigh,
		"faltan toallas":                  ticket.PriorityMedium,
		"fix it now":                      ticket.PriorityHigh,
		"later please, lamp flickers":     ticket.PriorityLow,
	}
	for text, want := range cases {
		if got := ExtractPriority(text); got != want {
			t.Fatalf("%q: expected %s got %s", text, want, got)
		}
	}
}

func TestExtractTicketID(t *testing.T) {
	cases := []struct {
		text string
		id   int64
		ok   bool
	}{
		{"tomar 15", 15, true},
		{"fin 42", 42, true},
		{"fin #7", 7, true},
		{"asignar el ticket 12 a Pedro", 12, true},
		{"revisar #88 por favor", 88, true},
		{"fin", 0, false},
		{"hab 305 fuga", 0, false},
	}
	for _, tc := range cases {
		id, ok := ExtractTicketID(tc.text)
		if ok != tc.ok || id != tc.id {
			t.Fatalf("%q: expected (%d,%v) got (%d,%v)", tc.text, tc.id, tc.ok, id, ok)
		}
	}
}

func TestExtractWorkerName(t *testing.T) {
	if name, ok := ExtractWorkerName("que lo vea mari", lexicon); !ok || name != "mari" {
		t.Fatalf("expected nickname from lexicon, got %q %v", name, ok)
	}
	if name, ok := ExtractWorkerName("que lo haga Pedro Soto", lexicon); !ok || name != "Pedro Soto" {
		t.Fatalf("expected longest lexicon match, got %q", name)
	}
	if name, ok := ExtractWorkerName("Hola, que vaya Ramiro", nil); !ok || name != "Ramiro" {
		t.Fatalf("expected capitalized fallback, got %q %v", name, ok)
	}
	if _, ok := ExtractWorkerName("nadie sabe", nil); ok {
		t.Fatalf("expected no name")
	}
}

func TestParseSupervisorCommands(t *testing.T) {
	sup := Context{Supervisor: true, KnownNames: lexicon}
	cases := []struct {
		text   string
		kind   Kind
		id     int64
		worker string
	}{
		{text: "asignar 12 a Pedro", kind: KindAssign, id: 12, worker: "Pedro"},
		{text: "Reasignar 12 a María", kind: KindReassign, id: 12, worker: "María"},
		{text: "asignar 12 pedro", kind: KindAssign, id: 12, worker: "pedro"},
		{text: "asignar 12", kind: KindAssign, id: 12},
		{text: "fin 9", kind: KindFinish, id: 9},
		{text: "estado 4", kind: KindStatusQuery, id: 4},
		{text: "pendientes", kind: KindListPending},
		{text: "urgentes", kind: KindListUrgent},
		{text: "en curso", kind: KindListInProgress},
		{text: "atrasados", kind: KindListStale},
		{text: "cancelar", kind: KindCancel},
		{text: "Menú", kind: KindMenu},
		{text: "tomar 5", kind: KindUnknown},
	}
	for _, tc := range cases {
		res := Parse(tc.text, sup)
		if res.Kind != tc.kind || res.TicketID != tc.id || res.WorkerName != tc.worker {
			t.Fatalf("%q: unexpected result %+v", tc.text, res)
		}
		if tc.kind.IsTicketCommand() && res.Location != nil {
			t.Fatalf("%q: ticket commands must not carry a location", tc.text)
		}
	}
}

func TestParseCreateAndAssign(t *testing.T) {
	sup := Context{Supervisor: true, KnownNames: lexicon}

	res := Parse("305 fuga de agua a Pedro", sup)
	if res.Kind != KindCreateAndAssign || res.WorkerName != "Pedro" || res.Detail != "fuga de agua" {
		t.Fatalf("unexpected create-and-assign: %+v", res)
	}

	res = Parse("hab 210 olor a humedad", sup)
	if res.Kind != KindCreate || res.WorkerName != "" || res.Detail != "olor a humedad" {
		t.Fatalf("lowercase noun after 'a' must stay in detail: %+v", res)
	}

	res = Parse("Lobby sucio a Ramiro", sup)
	if res.Kind != KindCreateAndAssign || res.WorkerName != "Ramiro" || res.Detail != "sucio" {
		t.Fatalf("unexpected capitalized assignee: %+v", res)
	}
}

func TestParseWorkerCommands(t *testing.T) {
	w := Context{Area: ticket.AreaHousekeeping}
	cases := map[string]Kind{
		"fin de turno":    KindShiftEnd,
		"iniciar turno":   KindShiftStart,
		"start shift":     KindShiftStart,
		"fin":             KindFinish,
		"pausa 3":         KindPause,
		"reanudar":        KindResume,
		"tomar 15":        KindTake,
		"si":              KindYes,
		"No":              KindNo,
		"reportar":        KindReport,
		"mis tickets":     KindViewTickets,
		"asignar 4":       KindUnknown,
		"hola que tal":    KindUnknown,
		"ascensor 2 roto": KindCreate,
	}
	for text, want := range cases {
		if got := Classify(text, w); got != want {
			t.Fatalf("%q: expected %s got %s", text, want, got)
		}
	}
}

func TestParseReportWithInlineLocation(t *testing.T) {
	res := Parse("reportar hab 305 sin toallas", Context{})
	if res.Kind != KindReport || res.Location == nil || res.Detail != "sin toallas" {
		t.Fatalf("unexpected report parse: %+v", res)
	}
}

func TestParseIndex(t *testing.T) {
	if n, ok := ParseIndex(" 2 "); !ok || n != 2 {
		t.Fatalf("expected index 2, got %d %v", n, ok)
	}
	if _, ok := ParseIndex("0"); ok {
		t.Fatalf("zero is not a valid index")
	}
	if _, ok := ParseIndex("2 toallas"); ok {
		t.Fatalf("text after number is not an index")
	}
}

func TestRequireHelpers(t *testing.T) {
	var res Result
	if err := res.RequireTicketID("fin 12"); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
	var ae *AmbiguousError
	if !errors.As(res.RequireLocation(), &ae) || ae.Field != "location" {
		t.Fatalf("expected location AmbiguousError, got %+v", ae)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	ctx := Context{Supervisor: true, KnownNames: lexicon}
	first := Parse("hab 305 fuga de agua a Pedro", ctx)
	for i := 0; i < 20; i++ {
		got := Parse("hab 305 fuga de agua a Pedro", ctx)
		if got.Kind != first.Kind || got.Detail != first.Detail || got.WorkerName != first.WorkerName || *got.Location != *first.Location {
			t.Fatalf("non-deterministic parse: %+v vs %+v", got, first)
		}
	}
}
