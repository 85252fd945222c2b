package intent

import (
	"regexp"
	"sort"
	"strings"

	"hestia.local/dispatch/internal/textnorm"
	"hestia.local/dispatch/internal/ticket"
)

type Location struct {
	Name string              `json:"name"`
	Kind ticket.LocationKind `json:"kind"`
	Area ticket.Area         `json:"area"`
}

type span struct {
	start, end int
}

type locationRule struct {
	name  string
	match func(folded string) (Location, span, bool)
}

// locationRules is tried in order; the first match wins. Explicit room
// patterns beat the area catalog, and bare digits are the last resort so a
// floor number next to an area name is never read as a room.
var locationRules = []locationRule{
	{name: "room_keyword", match: matchRoomKeyword},
	{name: "area_catalog", match: matchAreaCatalog},
	{name: "bare_room_number", match: matchBareRoom},
}

var (
	roomKeywordPattern = regexp.MustCompile(`(?:\b(?:habitaciones|habitacion|hab|cuarto|pieza|room|unit|suite|depto)\.?\s*(?:(?:nro|num|no|n)\.?\s*|#\s*)?|#\s*)(\d{3,4})\b`)
	bareRoomPattern    = regexp.MustCompile(`\b(\d{3,4})\b`)
)

type catalogEntry struct {
	label   string
	area    ticket.Area
	keys    []string
	pattern *regexp.Regexp
}

var areaCatalog = buildCatalog([]catalogEntry{
	{label: "Ascensor", area: ticket.AreaMaintenance, keys: []string{"ascensor", "ascensores", "elevador", "elevator", "lift"}},
	{label: "Sala de maquinas", area: ticket.AreaMaintenance, keys: []string{"sala de maquinas", "cuarto de maquinas", "machine room", "caldera", "boiler"}},
	{label: "Lobby", area: ticket.AreaCommonAreas, keys: []string{"lobby", "recepcion", "reception", "hall"}},
	{label: "Piscina", area: ticket.AreaCommonAreas, keys: []string{"piscina", "alberca", "pool"}},
	{label: "Gimnasio", area: ticket.AreaCommonAreas, keys: []string{"gimnasio", "gym"}},
	{label: "Restaurante", area: ticket.AreaCommonAreas, keys: []string{"restaurante", "restaurant", "comedor"}},
	{label: "Cocina", area: ticket.AreaCommonAreas, keys: []string{"cocina", "kitchen"}},
	{label: "Estacionamiento", area: ticket.AreaCommonAreas, keys: []string{"estacionamiento", "parking", "garage"}},
	{label: "Pasillo", area: ticket.AreaCommonAreas, keys: []string{"pasillo", "hallway", "corridor"}},
	{label: "Spa", area: ticket.AreaCommonAreas, keys: []string{"spa"}},
	{label: "Terraza", area: ticket.AreaCommonAreas, keys: []string{"terraza", "terrace", "rooftop"}},
	{label: "Lavanderia", area: ticket.AreaCommonAreas, keys: []string{"lavanderia", "laundry"}},
	{label: "Escaleras", area: ticket.AreaCommonAreas, keys: []string{"escaleras", "escalera", "stairs"}},
})

func buildCatalog(entries []catalogEntry) []catalogEntry {
	for i := range entries {
		keys := append([]string(nil), entries[i].keys...)
		sort.Slice(keys, func(a, b int) bool { return len(keys[a]) > len(keys[b]) })
		quoted := make([]string, 0, len(keys))
		for _, k := range keys {
			quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(k), " ", `\s+`))
		}
		entries[i].pattern = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") +
			`)\b(?:\s+(?:(piso|floor|nivel)\s+)?(?:(?:nro|no|n)\.?\s*|#\s*)?(\d{1,2})\b)?`)
	}
	return entries
}

// ExtractLocation returns the first location found by locationRules.
func ExtractLocation(text string) (Location, bool) {
	loc, _, ok := extractLocation(textnorm.Fold(text))
	return loc, ok
}

func extractLocation(folded string) (Location, span, bool) {
	for _, rule := range locationRules {
		if loc, sp, ok := rule.match(folded); ok {
			return loc, sp, true
		}
	}
	return Location{}, span{}, false
}

func matchRoomKeyword(folded string) (Location, span, bool) {
	m := roomKeywordPattern.FindStringSubmatchIndex(folded)
	if m == nil {
		return Location{}, span{}, false
	}
	return roomLocation(folded[m[2]:m[3]]), span{m[0], m[1]}, true
}

func matchBareRoom(folded string) (Location, span, bool) {
	m := bareRoomPattern.FindStringSubmatchIndex(folded)
	if m == nil {
		return Location{}, span{}, false
	}
	return roomLocation(folded[m[2]:m[3]]), span{m[0], m[1]}, true
}

func roomLocation(number string) Location {
	return Location{Name: number, Kind: ticket.LocationRoom, Area: ticket.AreaHousekeeping}
}

// matchAreaCatalog returns the catalog entry that appears earliest in the text.
func matchAreaCatalog(folded string) (Location, span, bool) {
	best := -1
	var bestLoc Location
	var bestSpan span
	for _, entry := range areaCatalog {
		m := entry.pattern.FindStringSubmatchIndex(folded)
		if m == nil {
			continue
		}
		if best >= 0 && m[0] >= best {
			continue
		}
		name := entry.label
		if m[4] >= 0 {
			if m[2] >= 0 {
				name += " piso " + folded[m[4]:m[5]]
			} else {
				name += " " + folded[m[4]:m[5]]
			}
		}
		best = m[0]
		bestLoc = Location{Name: name, Kind: ticket.LocationArea, Area: entry.area}
		bestSpan = span{m[0], m[1]}
	}
	return bestLoc, bestSpan, best >= 0
}
