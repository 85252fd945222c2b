package workers

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"hestia.local/dispatch/internal/ticket"
)

type rosterFile struct {
	Workers []rosterEntry `yaml:"workers"`
}

type rosterEntry struct {
	Phone       string   `yaml:"phone"`
	Name        string   `yaml:"name"`
	Nicknames   []string `yaml:"nicknames"`
	Area        string   `yaml:"area"`
	ShiftActive bool     `yaml:"shift_active"`
}

// ParseRoster decodes a YAML worker roster:
//
//	workers:
//	  - phone: "+56911112222"
//	    name: María González
//	    nicknames: [mari]
//	    area: housekeeping
func ParseRoster(r io.Reader) ([]Worker, error) {
	var file rosterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Workers))
	out := make([]Worker, 0, len(file.Workers))
	for i, entry := range file.Workers {
		area := ticket.AreaHousekeeping
		if entry.Area != "" {
			parsed, ok := ticket.ParseArea(entry.Area)
			if !ok {
				return nil, fmt.Errorf("roster entry %d: unknown area %q", i, entry.Area)
			}
			area = parsed
		}
		w := normalizeWorker(Worker{
			Phone:       entry.Phone,
			Name:        entry.Name,
			Nicknames:   entry.Nicknames,
			Area:        area,
			ShiftActive: entry.ShiftActive,
		})
		if err := validateWorker(w); err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i, err)
		}
		if _, dup := seen[w.Phone]; dup {
			return nil, fmt.Errorf("roster entry %d: duplicate phone %s", i, w.Phone)
		}
		seen[w.Phone] = struct{}{}
		out = append(out, w)
	}
	return out, nil
}

// Import upserts every roster worker into dir.
func Import(ctx context.Context, dir Directory, roster []Worker) (int, error) {
	for i, w := range roster {
		if err := dir.Upsert(ctx, w); err != nil {
			return i, fmt.Errorf("import %s: %w", w.Phone, err)
		}
	}
	return len(roster), nil
}
