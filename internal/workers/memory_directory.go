package workers

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type MemoryDirectory struct {
	mu      sync.Mutex
	workers map[string]Worker
	closed  bool
}

func NewMemoryDirectory(seed ...Worker) *MemoryDirectory {
	d := &MemoryDirectory{workers: make(map[string]Worker)}
	for _, w := range seed {
		w = normalizeWorker(w)
		d.workers[w.Phone] = w
	}
	return d
}

func (d *MemoryDirectory) FindByPhone(_ context.Context, phone string) (Worker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Worker{}, fmt.Errorf("memory directory is closed")
	}
	w, ok := d.workers[NormalizePhone(phone)]
	if !ok {
		return Worker{}, ErrNotFound
	}
	return cloneWorker(w), nil
}

func (d *MemoryDirectory) FindByName(ctx context.Context, query string) ([]Worker, error) {
	all, err := d.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Match(all, query), nil
}

func (d *MemoryDirectory) ListAll(_ context.Context) ([]Worker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("memory directory is closed")
	}
	out := make([]Worker, 0, len(d.workers))
	for _, w := range d.workers {
		out = append(out, cloneWorker(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

func (d *MemoryDirectory) SetShiftActive(_ context.Context, phone string, active bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, fmt.Errorf("memory directory is closed")
	}
	phone = NormalizePhone(phone)
	w, ok := d.workers[phone]
	if !ok {
		return false, nil
	}
	w.ShiftActive = active
	d.workers[phone] = w
	return true, nil
}

func (d *MemoryDirectory) Upsert(_ context.Context, w Worker) error {
	w = normalizeWorker(w)
	if err := validateWorker(w); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("memory directory is closed")
	}
	d.workers[w.Phone] = cloneWorker(w)
	return nil
}

func (d *MemoryDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func validateWorker(w Worker) error {
	if w.Phone == "" {
		return fmt.Errorf("worker phone is required")
	}
	if w.Name == "" {
		return fmt.Errorf("worker %s: name is required", w.Phone)
	}
	return nil
}
