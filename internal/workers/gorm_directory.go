package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hestia.local/dispatch/internal/ticket"
)

type workerRow struct {
	Phone       string    `gorm:"primaryKey;size:32"`
	Name        string    `gorm:"size:191;not null"`
	Nicknames   string    `gorm:"type:text;not null;default:'[]'"`
	Area        string    `gorm:"size:32;not null"`
	ShiftActive bool      `gorm:"not null;default:false"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (workerRow) TableName() string {
	return "workers"
}

func (r workerRow) toWorker() Worker {
	var nicknames []string
	if r.Nicknames != "" {
		_ = json.Unmarshal([]byte(r.Nicknames), &nicknames)
	}
	return Worker{
		Phone:       r.Phone,
		Name:        r.Name,
		Nicknames:   nicknames,
		Area:        ticket.Area(r.Area),
		ShiftActive: r.ShiftActive,
	}
}

type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) (*GormDirectory, error) {
	if err := db.AutoMigrate(&workerRow{}); err != nil {
		return nil, fmt.Errorf("migrate workers: %w", err)
	}
	return &GormDirectory{db: db}, nil
}

func (d *GormDirectory) FindByPhone(ctx context.Context, phone string) (Worker, error) {
	var row workerRow
	err := d.db.WithContext(ctx).Where("phone = ?", NormalizePhone(phone)).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Worker{}, ErrNotFound
		}
		return Worker{}, fmt.Errorf("get worker: %w", err)
	}
	return row.toWorker(), nil
}

func (d *GormDirectory) FindByName(ctx context.Context, query string) ([]Worker, error) {
	all, err := d.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Match(all, query), nil
}

func (d *GormDirectory) ListAll(ctx context.Context) ([]Worker, error) {
	var rows []workerRow
	if err := d.db.WithContext(ctx).Order("phone ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	out := make([]Worker, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toWorker())
	}
	return out, nil
}

func (d *GormDirectory) SetShiftActive(ctx context.Context, phone string, active bool) (bool, error) {
	res := d.db.WithContext(ctx).
		Model(&workerRow{}).
		Where("phone = ?", NormalizePhone(phone)).
		Updates(map[string]any{
			"shift_active": active,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("set shift active: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (d *GormDirectory) Upsert(ctx context.Context, w Worker) error {
	w = normalizeWorker(w)
	if err := validateWorker(w); err != nil {
		return err
	}
	nicknames, err := json.Marshal(w.Nicknames)
	if err != nil {
		return fmt.Errorf("encode nicknames: %w", err)
	}
	row := workerRow{
		Phone:       w.Phone,
		Name:        w.Name,
		Nicknames:   string(nicknames),
		Area:        string(w.Area),
		ShiftActive: w.ShiftActive,
		UpdatedAt:   time.Now().UTC(),
	}
	err = d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "nicknames", "area", "shift_active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert worker: %w", err)
	}
	return nil
}

// Close is a no-op: the database handle is shared and owned by the caller.
func (d *GormDirectory) Close() error {
	return nil
}
