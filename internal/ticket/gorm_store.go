package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore wraps an open database and migrates the tickets table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	store := &GormStore{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	if err := store.db.AutoMigrate(&ticketRow{}); err != nil {
		return nil, fmt.Errorf("migrate tickets: %w", err)
	}
	return store, nil
}

func (s *GormStore) Create(ctx context.Context, in NewTicket) (Ticket, error) {
	if err := validateNewTicket(in); err != nil {
		return Ticket{}, err
	}
	row := rowFromTicket(ticketFromNew(in, s.now()))
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return row.toTicket(), nil
}

func (s *GormStore) Get(ctx context.Context, id int64) (Ticket, error) {
	var row ticketRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return row.toTicket(), nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, id int64, from, to Status, fields Fields) (bool, error) {
	updates := fields.columns()
	updates["status"] = string(to)
	updates["updated_at"] = s.now()

	query := s.db.WithContext(ctx).
		Model(&ticketRow{}).
		Where("id = ? AND status = ?", id, string(from))
	if fields.ExpectedAssignee != nil {
		query = query.Where("assignee = ?", *fields.ExpectedAssignee)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update ticket status: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) ListByStatus(ctx context.Context, statuses ...Status) ([]Ticket, error) {
	query := s.db.WithContext(ctx).Model(&ticketRow{}).Order("id ASC")
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(statuses))
	}
	return s.find(query)
}

func (s *GormStore) ListByAssignee(ctx context.Context, phone string, statuses ...Status) ([]Ticket, error) {
	query := s.db.WithContext(ctx).
		Model(&ticketRow{}).
		Where("assignee = ?", strings.TrimSpace(phone)).
		Order("id ASC")
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(statuses))
	}
	return s.find(query)
}

func (s *GormStore) find(query *gorm.DB) ([]Ticket, error) {
	var rows []ticketRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	out := make([]Ticket, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toTicket())
	}
	return out, nil
}

// Close is a no-op: the database handle is shared and owned by the caller.
func (s *GormStore) Close() error {
	return nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
