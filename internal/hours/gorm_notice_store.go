package hours

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type noticeRow struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	Recipient   string     `gorm:"size:32;not null;index"`
	Body        string     `gorm:"type:text;not null"`
	TicketID    int64      `gorm:"index"`
	CreatedAt   time.Time  `gorm:"not null"`
	DeliveredAt *time.Time `gorm:"index"`
}

func (noticeRow) TableName() string {
	return "deferred_notices"
}

func (r noticeRow) toNotice() Notice {
	n := Notice{
		ID:        r.ID,
		Recipient: r.Recipient,
		Body:      r.Body,
		TicketID:  r.TicketID,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.DeliveredAt != nil {
		at := r.DeliveredAt.UTC()
		n.DeliveredAt = &at
	}
	return n
}

type GormNoticeStore struct {
	db *gorm.DB
}

func NewGormNoticeStore(db *gorm.DB) (*GormNoticeStore, error) {
	if err := db.AutoMigrate(&noticeRow{}); err != nil {
		return nil, fmt.Errorf("migrate deferred notices: %w", err)
	}
	return &GormNoticeStore{db: db}, nil
}

func (s *GormNoticeStore) Defer(ctx context.Context, n Notice) (Notice, error) {
	if err := validateNotice(n); err != nil {
		return Notice{}, err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	row := noticeRow{
		Recipient: n.Recipient,
		Body:      n.Body,
		TicketID:  n.TicketID,
		CreatedAt: n.CreatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Notice{}, fmt.Errorf("defer notice: %w", err)
	}
	return row.toNotice(), nil
}

func (s *GormNoticeStore) Pending(ctx context.Context) ([]Notice, error) {
	var rows []noticeRow
	err := s.db.WithContext(ctx).
		Where("delivered_at IS NULL").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list pending notices: %w", err)
	}
	out := make([]Notice, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toNotice())
	}
	return out, nil
}

func (s *GormNoticeStore) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&noticeRow{}).
		Where("id = ?", id).
		Update("delivered_at", at.UTC())
	if res.Error != nil {
		return fmt.Errorf("mark notice delivered: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notice %d not found", id)
	}
	return nil
}
