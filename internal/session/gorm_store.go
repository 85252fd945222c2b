package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewGormStore(db *gorm.DB, logger *log.Logger) (*GormStore, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return &GormStore{db: db, logger: logger}, nil
}

func (s *GormStore) Load(ctx context.Context, phone string) (Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("phone = ?", phone).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return New(phone), nil
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	sess, decodeErr := row.toSession()
	if decodeErr != nil {
		s.logger.Printf("session decode failed phone=%s err=%v; falling back to MENU", phone, decodeErr)
	}
	return sess, nil
}

func (s *GormStore) Save(ctx context.Context, phone string, sess Session) (Session, error) {
	row, err := rowFromSession(phone, sess)
	if err != nil {
		return Session{}, err
	}
	expected := sess.Version
	row.Version = expected + 1

	if expected == 0 {
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if res.Error != nil {
			return Session{}, fmt.Errorf("insert session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return Session{}, fmt.Errorf("insert session %s: %w", phone, ErrVersionConflict)
		}
	} else {
		res := s.db.WithContext(ctx).
			Model(&sessionRow{}).
			Where("phone = ? AND version = ?", phone, expected).
			Updates(map[string]any{
				"role":             row.Role,
				"state":            row.State,
				"draft_json":       row.DraftJSON,
				"pending_json":     row.PendingJSON,
				"active_ticket_id": row.ActiveTicketID,
				"last_greeted":     row.LastGreeted,
				"shift_active":     row.ShiftActive,
				"last_reminder_at": row.LastReminderAt,
				"version":          row.Version,
				"updated_at":       row.UpdatedAt,
			})
		if res.Error != nil {
			return Session{}, fmt.Errorf("update session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return Session{}, fmt.Errorf("update session %s at version %d: %w", phone, expected, ErrVersionConflict)
		}
	}

	saved := sess.Clone()
	saved.Phone = phone
	saved.Version = row.Version
	saved.UpdatedAt = row.UpdatedAt
	return saved, nil
}

func (s *GormStore) List(ctx context.Context) ([]Session, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Order("phone ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]Session, 0, len(rows))
	for _, row := range rows {
		sess, decodeErr := row.toSession()
		if decodeErr != nil {
			s.logger.Printf("session decode failed phone=%s err=%v", row.Phone, decodeErr)
		}
		out = append(out, sess)
	}
	return out, nil
}

// Close is a no-op: the database handle is shared and owned by the caller.
func (s *GormStore) Close() error {
	return nil
}
