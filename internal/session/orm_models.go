package session

import (
	"encoding/json"
	"fmt"
	"time"
)

type sessionRow struct {
	Phone          string `gorm:"primaryKey;size:32"`
	Role           string `gorm:"size:16;not null"`
	State          string `gorm:"size:32;not null"`
	DraftJSON      string `gorm:"column:draft_json;type:text;not null;default:'{}'"`
	PendingJSON    string `gorm:"column:pending_json;type:text;not null;default:''"`
	ActiveTicketID int64  `gorm:"not null;default:0"`
	LastGreeted    string `gorm:"size:10;not null;default:''"`
	ShiftActive    bool   `gorm:"not null;default:false"`
	LastReminderAt *time.Time
	Version        int64     `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (sessionRow) TableName() string {
	return "sessions"
}

// toSession always yields a usable session. An undecodable draft or pending
// context is dropped, the state falls back to MENU and the error is returned
// for logging.
func (r sessionRow) toSession() (Session, error) {
	s := Session{
		Phone:          r.Phone,
		Role:           Role(r.Role),
		State:          ParseState(r.State),
		ActiveTicketID: r.ActiveTicketID,
		LastGreeted:    r.LastGreeted,
		ShiftActive:    r.ShiftActive,
		Version:        r.Version,
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.LastReminderAt != nil {
		at := r.LastReminderAt.UTC()
		s.LastReminderAt = &at
	}

	var decodeErr error
	if r.DraftJSON != "" {
		if err := json.Unmarshal([]byte(r.DraftJSON), &s.Draft); err != nil {
			s.Draft = Draft{}
			s.State = StateMenu
			decodeErr = fmt.Errorf("decode draft: %w", err)
		}
	}
	pending, err := DecodePending([]byte(r.PendingJSON))
	if err != nil {
		s.State = StateMenu
		decodeErr = err
	} else {
		s.Pending = pending
	}
	return s, decodeErr
}

func rowFromSession(phone string, s Session) (sessionRow, error) {
	draft, err := json.Marshal(s.Draft)
	if err != nil {
		return sessionRow{}, fmt.Errorf("encode draft: %w", err)
	}
	pending, err := EncodePending(s.Pending)
	if err != nil {
		return sessionRow{}, err
	}
	row := sessionRow{
		Phone:          phone,
		Role:           string(s.Role),
		State:          string(s.State),
		DraftJSON:      string(draft),
		PendingJSON:    string(pending),
		ActiveTicketID: s.ActiveTicketID,
		LastGreeted:    s.LastGreeted,
		ShiftActive:    s.ShiftActive,
		Version:        s.Version,
		UpdatedAt:      time.Now().UTC(),
	}
	if s.LastReminderAt != nil {
		at := s.LastReminderAt.UTC()
		row.LastReminderAt = &at
	}
	return row, nil
}
