package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hestia.local/dispatch/internal/workers"
)

var ErrInvalidMessage = errors.New("invalid inbound message")

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindAudio MessageKind = "audio"
)

// maxTextRunes bounds what the parser is asked to read.
const maxTextRunes = 4096

// Inbound is one message from the messaging bridge. Audio arrives already
// transcribed in Text, or with only a MediaRef when transcription failed.
type Inbound struct {
	ID          string      `json:"id,omitempty"`
	SenderPhone string      `json:"sender_phone"`
	Kind        MessageKind `json:"kind"`
	Text        string      `json:"text"`
	MediaRef    string      `json:"media_ref,omitempty"`
	ReceivedAt  time.Time   `json:"received_at,omitempty"`
}

// Normalize returns msg with a canonical phone and default kind.
func (m Inbound) Normalize() Inbound {
	m.SenderPhone = workers.NormalizePhone(m.SenderPhone)
	m.Kind = MessageKind(strings.ToLower(strings.TrimSpace(string(m.Kind))))
	if m.Kind == "" {
		m.Kind = KindText
	}
	m.MediaRef = strings.TrimSpace(m.MediaRef)
	return m
}

func (m Inbound) Validate() error {
	if m.SenderPhone == "" {
		return fmt.Errorf("sender_phone is required: %w", ErrInvalidMessage)
	}
	switch m.Kind {
	case KindText:
		if strings.TrimSpace(m.Text) == "" {
			return fmt.Errorf("text is required for text messages: %w", ErrInvalidMessage)
		}
	case KindAudio:
		if strings.TrimSpace(m.Text) == "" && m.MediaRef == "" {
			return fmt.Errorf("audio needs text or media_ref: %w", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("unsupported kind %q: %w", m.Kind, ErrInvalidMessage)
	}
	if len([]rune(m.Text)) > maxTextRunes {
		return fmt.Errorf("text longer than %d characters: %w", maxTextRunes, ErrInvalidMessage)
	}
	return nil
}

// needsTranscript reports an audio message that arrived without text.
func (m Inbound) needsTranscript() bool {
	return m.Kind == KindAudio && strings.TrimSpace(m.Text) == ""
}
