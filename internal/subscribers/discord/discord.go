// Package discord mirrors ticket lifecycle events into a Discord channel so
// the front desk can follow the board without a WhatsApp session.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"hestia.local/dispatch/internal/events"
)

// Discord rejects messages longer than this.
const maxMessageRunes = 2000

type Sender interface {
	SendMessage(channelID string, content string) error
}

type discordSender struct {
	session *discordgo.Session
}

func NewDiscordSender(token string) (Sender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	session, err := discordgo.New(normalizeBotToken(token))
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &discordSender{session: session}, nil
}

func (s *discordSender) SendMessage(channelID string, content string) error {
	channelID = strings.TrimSpace(channelID)
	content = strings.TrimSpace(content)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}
	if content == "" {
		return nil
	}
	if _, err := s.session.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

func normalizeBotToken(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "bot ") {
		return token
	}
	return "Bot " + token
}

type Subscriber struct {
	sender    Sender
	channelID string
}

func New(sender Sender, channelID string) *Subscriber {
	return &Subscriber{sender: sender, channelID: strings.TrimSpace(channelID)}
}

func (s *Subscriber) Name() string {
	return "discord"
}

func (s *Subscriber) Handle(_ context.Context, event events.Event) error {
	if !event.Type.IsTicket() || event.Ticket == nil {
		return nil
	}
	return s.sender.SendMessage(s.channelID, Format(event))
}

// Format renders one board line per lifecycle event.
func Format(event events.Event) string {
	t := event.Ticket
	var b strings.Builder
	fmt.Fprintf(&b, "**#%d** %s `%s` %s: %s", t.ID, verb(event.Type), t.Priority, t.Location, t.Detail)
	if t.Assignee != "" {
		fmt.Fprintf(&b, " (asignado: %s)", t.Assignee)
	}
	if event.Type == events.TypeTicketResolved {
		if wall, ok := t.WallDuration(); ok {
			fmt.Fprintf(&b, " en %d min", int(wall.Minutes()))
		}
	}
	out := b.String()
	if runes := []rune(out); len(runes) > maxMessageRunes {
		out = string(runes[:maxMessageRunes-1]) + "…"
	}
	return out
}

func verb(typ events.Type) string {
	switch typ {
	case events.TypeTicketCreated:
		return "nuevo"
	case events.TypeTicketAssigned:
		return "asignado"
	case events.TypeTicketReassigned:
		return "reasignado"
	case events.TypeTicketAccepted:
		return "en curso"
	case events.TypeTicketPaused:
		return "en pausa"
	case events.TypeTicketResumed:
		return "reanudado"
	case events.TypeTicketResolved:
		return "resuelto"
	default:
		return string(typ)
	}
}
