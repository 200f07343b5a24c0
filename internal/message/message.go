package message

import (
	"time"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/game"
)

// Type represents the kind of message.
type Type string

const (
	TypeChat       Type = "chat"
	TypeSystem     Type = "system"
	TypeBoard      Type = "board"
	TypeSuggestion Type = "suggestion"
)

// Action describes what triggered a system message.
type Action string

const (
	ActionMatched        Action = "matched"
	ActionWaiting        Action = "waiting"
	ActionEnded          Action = "ended"
	ActionPartnerLeft    Action = "partner_left"
	ActionCancelled      Action = "cancelled"
	ActionDeliveryFailed Action = "delivery_failed"
	ActionInvite         Action = "invite"
	ActionInviteSent     Action = "invite_sent"
	ActionDeclined       Action = "declined"
	ActionProfile        Action = "profile"
	ActionRated          Action = "rated"
	ActionHelp           Action = "help"
	ActionError          Action = "error"
)

// Message is a notice delivered to one user. Messages are never stored;
// the ID only lets the transport edit a message it already delivered.
type Message struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Action    Action          `json:"action,omitempty"`
	Content   string          `json:"content"`
	Keyboard  [][]game.Button `json:"keyboard,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// New builds a message stamped with the current time.
func New(t Type, a Action, content string) *Message {
	return &Message{
		Type:      t,
		Action:    a,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// System builds a system notice.
func System(a Action, content string) *Message {
	return New(TypeSystem, a, content)
}

// WithKeyboard attaches an inline keyboard and returns m.
func (m *Message) WithKeyboard(rows [][]game.Button) *Message {
	m.Keyboard = rows
	return m
}
