package ws

import (
	"encoding/json"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/media"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

// Envelope is the JSON structure sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client envelope types.
const (
	TypeHello    = "hello"
	TypeProfile  = "profile"
	TypeMe       = "me"
	TypeFind     = "find"
	TypeEnd      = "end"
	TypeNext     = "next"
	TypeChat     = "chat"
	TypeInvite   = "invite"
	TypeAccept   = "accept"
	TypeDecline  = "decline"
	TypeMove     = "move"
	TypeRate     = "rate"
	TypeCallback = "callback"
	TypeSuggest  = "suggest"
	TypeHelp     = "help"
)

// Server envelope types.
const (
	TypeSession = "session"
	TypeNotice  = "notice"
	TypeEdit    = "edit"
	TypeError   = "error"
)

// HelloPayload opens a connection. An empty or unknown token starts a new
// anonymous identity.
type HelloPayload struct {
	Token string `json:"token,omitempty"`
}

// SessionPayload answers hello with the identity bound to the connection.
type SessionPayload struct {
	Token   string  `json:"token"`
	UserID  user.ID `json:"user_id"`
	Resumed bool    `json:"resumed"`
}

// ProfilePayload sets the demographic fields used for matching.
type ProfilePayload struct {
	Gender  string `json:"gender"`
	AgeBand string `json:"age_band"`
	Region  string `json:"region"`
}

// FindPayload starts a partner search. Mode is "any" (default) or
// "opposite".
type FindPayload struct {
	Mode string `json:"mode,omitempty"`
}

// ChatPayload is sent by the client to post a message to its partner.
type ChatPayload struct {
	Content string `json:"content"`
}

// InviteReplyPayload accepts or declines a game invite.
type InviteReplyPayload struct {
	Inviter user.ID `json:"inviter"`
}

// MovePayload places a mark on a board cell.
type MovePayload struct {
	Cell int `json:"cell"`
}

// RatePayload rates a former partner.
type RatePayload struct {
	User user.ID     `json:"user"`
	Kind user.Rating `json:"kind"`
}

// CallbackPayload carries the data of a pressed keyboard button.
type CallbackPayload struct {
	Data string `json:"data"`
}

// SuggestPayload asks for a media suggestion.
type SuggestPayload struct {
	Kind media.Kind `json:"kind"`
}

// ErrorPayload reports a malformed or refused request.
type ErrorPayload struct {
	Message string `json:"message"`
}

// encode wraps v in an envelope of the given type.
func encode(typ string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Payload: data})
}
