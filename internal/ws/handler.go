package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/chat"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/match"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/ratelimit"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

const (
	// maxMessageLength is the longest chat message accepted, in characters.
	maxMessageLength = 2000

	// helloTimeout bounds the wait for the opening hello envelope.
	helloTimeout = 10 * time.Second
)

// Handler handles WebSocket upgrade requests and client message loops.
type Handler struct {
	hub      *Hub
	sessions *user.SessionStore
	service  *chat.Service
	limiter  *ratelimit.Limiter
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMessageLimiter limits how fast each user may send chat messages.
func WithMessageLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *Handler) {
		h.limiter = l
	}
}

// NewHandler creates a new WebSocket Handler.
func NewHandler(hub *Hub, sessions *user.SessionStore, service *chat.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		hub:      hub,
		sessions: sessions,
		service:  service,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the HTTP connection to a WebSocket and runs the
// read loop for the client.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.WithField("remote", r.RemoteAddr).WithError(err).Debug("ws: accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := &Client{conn: conn}
	if !h.handleHello(r.Context(), client) {
		return
	}

	connCtx, ok := h.hub.addClient(client)
	if !ok {
		h.sessions.MarkDisconnected(client.token)
		return
	}
	logger := log.WithFields(log.Fields{"user": client.userID, "remote": r.RemoteAddr})
	logger.Debug("ws: client connected")
	defer func() {
		h.hub.removeClient(client)
		// The old session must be gone before the token can be resumed.
		h.service.OnDisconnect(context.Background(), client.userID)
		h.sessions.MarkDisconnected(client.token)
		logger.Debug("ws: client disconnected")
	}()

	h.readLoop(r.Context(), connCtx, client)
}

// handleHello reads the first message from the client and expects a
// "hello" envelope. A known token of a disconnected session resumes that
// identity; anything else gets a new one.
func (h *Handler) handleHello(ctx context.Context, client *Client) bool {
	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	_, data, err := client.conn.Read(helloCtx)
	if err != nil {
		log.WithError(err).Debug("ws: read hello failed")
		return false
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		closeWithError(client.conn, "invalid JSON")
		return false
	}
	if env.Type != TypeHello {
		closeWithError(client.conn, "first message must be type 'hello'")
		return false
	}

	var payload HelloPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			closeWithError(client.conn, "invalid hello payload")
			return false
		}
	}

	resumed := false
	var sess *user.AnonymousSession
	if payload.Token != "" {
		sess = h.sessions.Resume(payload.Token)
		resumed = sess != nil
		if !resumed && h.sessions.Get(payload.Token) != nil {
			log.Debug("ws: token already connected, issuing a new identity")
		}
	}
	if sess == nil {
		sess = h.sessions.Create()
	}
	client.userID = sess.UserID
	client.token = sess.Token

	out, err := encode(TypeSession, SessionPayload{
		Token:   sess.Token,
		UserID:  sess.UserID,
		Resumed: resumed,
	})
	if err != nil {
		log.WithError(err).Error("ws: encode session")
		return false
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := client.conn.Write(writeCtx, websocket.MessageText, out); err != nil {
		log.WithError(err).Debug("ws: write session failed")
		h.sessions.MarkDisconnected(sess.Token)
		return false
	}
	return true
}

// readLoop reads messages from the client until the connection closes
// or the connection manager cancels connCtx.
func (h *Handler) readLoop(ctx context.Context, connCtx context.Context, client *Client) {
	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := client.conn.Read(ctx)
		if err != nil {
			return
		}

		// Mark activity so idle reaping doesn't close active connections.
		h.hub.ConnMgr().TouchActivity(client)

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.sendError(client, "invalid JSON")
			continue
		}
		if err := h.dispatch(ctx, client, env); err != nil {
			log.WithFields(log.Fields{"user": client.userID, "type": env.Type}).WithError(err).Warn("ws: request failed")
		}
	}
}

// dispatch routes one client envelope to the chat service.
func (h *Handler) dispatch(ctx context.Context, client *Client, env Envelope) error {
	id := client.userID

	switch env.Type {
	case TypeChat:
		var p ChatPayload
		if !h.decode(client, env, &p) {
			return nil
		}
		content := strings.TrimSpace(p.Content)
		if content == "" {
			h.sendError(client, "message content is required")
			return nil
		}
		if utf8.RuneCountInString(content) > maxMessageLength {
			h.sendError(client, "message exceeds maximum length of 2000 characters")
			return nil
		}
		if !h.limiter.Allow(strconv.FormatInt(int64(id), 10)) {
			h.sendError(client, "you are sending messages too fast")
			return nil
		}
		return h.service.OnMessage(ctx, id, content)

	case TypeProfile:
		var p ProfilePayload
		if !h.decode(client, env, &p) {
			return nil
		}
		return h.service.OnSetProfile(ctx, id, p.Gender, p.AgeBand, p.Region)

	case TypeMe:
		return h.service.OnProfile(ctx, id)

	case TypeFind:
		var p FindPayload
		if len(env.Payload) > 0 && !h.decode(client, env, &p) {
			return nil
		}
		return h.service.OnFindPartner(ctx, id, match.ParseMode(p.Mode))

	case TypeEnd:
		return h.service.OnEnd(ctx, id)

	case TypeNext:
		return h.service.OnNext(ctx, id)

	case TypeInvite:
		return h.service.OnGameInvite(ctx, id)

	case TypeAccept, TypeDecline:
		var p InviteReplyPayload
		if !h.decode(client, env, &p) {
			return nil
		}
		if env.Type == TypeAccept {
			return h.service.OnInviteAccept(ctx, id, p.Inviter)
		}
		return h.service.OnInviteDecline(ctx, id, p.Inviter)

	case TypeMove:
		var p MovePayload
		if !h.decode(client, env, &p) {
			return nil
		}
		return h.service.OnGameMove(ctx, id, p.Cell)

	case TypeRate:
		var p RatePayload
		if !h.decode(client, env, &p) {
			return nil
		}
		return h.service.OnRatingSubmitted(ctx, id, p.User, p.Kind)

	case TypeCallback:
		var p CallbackPayload
		if !h.decode(client, env, &p) {
			return nil
		}
		return h.service.OnCallback(ctx, id, p.Data)

	case TypeSuggest:
		var p SuggestPayload
		if !h.decode(client, env, &p) {
			return nil
		}
		return h.service.OnSuggest(ctx, id, p.Kind)

	case TypeHelp:
		h.service.OnHelp(ctx, id)
		return nil
	}

	h.sendError(client, "unknown message type "+strconv.Quote(env.Type))
	return nil
}

// decode unmarshals the envelope payload into v, reporting failures to
// the client.
func (h *Handler) decode(client *Client, env Envelope, v any) bool {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		h.sendError(client, "invalid "+env.Type+" payload")
		return false
	}
	return true
}

// sendError queues an error envelope for the client.
func (h *Handler) sendError(client *Client, msg string) {
	data, err := encode(TypeError, ErrorPayload{Message: msg})
	if err != nil {
		return
	}
	if err := h.hub.ConnMgr().Send(client, data); err != nil {
		log.WithField("user", client.userID).WithError(err).Debug("ws: failed to queue error")
	}
}

func closeWithError(conn *websocket.Conn, reason string) {
	conn.Close(websocket.StatusPolicyViolation, reason)
}
