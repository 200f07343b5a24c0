package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/chat"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/match"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/message"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/ratelimit"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

type handlerEnv struct {
	ts       *httptest.Server
	hub      *Hub
	sessions *user.SessionStore
	engine   *match.Engine
}

func newHandlerTestServer(t *testing.T, opts ...HandlerOption) *handlerEnv {
	t.Helper()
	hub := NewHub()
	engine := match.NewEngine()
	sessions := user.NewSessionStore(0)
	svc := chat.NewService(engine, user.NewMemoryDirectory(), hub)
	env := &handlerEnv{
		ts:       httptest.NewServer(NewHandler(hub, sessions, svc, opts...)),
		hub:      hub,
		sessions: sessions,
		engine:   engine,
	}
	t.Cleanup(env.ts.Close)
	return env
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			t.Fatalf("marshal payload error: %v", err)
		}
	}
	env, _ := json.Marshal(Envelope{Type: typ, Payload: data})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, env); err != nil {
		t.Fatalf("write %s error: %v", typ, err)
	}
}

// dialAndHello connects, says hello with token and returns the session.
func dialAndHello(t *testing.T, url, token string) (*websocket.Conn, SessionPayload) {
	t.Helper()
	conn := dialWS(t, url)
	writeEnvelope(t, conn, TypeHello, HelloPayload{Token: token})

	env := readEnvelope(t, conn)
	if env.Type != TypeSession {
		t.Fatalf("expected session envelope, got %q", env.Type)
	}
	var sess SessionPayload
	if err := json.Unmarshal(env.Payload, &sess); err != nil {
		t.Fatalf("unmarshal session error: %v", err)
	}
	return conn, sess
}

// joinPool sets a complete profile and starts a search.
func joinPool(t *testing.T, conn *websocket.Conn, gender string) message.Message {
	t.Helper()
	writeEnvelope(t, conn, TypeProfile, ProfilePayload{Gender: gender, AgeBand: "25-34", Region: "EU"})
	if msg := readMessage(t, conn, TypeNotice); msg.Action != message.ActionProfile {
		t.Fatalf("expected profile notice, got %+v", msg)
	}
	writeEnvelope(t, conn, TypeFind, FindPayload{})
	return readMessage(t, conn, TypeNotice)
}

func TestHandlerHelloIssuesSession(t *testing.T) {
	env := newHandlerTestServer(t)

	conn, sess := dialAndHello(t, env.ts.URL, "")
	defer conn.Close(websocket.StatusNormalClosure, "")

	if sess.Token == "" || sess.UserID == 0 {
		t.Fatalf("expected token and user ID, got %+v", sess)
	}
	if sess.Resumed {
		t.Error("new session should not be marked resumed")
	}
	waitFor(t, func() bool { return env.hub.Connected(sess.UserID) })
}

func TestHandlerMatchAndChat(t *testing.T) {
	env := newHandlerTestServer(t)

	alice, _ := dialAndHello(t, env.ts.URL, "")
	defer alice.Close(websocket.StatusNormalClosure, "")
	bob, _ := dialAndHello(t, env.ts.URL, "")
	defer bob.Close(websocket.StatusNormalClosure, "")

	if msg := joinPool(t, alice, "female"); msg.Action != message.ActionWaiting {
		t.Fatalf("expected waiting notice, got %+v", msg)
	}
	if msg := joinPool(t, bob, "male"); msg.Action != message.ActionMatched {
		t.Fatalf("expected matched notice for bob, got %+v", msg)
	}
	if msg := readMessage(t, alice, TypeNotice); msg.Action != message.ActionMatched {
		t.Fatalf("expected matched notice for alice, got %+v", msg)
	}

	writeEnvelope(t, bob, TypeChat, ChatPayload{Content: "  hi there  "})
	msg := readMessage(t, alice, TypeNotice)
	if msg.Type != message.TypeChat {
		t.Errorf("expected chat message, got %q", msg.Type)
	}
	if msg.Content != "hi there" {
		t.Errorf("expected 'hi there', got %q", msg.Content)
	}
}

func TestHandlerDisconnectEndsSession(t *testing.T) {
	env := newHandlerTestServer(t)

	alice, _ := dialAndHello(t, env.ts.URL, "")
	defer alice.Close(websocket.StatusNormalClosure, "")
	bob, bobSess := dialAndHello(t, env.ts.URL, "")

	joinPool(t, alice, "female")
	joinPool(t, bob, "male")
	readMessage(t, alice, TypeNotice) // matched

	bob.Close(websocket.StatusNormalClosure, "")

	msg := readMessage(t, alice, TypeNotice)
	if msg.Action != message.ActionPartnerLeft {
		t.Fatalf("expected partner_left notice, got %+v", msg)
	}
	if len(msg.Keyboard) == 0 {
		t.Error("expected a rating keyboard")
	}
	if _, ok := env.engine.PartnerOf(bobSess.UserID); ok {
		t.Error("expected bob's session to be over")
	}
}

func TestHandlerResumeAfterDisconnectKeepsNewSession(t *testing.T) {
	env := newHandlerTestServer(t)

	alice, _ := dialAndHello(t, env.ts.URL, "")
	defer alice.Close(websocket.StatusNormalClosure, "")
	bob, bobSess := dialAndHello(t, env.ts.URL, "")

	joinPool(t, alice, "female")
	joinPool(t, bob, "male")
	readMessage(t, alice, TypeNotice) // matched

	bob.Close(websocket.StatusNormalClosure, "")

	// Once the token is resumable the old session must already be over.
	waitFor(t, func() bool {
		s := env.sessions.Get(bobSess.Token)
		return s != nil && !s.Connected()
	})
	if _, ok := env.engine.PartnerOf(bobSess.UserID); ok {
		t.Fatal("token became resumable while its old session was still active")
	}
	if msg := readMessage(t, alice, TypeNotice); msg.Action != message.ActionPartnerLeft {
		t.Fatalf("expected partner_left notice, got %+v", msg)
	}

	carol, carolSess := dialAndHello(t, env.ts.URL, "")
	defer carol.Close(websocket.StatusNormalClosure, "")
	if msg := joinPool(t, carol, "female"); msg.Action != message.ActionWaiting {
		t.Fatalf("expected waiting notice for carol, got %+v", msg)
	}

	bob2, resumed := dialAndHello(t, env.ts.URL, bobSess.Token)
	defer bob2.Close(websocket.StatusNormalClosure, "")
	if !resumed.Resumed || resumed.UserID != bobSess.UserID {
		t.Fatalf("expected bob's identity to resume, got %+v", resumed)
	}
	writeEnvelope(t, bob2, TypeFind, FindPayload{})
	if msg := readMessage(t, bob2, TypeNotice); msg.Action != message.ActionMatched {
		t.Fatalf("expected matched notice for bob, got %+v", msg)
	}
	if msg := readMessage(t, carol, TypeNotice); msg.Action != message.ActionMatched {
		t.Fatalf("expected matched notice for carol, got %+v", msg)
	}

	time.Sleep(50 * time.Millisecond)
	if p, ok := env.engine.PartnerOf(bobSess.UserID); !ok || p != carolSess.UserID {
		t.Errorf("expected bob to stay paired with carol, got %d (ok=%v)", p, ok)
	}
}

func TestHandlerResumeSession(t *testing.T) {
	env := newHandlerTestServer(t)

	conn, first := dialAndHello(t, env.ts.URL, "")
	conn.Close(websocket.StatusNormalClosure, "")
	waitFor(t, func() bool { return !env.hub.Connected(first.UserID) })
	waitFor(t, func() bool {
		s := env.sessions.Get(first.Token)
		return s != nil && !s.Connected()
	})

	conn2, second := dialAndHello(t, env.ts.URL, first.Token)
	defer conn2.Close(websocket.StatusNormalClosure, "")

	if !second.Resumed {
		t.Fatal("expected session to be resumed")
	}
	if second.UserID != first.UserID {
		t.Errorf("expected user ID %d, got %d", first.UserID, second.UserID)
	}

	// A token that is already connected cannot be taken over.
	conn3, third := dialAndHello(t, env.ts.URL, first.Token)
	defer conn3.Close(websocket.StatusNormalClosure, "")
	if third.Resumed || third.UserID == first.UserID {
		t.Errorf("expected a fresh identity, got %+v", third)
	}
}

func TestHandlerFirstMessageMustBeHello(t *testing.T) {
	env := newHandlerTestServer(t)

	conn := dialWS(t, env.ts.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")
	writeEnvelope(t, conn, TypeChat, ChatPayload{Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	env := newHandlerTestServer(t)

	conn, _ := dialAndHello(t, env.ts.URL, "")
	defer conn.Close(websocket.StatusNormalClosure, "")

	tests := []struct {
		typ     string
		payload any
		want    string
	}{
		{"dance", nil, "unknown message type"},
		{TypeChat, ChatPayload{Content: "   "}, "content is required"},
		{TypeChat, ChatPayload{Content: strings.Repeat("a", maxMessageLength+1)}, "maximum length"},
		{TypeMove, "not an object", "invalid move payload"},
	}
	for _, tt := range tests {
		writeEnvelope(t, conn, tt.typ, tt.payload)
		got := readEnvelope(t, conn)
		if got.Type != TypeError {
			t.Fatalf("%s: expected error envelope, got %q", tt.typ, got.Type)
		}
		var p ErrorPayload
		json.Unmarshal(got.Payload, &p)
		if !strings.Contains(p.Message, tt.want) {
			t.Errorf("%s: expected error containing %q, got %q", tt.typ, tt.want, p.Message)
		}
	}
}

func TestHandlerChatRateLimited(t *testing.T) {
	env := newHandlerTestServer(t, WithMessageLimiter(ratelimit.New(1, time.Hour)))

	alice, _ := dialAndHello(t, env.ts.URL, "")
	defer alice.Close(websocket.StatusNormalClosure, "")

	// Not in a chat, so the first message earns a "not in a chat" notice.
	writeEnvelope(t, alice, TypeChat, ChatPayload{Content: "one"})
	if got := readEnvelope(t, alice); got.Type != TypeNotice {
		t.Fatalf("expected notice, got %q", got.Type)
	}

	writeEnvelope(t, alice, TypeChat, ChatPayload{Content: "two"})
	got := readEnvelope(t, alice)
	var p ErrorPayload
	json.Unmarshal(got.Payload, &p)
	if got.Type != TypeError || !strings.Contains(p.Message, "too fast") {
		t.Fatalf("expected rate limit error, got %s %s", got.Type, got.Payload)
	}
}

func TestHandlerHelp(t *testing.T) {
	env := newHandlerTestServer(t)

	conn, _ := dialAndHello(t, env.ts.URL, "")
	defer conn.Close(websocket.StatusNormalClosure, "")

	writeEnvelope(t, conn, TypeHelp, nil)
	if msg := readMessage(t, conn, TypeNotice); msg.Action != message.ActionHelp {
		t.Errorf("expected help notice, got %+v", msg)
	}
}
