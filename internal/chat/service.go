// Package chat turns user commands into matchmaking operations and the
// notices each party receives. Engine calls never overlap with directory
// or transport I/O.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/game"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/match"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/media"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/message"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

// Transport delivers notices to users. Send returns the ID of the delivered
// message so it can later be edited in place.
type Transport interface {
	Send(ctx context.Context, to user.ID, msg *message.Message) (string, error)
	Edit(ctx context.Context, to user.ID, msgID string, msg *message.Message) error
}

// Service implements the user-facing entry points.
type Service struct {
	engine    *match.Engine
	users     user.Directory
	transport Transport
	media     media.Suggester
}

// Option configures a Service.
type Option func(*Service)

// WithSuggester enables media suggestions.
func WithSuggester(s media.Suggester) Option {
	return func(svc *Service) {
		svc.media = s
	}
}

// NewService creates a Service.
func NewService(engine *match.Engine, users user.Directory, transport Transport, opts ...Option) *Service {
	s := &Service{
		engine:    engine,
		users:     users,
		transport: transport,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the matchmaking engine behind the service.
func (s *Service) Engine() *match.Engine {
	return s.engine
}

// notify sends msg and logs delivery failures.
func (s *Service) notify(ctx context.Context, to user.ID, msg *message.Message) (string, error) {
	id, err := s.transport.Send(ctx, to, msg)
	if err != nil {
		log.WithFields(log.Fields{"user": to, "action": msg.Action}).WithError(err).Debug("chat: delivery failed")
	}
	return id, err
}

func (s *Service) notice(ctx context.Context, to user.ID, a message.Action, text string) {
	s.notify(ctx, to, message.System(a, text))
}

// OnSetProfile stores the demographic fields used for matching.
func (s *Service) OnSetProfile(ctx context.Context, id user.ID, gender, ageBand, region string) error {
	g, err := user.ParseGender(gender)
	ageBand = strings.TrimSpace(ageBand)
	region = strings.TrimSpace(region)
	if err != nil || ageBand == "" || region == "" {
		s.notice(ctx, id, message.ActionError, textProfileInvalid)
		return nil
	}
	if err := s.users.SetDemographics(ctx, id, g, ageBand, region); err != nil {
		s.notice(ctx, id, message.ActionError, textUnavailable)
		return err
	}
	s.notice(ctx, id, message.ActionProfile, textProfileSaved)
	return nil
}

// OnProfile shows the user their points and reputation.
func (s *Service) OnProfile(ctx context.Context, id user.ID) error {
	p, err := s.users.Get(ctx, id)
	if err != nil {
		s.notice(ctx, id, message.ActionError, textUnavailable)
		return err
	}
	s.notice(ctx, id, message.ActionProfile, profileText(p))
	return nil
}

// OnFindPartner matches id with a waiting user or files id as waiting.
func (s *Service) OnFindPartner(ctx context.Context, id user.ID, mode match.Mode) error {
	profile, err := s.users.Get(ctx, id)
	if err != nil {
		s.notice(ctx, id, message.ActionError, textUnavailable)
		return err
	}

	searching := s.engine.Waiting(id)
	res, err := s.engine.FindPartner(id, profile, mode)
	switch {
	case errors.Is(err, match.ErrAlreadyInSession):
		s.notice(ctx, id, message.ActionError, textAlreadyInSession)
		return nil
	case errors.Is(err, match.ErrProfileIncomplete):
		s.notice(ctx, id, message.ActionError, textProfileIncomplete)
		return nil
	case err != nil:
		s.notice(ctx, id, message.ActionError, textUnavailable)
		return err
	}

	if !res.Matched {
		text := textWaiting
		if searching {
			text = textStillWaiting
		}
		s.notice(ctx, id, message.ActionWaiting, text)
		return nil
	}
	s.startChat(ctx, id, res.Partner)
	return nil
}

// startChat announces a new session to both parties and credits them.
func (s *Service) startChat(ctx context.Context, requester, partner user.ID) {
	log.WithFields(log.Fields{"user": requester, "partner": partner}).Info("chat: session started")

	if _, err := s.notify(ctx, partner, message.System(message.ActionMatched, textMatched)); err != nil {
		s.deliveryFailed(ctx, requester, partner)
		return
	}
	s.notice(ctx, requester, message.ActionMatched, textMatched)

	for _, id := range []user.ID{requester, partner} {
		if err := s.users.RecordChat(ctx, id); err != nil {
			log.WithField("user", id).WithError(err).Warn("chat: failed to record chat")
		}
	}
}

// OnEnd ends the user's chat or cancels their search.
func (s *Service) OnEnd(ctx context.Context, id user.ID) error {
	out := s.engine.End(id)
	switch out.Kind {
	case match.EndSessionEnded:
		s.sessionEnded(ctx, id, out.Partner, true)
	case match.EndWasWaiting:
		s.notice(ctx, id, message.ActionCancelled, textCancelled)
	default:
		s.notice(ctx, id, message.ActionError, textNotInSession)
	}
	return nil
}

// OnNext ends the current chat and immediately looks for a new partner.
func (s *Service) OnNext(ctx context.Context, id user.ID) error {
	if out := s.engine.End(id); out.Kind == match.EndSessionEnded {
		s.sessionEnded(ctx, id, out.Partner, true)
	}
	return s.OnFindPartner(ctx, id, match.ModeAny)
}

// OnDisconnect ends whatever the user was doing when their connection
// went away. Only the partner is told.
func (s *Service) OnDisconnect(ctx context.Context, id user.ID) {
	if out := s.engine.End(id); out.Kind == match.EndSessionEnded {
		s.sessionEnded(ctx, id, out.Partner, false)
	}
}

// sessionEnded notifies both sides of an ended session and offers each a
// rating of the other.
func (s *Service) sessionEnded(ctx context.Context, id, partner user.ID, tellUser bool) {
	log.WithFields(log.Fields{"user": id, "partner": partner}).Info("chat: session ended")
	s.notify(ctx, partner, message.System(message.ActionPartnerLeft, textPartnerLeft).
		WithKeyboard(ratingKeyboard(id)))
	if tellUser {
		s.notify(ctx, id, message.System(message.ActionEnded, textEnded).
			WithKeyboard(ratingKeyboard(partner)))
	}
}

// deliveryFailed tears down a session whose partner cannot be reached and
// tells the reachable side.
func (s *Service) deliveryFailed(ctx context.Context, id, partner user.ID) {
	if !s.engine.Drop(id, partner) {
		return
	}
	log.WithFields(log.Fields{"user": id, "partner": partner}).Warn("chat: partner unreachable, session dropped")
	s.notice(ctx, id, message.ActionDeliveryFailed, textDeliveryFailed)
}

// OnMessage forwards content to the user's partner.
func (s *Service) OnMessage(ctx context.Context, id user.ID, content string) error {
	partner, ok := s.engine.PartnerOf(id)
	if !ok {
		s.notice(ctx, id, message.ActionError, textNotInSession)
		return nil
	}
	if _, err := s.notify(ctx, partner, message.New(message.TypeChat, "", content)); err != nil {
		s.deliveryFailed(ctx, id, partner)
	}
	return nil
}

// OnGameInvite invites the user's partner to a game of tic-tac-toe.
func (s *Service) OnGameInvite(ctx context.Context, inviter user.ID) error {
	partner, ok := s.engine.PartnerOf(inviter)
	if !ok {
		s.notice(ctx, inviter, message.ActionError, textNotInSession)
		return nil
	}
	if _, running := s.engine.Game(inviter); running {
		s.notice(ctx, inviter, message.ActionError, textGameActive)
		return nil
	}

	switch err := s.engine.Invite(inviter, partner); {
	case errors.Is(err, match.ErrNotInSession), errors.Is(err, match.ErrWrongTarget):
		s.notice(ctx, inviter, message.ActionError, textNotInSession)
		return nil
	case err != nil:
		return err
	}

	invite := message.System(message.ActionInvite, textInvite).WithKeyboard(inviteKeyboard(inviter))
	if _, err := s.notify(ctx, partner, invite); err != nil {
		s.deliveryFailed(ctx, inviter, partner)
		return nil
	}
	s.notice(ctx, inviter, message.ActionInviteSent, textInviteSent)
	return nil
}

// OnInviteAccept starts the game if the invite is still pending.
func (s *Service) OnInviteAccept(ctx context.Context, invitee, inviter user.ID) error {
	g, err := s.engine.AcceptInvite(invitee, inviter)
	switch {
	case errors.Is(err, match.ErrInviteExpired):
		s.notice(ctx, invitee, message.ActionError, textInviteExpired)
		return nil
	case errors.Is(err, match.ErrGameAlreadyActive):
		s.notice(ctx, invitee, message.ActionError, textGameActive)
		return nil
	case err != nil:
		return err
	}
	s.renderBoards(ctx, g)
	return nil
}

// OnInviteDecline drops a pending invite and tells the inviter.
func (s *Service) OnInviteDecline(ctx context.Context, invitee, inviter user.ID) error {
	if !s.engine.DeclineInvite(invitee, inviter) {
		s.notice(ctx, invitee, message.ActionError, textInviteExpired)
		return nil
	}
	s.notice(ctx, inviter, message.ActionDeclined, textInviteDeclined)
	s.notice(ctx, invitee, message.ActionDeclined, textYouDeclined)
	return nil
}

// OnGameMove applies a move. Illegal moves and moves without a game are
// ignored.
func (s *Service) OnGameMove(ctx context.Context, player user.ID, cell int) error {
	g, ok := s.engine.Move(player, cell)
	if !ok {
		log.WithFields(log.Fields{"user": player, "cell": cell}).Debug("chat: move rejected")
		return nil
	}
	s.renderBoards(ctx, g)
	if g.Terminal() {
		s.engine.ReleaseGame(player)
	}
	return nil
}

// renderBoards shows g to both players, editing the previous board
// message where there is one and falling back to a new message.
func (s *Service) renderBoards(ctx context.Context, g game.TicTacToe) {
	for _, p := range g.Players {
		msg := message.New(message.TypeBoard, "", g.Status(p)+"\n\n"+g.Render()).WithKeyboard(g.Keyboard())
		if prev := g.BoardMessage(p); prev != "" {
			msg.ID = prev
			if err := s.transport.Edit(ctx, p, prev, msg); err == nil {
				continue
			}
			msg.ID = ""
		}
		id, err := s.notify(ctx, p, msg)
		if err != nil {
			continue
		}
		s.engine.SetBoardMessage(p, id)
	}
}

// OnRatingSubmitted records rater's feedback about their last partner.
func (s *Service) OnRatingSubmitted(ctx context.Context, rater, rated user.ID, kind user.Rating) error {
	if !kind.Valid() || !s.engine.ConsumeRating(rater, rated) {
		s.notice(ctx, rater, message.ActionError, textRatingRejected)
		return nil
	}
	if err := s.users.RecordRating(ctx, rated, kind); err != nil {
		s.notice(ctx, rater, message.ActionError, textUnavailable)
		return err
	}
	s.notice(ctx, rater, message.ActionRated, textRated)
	return nil
}

// OnSuggest sends a media suggestion to both partners.
func (s *Service) OnSuggest(ctx context.Context, id user.ID, kind media.Kind) error {
	partner, ok := s.engine.PartnerOf(id)
	if !ok {
		s.notice(ctx, id, message.ActionError, textNotInSession)
		return nil
	}
	if s.media == nil {
		s.notice(ctx, id, message.ActionError, textNoSuggestions)
		return nil
	}

	sug, err := s.media.Suggest(ctx, kind)
	if errors.Is(err, media.ErrUnknownKind) {
		s.notice(ctx, id, message.ActionError, textNoSuggestions)
		return nil
	}
	if err != nil {
		s.notice(ctx, id, message.ActionError, textNoSuggestions)
		return err
	}

	text := suggestionText(sug)
	if _, err := s.notify(ctx, partner, message.New(message.TypeSuggestion, "", text)); err != nil {
		s.deliveryFailed(ctx, id, partner)
		return nil
	}
	s.notify(ctx, id, message.New(message.TypeSuggestion, "", text))
	return nil
}

// OnHelp lists the available commands.
func (s *Service) OnHelp(ctx context.Context, id user.ID) {
	s.notice(ctx, id, message.ActionHelp, textHelp)
}

func profileText(p *user.Profile) string {
	return fmt.Sprintf("Points: %d\nReputation: %.1f/10\nChats: %d", p.Points, p.Reputation(), p.Chats)
}

func suggestionText(sug media.Suggestion) string {
	text := fmt.Sprintf("%s suggestion: %s", kindEmoji[sug.Kind], sug.Title)
	if sug.Note != "" {
		text += "\n" + sug.Note
	}
	return text
}
