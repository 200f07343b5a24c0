package chat

import (
	"context"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/game"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

// OnCallback handles the data of a pressed keyboard button. Malformed or
// stale data is ignored.
func (s *Service) OnCallback(ctx context.Context, id user.ID, data string) error {
	if cell, ok := game.ParseMoveData(data); ok {
		return s.OnGameMove(ctx, id, cell)
	}

	parts := strings.Split(data, ":")
	switch {
	case len(parts) == 2 && parts[0] == callbackAccept:
		if inviter, ok := parseID(parts[1]); ok {
			return s.OnInviteAccept(ctx, id, inviter)
		}
	case len(parts) == 2 && parts[0] == callbackDecline:
		if inviter, ok := parseID(parts[1]); ok {
			return s.OnInviteDecline(ctx, id, inviter)
		}
	case len(parts) == 3 && parts[0] == callbackRate:
		if rated, ok := parseID(parts[2]); ok {
			return s.OnRatingSubmitted(ctx, id, rated, user.Rating(parts[1]))
		}
	}

	log.WithFields(log.Fields{"user": id, "data": data}).Debug("chat: ignoring callback")
	return nil
}

func parseID(s string) (user.ID, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return user.ID(n), true
}
