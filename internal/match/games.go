package match

import (
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/game"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

// Invite records a pending game invite from inviter to invitee, replacing
// any invite invitee already had.
func (e *Engine) Invite(inviter, invitee user.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	partner, ok := e.partners[inviter]
	if !ok {
		return ErrNotInSession
	}
	if partner != invitee {
		return ErrWrongTarget
	}
	e.invites[invitee] = inviter
	return nil
}

// takeInvite consumes the invite from inviter to invitee if it exists.
// Must be called while holding mu.
func (e *Engine) takeInvite(invitee, inviter user.ID) bool {
	got, ok := e.invites[invitee]
	if !ok || got != inviter {
		return false
	}
	delete(e.invites, invitee)
	return true
}

// AcceptInvite consumes the invite and starts the game with inviter
// playing X. It returns a snapshot of the new game.
func (e *Engine) AcceptInvite(invitee, inviter user.ID) (game.TicTacToe, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.takeInvite(invitee, inviter) {
		return game.TicTacToe{}, ErrInviteExpired
	}
	return e.start(inviter, invitee)
}

// DeclineInvite consumes the invite. It returns false if there was no
// matching invite.
func (e *Engine) DeclineInvite(invitee, inviter user.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.takeInvite(invitee, inviter)
}

// start must be called while holding mu.
func (e *Engine) start(a, b user.ID) (game.TicTacToe, error) {
	if _, ok := e.games[a]; ok {
		return game.TicTacToe{}, ErrGameAlreadyActive
	}
	if _, ok := e.games[b]; ok {
		return game.TicTacToe{}, ErrGameAlreadyActive
	}
	g := game.New(a, b)
	e.games[a] = &g
	e.games[b] = &g
	return g, nil
}

// Game returns a snapshot of the game player is in.
func (e *Engine) Game(player user.ID) (game.TicTacToe, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.games[player]
	if !ok {
		return game.TicTacToe{}, false
	}
	return *g, true
}

// Move applies player's move. The snapshot is returned whenever a game
// exists; accepted is false for illegal moves or when there is no game.
func (e *Engine) Move(player user.ID, cell int) (snapshot game.TicTacToe, accepted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.games[player]
	if !ok {
		return game.TicTacToe{}, false
	}
	accepted = g.Move(player, cell)
	return *g, accepted
}

// SetBoardMessage records the message that shows the board to player.
func (e *Engine) SetBoardMessage(player user.ID, msgID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok := e.games[player]; ok {
		g.SetBoardMessage(player, msgID)
	}
}

// ReleaseGame drops player's game once it is terminal. Call it after both
// players have seen the final board. Running games are left alone.
func (e *Engine) ReleaseGame(player user.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.games[player]
	if !ok || !g.Terminal() {
		return
	}
	for _, p := range g.Players {
		if e.games[p] == g {
			delete(e.games, p)
		}
	}
}
