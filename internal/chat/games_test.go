package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/game"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/message"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

// startGame pairs users 1 and 2 and has 2 accept 1's invite.
func startGame(t *testing.T, f *fixture) {
	t.Helper()
	f.pair(t)

	require.NoError(t, f.svc.OnGameInvite(f.ctx, 1))
	invite := f.tr.last(2)
	require.Equal(t, message.ActionInvite, invite.Action)
	require.Equal(t, "accept:1", invite.Keyboard[0][0].Data)
	assert.Equal(t, message.ActionInviteSent, f.tr.last(1).Action)

	require.NoError(t, f.svc.OnCallback(f.ctx, 2, invite.Keyboard[0][0].Data))
	for _, id := range []user.ID{1, 2} {
		require.Equal(t, message.TypeBoard, f.tr.last(id).Type)
	}
}

func TestGameInviteAcceptAndWin(t *testing.T) {
	f := newFixture(t)
	startGame(t, f)
	assert.True(t, strings.HasPrefix(f.tr.last(1).Content, "Your turn (X)."))
	assert.True(t, strings.HasPrefix(f.tr.last(2).Content, "Waiting for your partner (X)."))

	moves := []struct {
		player user.ID
		cell   int
	}{{1, 0}, {2, 3}, {1, 1}, {2, 4}, {1, 2}}
	for _, m := range moves {
		require.NoError(t, f.svc.OnCallback(f.ctx, m.player, game.MoveData(m.cell)))
	}

	for _, id := range []user.ID{1, 2} {
		edits := f.tr.edits[id]
		require.Len(t, edits, len(moves))
		assert.Equal(t, f.tr.last(id).ID, edits[0].ID, "board edits target the first board message")
	}
	final := f.tr.edits[1][len(moves)-1]
	assert.True(t, strings.HasPrefix(final.Content, "You win!"))
	assert.True(t, strings.HasPrefix(f.tr.edits[2][len(moves)-1].Content, "Your partner wins."))
	for _, row := range final.Keyboard {
		for _, b := range row {
			assert.Empty(t, b.Data)
		}
	}

	_, running := f.svc.Engine().Game(1)
	assert.False(t, running, "finished game is released")

	// a new game can start in the same chat
	require.NoError(t, f.svc.OnGameInvite(f.ctx, 2))
	assert.Equal(t, message.ActionInvite, f.tr.last(1).Action)
}

func TestGameMoveOutOfTurnIgnored(t *testing.T) {
	f := newFixture(t)
	startGame(t, f)

	require.NoError(t, f.svc.OnGameMove(f.ctx, 2, 4))
	assert.Empty(t, f.tr.edits[1])
	assert.Empty(t, f.tr.edits[2])

	require.NoError(t, f.svc.OnGameMove(f.ctx, 3, 4))
	assert.Empty(t, f.tr.edits[1])
}

func TestGameBoardFallsBackToNewMessage(t *testing.T) {
	f := newFixture(t)
	startGame(t, f)
	first := f.tr.last(1).ID
	f.tr.editFails = true

	require.NoError(t, f.svc.OnGameMove(f.ctx, 1, 4))

	board := f.tr.last(1)
	assert.Equal(t, message.TypeBoard, board.Type)
	assert.NotEqual(t, first, board.ID)
	g, ok := f.svc.Engine().Game(1)
	require.True(t, ok)
	assert.Equal(t, board.ID, g.BoardMessage(1))
}

func TestGameInviteWhileRunning(t *testing.T) {
	f := newFixture(t)
	startGame(t, f)

	require.NoError(t, f.svc.OnGameInvite(f.ctx, 2))
	assert.Equal(t, textGameActive, f.tr.last(2).Content)
}

func TestGameInviteWithoutSession(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.OnGameInvite(f.ctx, 1))
	assert.Equal(t, textNotInSession, f.tr.last(1).Content)
}

func TestGameInviteDeclined(t *testing.T) {
	f := newFixture(t)
	f.pair(t)
	require.NoError(t, f.svc.OnGameInvite(f.ctx, 1))

	require.NoError(t, f.svc.OnCallback(f.ctx, 2, "decline:1"))
	assert.Equal(t, textInviteDeclined, f.tr.last(1).Content)
	assert.Equal(t, textYouDeclined, f.tr.last(2).Content)

	require.NoError(t, f.svc.OnCallback(f.ctx, 2, "accept:1"))
	assert.Equal(t, textInviteExpired, f.tr.last(2).Content)
	_, running := f.svc.Engine().Game(1)
	assert.False(t, running)
}

func TestGameInviteExpiresWithSession(t *testing.T) {
	f := newFixture(t)
	f.pair(t)
	require.NoError(t, f.svc.OnGameInvite(f.ctx, 1))
	require.NoError(t, f.svc.OnEnd(f.ctx, 1))

	require.NoError(t, f.svc.OnInviteAccept(f.ctx, 2, 1))
	assert.Equal(t, textInviteExpired, f.tr.last(2).Content)
}

func TestGameEndedWithSession(t *testing.T) {
	f := newFixture(t)
	startGame(t, f)

	require.NoError(t, f.svc.OnEnd(f.ctx, 2))

	_, running := f.svc.Engine().Game(1)
	assert.False(t, running)
	require.NoError(t, f.svc.OnGameMove(f.ctx, 1, 0))
	assert.Empty(t, f.tr.edits[1])
}
