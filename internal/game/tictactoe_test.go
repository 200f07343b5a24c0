package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

func play(t *testing.T, g *TicTacToe, cells ...int) {
	t.Helper()
	for _, c := range cells {
		require.True(t, g.Move(g.Turn, c), "move on cell %d rejected", c)
	}
}

func TestNewGame(t *testing.T) {
	g := New(1, 2)

	assert.Equal(t, [2]user.ID{1, 2}, g.Players)
	assert.Equal(t, user.ID(1), g.Turn)
	assert.Equal(t, X, g.MarkOf(1))
	assert.Equal(t, O, g.MarkOf(2))
	assert.Equal(t, Empty, g.MarkOf(3))
	assert.False(t, g.Terminal())
	for _, c := range g.Board {
		assert.Equal(t, Empty, c)
	}
}

func TestMoveTogglesTurn(t *testing.T) {
	g := New(1, 2)

	assert.True(t, g.Move(1, 4))
	assert.Equal(t, X, g.Board[4])
	assert.EqualValues(t, 2, g.Turn)
	assert.True(t, g.Move(2, 0))
	assert.EqualValues(t, 1, g.Turn)
}

func TestMoveByNonTurnPlayerRejected(t *testing.T) {
	g := New(1, 2)
	before := g

	assert.False(t, g.Move(2, 0))
	assert.Equal(t, before, g)
}

func TestMoveRejections(t *testing.T) {
	g := New(1, 2)
	require.True(t, g.Move(1, 0))

	assert.False(t, g.Move(2, 0), "occupied cell")
	assert.False(t, g.Move(2, -1), "negative cell")
	assert.False(t, g.Move(2, 9), "cell out of range")
	assert.False(t, g.Move(3, 1), "stranger")
	assert.EqualValues(t, 2, g.Turn)
}

func TestForcedWin(t *testing.T) {
	g := New(1, 2)
	// X: 0,1,2  O: 3,4
	play(t, &g, 0, 3, 1, 4, 2)

	assert.Equal(t, OutcomeXWon, g.Outcome)
	w, ok := g.Winner()
	require.True(t, ok)
	assert.EqualValues(t, 1, w)
	assert.False(t, g.Move(2, 5), "no moves after the game is won")
}

func TestOWinsOnDiagonal(t *testing.T) {
	g := New(1, 2)
	// X: 0,1,5  O: 2,4,6
	play(t, &g, 0, 2, 1, 4, 5, 6)

	assert.Equal(t, OutcomeOWon, g.Outcome)
	w, _ := g.Winner()
	assert.EqualValues(t, 2, w)
}

func TestDraw(t *testing.T) {
	g := New(1, 2)
	// X O X
	// X O O
	// O X X
	play(t, &g, 0, 1, 2, 4, 3, 5, 7, 6, 8)

	assert.Equal(t, OutcomeDraw, g.Outcome)
	_, ok := g.Winner()
	assert.False(t, ok)
	assert.True(t, g.Terminal())
}

func TestWinOnLastCellIsNotDraw(t *testing.T) {
	g := New(1, 2)
	// X O X
	// O X O
	// O X X   X completes the 0-4-8 diagonal on the last empty cell.
	play(t, &g, 0, 1, 2, 3, 4, 5, 7, 6, 8)

	assert.Equal(t, OutcomeXWon, g.Outcome)
}

func TestBoardMessages(t *testing.T) {
	g := New(1, 2)
	g.SetBoardMessage(1, "m1")
	g.SetBoardMessage(2, "m2")
	g.SetBoardMessage(3, "ignored")

	assert.Equal(t, "m1", g.BoardMessage(1))
	assert.Equal(t, "m2", g.BoardMessage(2))
	assert.Equal(t, "", g.BoardMessage(3))
}

func TestSnapshotIsIndependent(t *testing.T) {
	g := New(1, 2)
	snap := g
	require.True(t, g.Move(1, 0))

	assert.Equal(t, Empty, snap.Board[0])
}

func TestStatus(t *testing.T) {
	g := New(1, 2)
	assert.Equal(t, "Your turn (X).", g.Status(1))
	assert.Equal(t, "Waiting for your partner (X).", g.Status(2))

	play(t, &g, 0, 3, 1, 4, 2)
	assert.Contains(t, g.Status(1), "You win")
	assert.Equal(t, "Your partner wins.", g.Status(2))
}

func TestRender(t *testing.T) {
	g := New(1, 2)
	require.True(t, g.Move(1, 4))

	assert.Equal(t, " 0 | 1 | 2 \n---+---+---\n 3 | X | 5 \n---+---+---\n 6 | 7 | 8 ", g.Render())
}

func TestKeyboard(t *testing.T) {
	g := New(1, 2)
	require.True(t, g.Move(1, 4))

	kb := g.Keyboard()
	require.Len(t, kb, 3)
	assert.Equal(t, Button{Text: "X"}, kb[1][1])
	assert.Equal(t, MoveData(0), kb[0][0].Data)

	play(t, &g, 0, 1, 2, 7)
	require.True(t, g.Terminal())
	for _, row := range g.Keyboard() {
		for _, btn := range row {
			assert.Empty(t, btn.Data, "terminal keyboard must not carry moves")
		}
	}
}

func TestParseMoveData(t *testing.T) {
	cell, ok := ParseMoveData(MoveData(7))
	assert.True(t, ok)
	assert.Equal(t, 7, cell)

	for _, bad := range []string{"", "move:", "move:9", "move:-1", "move:x", "cell:1"} {
		_, ok := ParseMoveData(bad)
		assert.False(t, ok, bad)
	}
}
