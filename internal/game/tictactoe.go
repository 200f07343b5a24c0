// Package game implements the tic-tac-toe match two chat partners can play
// inside their session.
package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

// Mark is the content of one board cell.
type Mark byte

const (
	Empty Mark = iota
	X
	O
)

func (m Mark) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	}
	return " "
}

// Outcome is the terminal result of a game, or OutcomeNone while it runs.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeXWon
	OutcomeOWon
	OutcomeDraw
)

// Cells is the number of board cells.
const Cells = 9

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// TicTacToe is a plain value; copying it yields an independent snapshot.
type TicTacToe struct {
	Players [2]user.ID // Players[0] plays X, Players[1] plays O.
	Board   [Cells]Mark
	Turn    user.ID
	Outcome Outcome

	// boardMessages holds, per player slot, the ID of the message that
	// currently shows the board to that player.
	boardMessages [2]string
}

// New starts a game where a plays X and moves first.
func New(a, b user.ID) TicTacToe {
	return TicTacToe{
		Players: [2]user.ID{a, b},
		Turn:    a,
	}
}

// slot returns the player index of id, or -1.
func (g *TicTacToe) slot(id user.ID) int {
	switch id {
	case g.Players[0]:
		return 0
	case g.Players[1]:
		return 1
	}
	return -1
}

// Has reports whether id plays in this game.
func (g *TicTacToe) Has(id user.ID) bool {
	return g.slot(id) >= 0
}

// Opponent returns the other player.
func (g *TicTacToe) Opponent(id user.ID) user.ID {
	if g.Players[0] == id {
		return g.Players[1]
	}
	return g.Players[0]
}

// MarkOf returns the symbol id plays with.
func (g *TicTacToe) MarkOf(id user.ID) Mark {
	switch g.slot(id) {
	case 0:
		return X
	case 1:
		return O
	}
	return Empty
}

// Terminal reports whether the game has been won or drawn.
func (g *TicTacToe) Terminal() bool {
	return g.Outcome != OutcomeNone
}

// Winner returns the winning player, if any.
func (g *TicTacToe) Winner() (user.ID, bool) {
	switch g.Outcome {
	case OutcomeXWon:
		return g.Players[0], true
	case OutcomeOWon:
		return g.Players[1], true
	}
	return 0, false
}

// Move places player's mark on cell. It returns false without changing
// anything if the game is over, the cell is invalid or taken, or it is not
// player's turn.
func (g *TicTacToe) Move(player user.ID, cell int) bool {
	if g.Terminal() || player != g.Turn || cell < 0 || cell >= Cells || g.Board[cell] != Empty {
		return false
	}
	mark := g.MarkOf(player)
	if mark == Empty {
		return false
	}
	g.Board[cell] = mark

	switch {
	case g.completesLine(mark):
		if mark == X {
			g.Outcome = OutcomeXWon
		} else {
			g.Outcome = OutcomeOWon
		}
	case g.full():
		g.Outcome = OutcomeDraw
	default:
		g.Turn = g.Opponent(player)
	}
	return true
}

func (g *TicTacToe) completesLine(m Mark) bool {
	for _, l := range lines {
		if g.Board[l[0]] == m && g.Board[l[1]] == m && g.Board[l[2]] == m {
			return true
		}
	}
	return false
}

func (g *TicTacToe) full() bool {
	for _, c := range g.Board {
		if c == Empty {
			return false
		}
	}
	return true
}

// BoardMessage returns the ID of the message showing the board to player.
func (g *TicTacToe) BoardMessage(player user.ID) string {
	if i := g.slot(player); i >= 0 {
		return g.boardMessages[i]
	}
	return ""
}

// SetBoardMessage records which message shows the board to player.
func (g *TicTacToe) SetBoardMessage(player user.ID, msgID string) {
	if i := g.slot(player); i >= 0 {
		g.boardMessages[i] = msgID
	}
}

// Status summarises the game from viewer's point of view.
func (g *TicTacToe) Status(viewer user.ID) string {
	switch g.Outcome {
	case OutcomeDraw:
		return "Draw! The board is full."
	case OutcomeXWon, OutcomeOWon:
		if w, _ := g.Winner(); w == viewer {
			return "You win! 🎉"
		}
		return "Your partner wins."
	}
	if g.Turn == viewer {
		return fmt.Sprintf("Your turn (%s).", g.MarkOf(viewer))
	}
	return fmt.Sprintf("Waiting for your partner (%s).", g.MarkOf(g.Opponent(viewer)))
}

// Render draws the board as three text rows; empty cells show their index.
func (g *TicTacToe) Render() string {
	var b strings.Builder
	for row := 0; row < 3; row++ {
		if row > 0 {
			b.WriteString("\n---+---+---\n")
		}
		for col := 0; col < 3; col++ {
			if col > 0 {
				b.WriteString("|")
			}
			i := row*3 + col
			if g.Board[i] == Empty {
				b.WriteString(" " + strconv.Itoa(i) + " ")
			} else {
				b.WriteString(" " + g.Board[i].String() + " ")
			}
		}
	}
	return b.String()
}

// Button is one key of an inline keyboard.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
}

// MoveData is the callback payload for a move on cell.
func MoveData(cell int) string {
	return "move:" + strconv.Itoa(cell)
}

// ParseMoveData is the inverse of MoveData.
func ParseMoveData(data string) (int, bool) {
	rest, ok := strings.CutPrefix(data, "move:")
	if !ok {
		return 0, false
	}
	cell, err := strconv.Atoi(rest)
	if err != nil || cell < 0 || cell >= Cells {
		return 0, false
	}
	return cell, true
}

// Keyboard lays the board out as a 3x3 grid of buttons. Only empty cells of
// a running game carry move data; a terminal board is display only.
func (g *TicTacToe) Keyboard() [][]Button {
	rows := make([][]Button, 3)
	for row := range rows {
		rows[row] = make([]Button, 3)
		for col := range rows[row] {
			i := row*3 + col
			btn := Button{Text: "·"}
			if g.Board[i] != Empty {
				btn.Text = g.Board[i].String()
			} else if !g.Terminal() {
				btn.Data = MoveData(i)
			}
			rows[row][col] = btn
		}
	}
	return rows
}
