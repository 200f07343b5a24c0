package match

import "errors"

var (
	ErrAlreadyInSession  = errors.New("match: already in a session")
	ErrProfileIncomplete = errors.New("match: profile incomplete")
	ErrSelfPairing       = errors.New("match: cannot pair a user with themselves")
	ErrNotInSession      = errors.New("match: not in a session")
	ErrWrongTarget       = errors.New("match: invitee is not the current partner")
	ErrInviteExpired     = errors.New("match: invite expired or invalid")
	ErrGameAlreadyActive = errors.New("match: a game is already active")
)
