// Package match pairs waiting users into one-to-one sessions and owns all
// transient session state: the waiting pool, the partner registry, running
// games and pending game invites. Every exported Engine method is a single
// critical section under one mutex and performs no I/O.
package match

import (
	"math/rand/v2"
	"sync"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/game"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

// Mode selects which partners a search accepts.
type Mode int

const (
	// ModeAny matches with anyone waiting, picked at random.
	ModeAny Mode = iota
	// ModeOpposite matches the longest-waiting user of the opposite gender.
	ModeOpposite
)

// ParseMode maps "any" and "opposite" to a Mode. Unknown values mean ModeAny.
func ParseMode(s string) Mode {
	if s == "opposite" {
		return ModeOpposite
	}
	return ModeAny
}

// Result is the outcome of FindPartner. Matched is false when the
// requester was filed in the waiting pool instead.
type Result struct {
	Matched bool
	Partner user.ID
}

// EndKind tells what End found for the user.
type EndKind int

const (
	EndIdle EndKind = iota
	EndWasWaiting
	EndSessionEnded
)

// EndOutcome is the result of End. Partner is set for EndSessionEnded.
type EndOutcome struct {
	Kind    EndKind
	Partner user.ID
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Waiting  int `json:"waiting"`
	Sessions int `json:"sessions"`
	Games    int `json:"games"`
	Invites  int `json:"invites"`
}

// Engine is the single authority over matchmaking state.
type Engine struct {
	mu       sync.Mutex
	pool     *Pool
	partners map[user.ID]user.ID
	games    map[user.ID]*game.TicTacToe
	invites  map[user.ID]user.ID // invitee -> inviter
	ratings  map[user.ID]user.ID // rater -> former partner
	intn     func(int) int
}

// Option configures an Engine.
type Option func(*Engine)

// WithIntn replaces the random source used for ModeAny picks.
func WithIntn(intn func(int) int) Option {
	return func(e *Engine) {
		e.intn = intn
	}
}

// NewEngine creates an empty Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		pool:     NewPool(),
		partners: make(map[user.ID]user.ID),
		games:    make(map[user.ID]*game.TicTacToe),
		invites:  make(map[user.ID]user.ID),
		ratings:  make(map[user.ID]user.ID),
		intn:     rand.IntN,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindPartner pairs id with a waiting user or files id as waiting under
// its own gender. profile must be id's current profile.
func (e *Engine) FindPartner(id user.ID, profile *user.Profile, mode Mode) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.partners[id]; ok {
		return Result{}, ErrAlreadyInSession
	}
	if !profile.Complete() {
		return Result{}, ErrProfileIncomplete
	}

	e.pool.Remove(id)

	var (
		candidate user.ID
		found     bool
	)
	if mode == ModeOpposite {
		candidate, found = e.pool.DequeueHead(CategoryOf(profile.Gender.Opposite()))
		if !found {
			candidate, found = e.pool.DequeueHead(CategoryAny)
		}
	} else {
		candidate, found = e.pool.removeRandom(e.intn, CategoryMale, CategoryFemale)
	}

	if found && candidate != id {
		if err := e.create(id, candidate); err != nil {
			return Result{}, err
		}
		return Result{Matched: true, Partner: candidate}, nil
	}

	e.pool.Enqueue(id, CategoryOf(profile.Gender))
	return Result{}, nil
}

// create registers a and b as partners, overwriting stale entries.
// Must be called while holding mu.
func (e *Engine) create(a, b user.ID) error {
	if a == b {
		return ErrSelfPairing
	}
	e.partners[a] = b
	e.partners[b] = a
	return nil
}

// PartnerOf returns id's current partner.
func (e *Engine) PartnerOf(id user.ID) (user.ID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.partners[id]
	return p, ok
}

// Waiting reports whether id is in the waiting pool.
func (e *Engine) Waiting(id user.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Contains(id)
}

// End ends id's session or cancels its wait. Ending a session drops the
// game and invites of both parties and lets each rate the other once.
func (e *Engine) End(id user.ID) EndOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if partner, ok := e.partners[id]; ok {
		e.endSession(id, partner)
		return EndOutcome{Kind: EndSessionEnded, Partner: partner}
	}
	if e.pool.Contains(id) {
		e.pool.Remove(id)
		return EndOutcome{Kind: EndWasWaiting}
	}
	return EndOutcome{Kind: EndIdle}
}

// Drop ends the session between a and b, but only if they are still
// partners. It returns false if the session already changed.
func (e *Engine) Drop(a, b user.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.partners[a]; !ok || p != b {
		return false
	}
	e.endSession(a, b)
	return true
}

// endSession must be called while holding mu.
func (e *Engine) endSession(a, b user.ID) {
	e.teardown(a, b)
	e.ratings[a] = b
	e.ratings[b] = a
}

// teardown removes the pair and everything scoped to it.
// Must be called while holding mu.
func (e *Engine) teardown(a, b user.ID) {
	delete(e.partners, a)
	delete(e.partners, b)
	delete(e.games, a)
	delete(e.games, b)
	for invitee, inviter := range e.invites {
		if invitee == a || invitee == b || inviter == a || inviter == b {
			delete(e.invites, invitee)
		}
	}
}

// ConsumeRating reports whether rater may rate rated, i.e. rated was
// rater's most recent partner and has not been rated yet.
func (e *Engine) ConsumeRating(rater, rated user.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.ratings[rater]; !ok || last != rated {
		return false
	}
	delete(e.ratings, rater)
	return true
}

// Stats returns current counts.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	games := make(map[*game.TicTacToe]struct{}, len(e.games))
	for _, g := range e.games {
		games[g] = struct{}{}
	}
	return Stats{
		Waiting:  e.pool.Size(),
		Sessions: len(e.partners) / 2,
		Games:    len(games),
		Invites:  len(e.invites),
	}
}
