package match

import (
	"container/list"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

// Category is the bucket a waiting user is filed under.
type Category string

const (
	CategoryMale   Category = "male"
	CategoryFemale Category = "female"

	// CategoryAny is a neutral bucket only ever read as a fallback.
	// FindPartner never files anyone under it.
	CategoryAny Category = "any"
)

// CategoryOf maps a stated gender to its pool category.
func CategoryOf(g user.Gender) Category {
	switch g {
	case user.GenderMale:
		return CategoryMale
	case user.GenderFemale:
		return CategoryFemale
	}
	return CategoryAny
}

type poolEntry struct {
	id       user.ID
	category Category
}

// Pool is a set of FIFO queues keyed by category with a reverse index, so
// membership tests and removals never scan the queues. A user is queued in
// at most one category. Pool is not safe for concurrent use; Engine
// serializes access to it.
type Pool struct {
	queues map[Category]*list.List
	index  map[user.ID]*list.Element
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		queues: make(map[Category]*list.List),
		index:  make(map[user.ID]*list.Element),
	}
}

func (p *Pool) queue(c Category) *list.List {
	q, ok := p.queues[c]
	if !ok {
		q = list.New()
		p.queues[c] = q
	}
	return q
}

// Enqueue files id at the back of category, first removing it from
// wherever it was queued before.
func (p *Pool) Enqueue(id user.ID, c Category) {
	p.Remove(id)
	p.index[id] = p.queue(c).PushBack(poolEntry{id: id, category: c})
}

// DequeueHead pops the earliest arrival in category.
func (p *Pool) DequeueHead(c Category) (user.ID, bool) {
	q, ok := p.queues[c]
	if !ok || q.Len() == 0 {
		return 0, false
	}
	e := q.Front()
	p.unlink(e)
	return e.Value.(poolEntry).id, true
}

// Remove drops id from the pool. It is a no-op if id is not queued.
func (p *Pool) Remove(id user.ID) {
	if e, ok := p.index[id]; ok {
		p.unlink(e)
	}
}

// Contains reports whether id is queued in any category.
func (p *Pool) Contains(id user.ID) bool {
	_, ok := p.index[id]
	return ok
}

// queuedUnder returns the category id is queued under.
func (p *Pool) queuedUnder(id user.ID) (Category, bool) {
	e, ok := p.index[id]
	if !ok {
		return "", false
	}
	return e.Value.(poolEntry).category, true
}

// Len returns the number of users queued in category.
func (p *Pool) Len(c Category) int {
	if q, ok := p.queues[c]; ok {
		return q.Len()
	}
	return 0
}

// Size returns the number of queued users across all categories.
func (p *Pool) Size() int {
	return len(p.index)
}

// removeRandom picks one user uniformly from the union of the given
// categories and removes it. intn must return a value in [0, n).
func (p *Pool) removeRandom(intn func(int) int, cats ...Category) (user.ID, bool) {
	total := 0
	for _, c := range cats {
		total += p.Len(c)
	}
	if total == 0 {
		return 0, false
	}

	k := intn(total)
	for _, c := range cats {
		n := p.Len(c)
		if k >= n {
			k -= n
			continue
		}
		e := p.queues[c].Front()
		for ; k > 0; k-- {
			e = e.Next()
		}
		p.unlink(e)
		return e.Value.(poolEntry).id, true
	}
	return 0, false
}

func (p *Pool) unlink(e *list.Element) {
	entry := e.Value.(poolEntry)
	p.queues[entry.category].Remove(e)
	delete(p.index, entry.id)
}
