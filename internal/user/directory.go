package user

import (
	"context"
	"sync"
)

// Directory stores user profiles. Counter updates must be atomic in the
// backend so concurrent sessions never lose an increment.
type Directory interface {
	// Get returns the profile for id. Unknown users get an empty profile.
	Get(ctx context.Context, id ID) (*Profile, error)
	SetDemographics(ctx context.Context, id ID, gender Gender, ageBand, region string) error
	// RecordChat counts a started chat and awards one point.
	RecordChat(ctx context.Context, id ID) error
	// RecordRating counts a rating; positive ratings also award one point.
	RecordRating(ctx context.Context, id ID, kind Rating) error
}

// MemoryDirectory keeps profiles in process memory.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[ID]*Profile
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		profiles: make(map[ID]*Profile),
	}
}

// Get returns a copy of the stored profile.
func (d *MemoryDirectory) Get(_ context.Context, id ID) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[id]
	if !ok {
		return &Profile{ID: id}, nil
	}
	cp := *p
	return &cp, nil
}

func (d *MemoryDirectory) SetDemographics(_ context.Context, id ID, gender Gender, ageBand, region string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.profile(id)
	p.Gender = gender
	p.AgeBand = ageBand
	p.Region = region
	return nil
}

func (d *MemoryDirectory) RecordChat(_ context.Context, id ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.profile(id)
	p.Chats++
	p.Points++
	return nil
}

func (d *MemoryDirectory) RecordRating(_ context.Context, id ID, kind Rating) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.profile(id)
	if kind == RatingPositive {
		p.PositiveRatings++
		p.Points++
	} else {
		p.NegativeRatings++
	}
	return nil
}

// profile returns the stored profile for id, creating it if needed.
// Must be called while holding mu.
func (d *MemoryDirectory) profile(id ID) *Profile {
	p, ok := d.profiles[id]
	if !ok {
		p = &Profile{ID: id}
		d.profiles[id] = p
	}
	return p
}
