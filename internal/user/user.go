package user

import (
	"fmt"
	"math"
	"strings"
)

// ID is the opaque numeric identifier of an anonymous user.
type ID int64

// Gender is the gender a user states on their profile.
type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Opposite returns the other concrete gender, or GenderUnset.
func (g Gender) Opposite() Gender {
	switch g {
	case GenderMale:
		return GenderFemale
	case GenderFemale:
		return GenderMale
	}
	return GenderUnset
}

// ParseGender accepts "male"/"m" and "female"/"f" in any case.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return GenderMale, nil
	case "female", "f":
		return GenderFemale, nil
	}
	return GenderUnset, fmt.Errorf("unknown gender %q", s)
}

// Rating is the kind of feedback one user leaves about a former partner.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
)

// Valid reports whether r is a known rating kind.
func (r Rating) Valid() bool {
	return r == RatingPositive || r == RatingNegative
}

const (
	// BaselineReputation is reported until the user has finished a chat.
	BaselineReputation = 5.0

	// MaxReputation caps the computed reputation.
	MaxReputation = 10.0
)

// Profile holds the demographic attributes and counters kept for a user.
type Profile struct {
	ID              ID     `json:"id" redis:"-" dynamodbav:"id"`
	Gender          Gender `json:"gender,omitempty" redis:"gender" dynamodbav:"gender,omitempty"`
	AgeBand         string `json:"age_band,omitempty" redis:"age_band" dynamodbav:"age_band,omitempty"`
	Region          string `json:"region,omitempty" redis:"region" dynamodbav:"region,omitempty"`
	Points          int64  `json:"points" redis:"points" dynamodbav:"points"`
	Chats           int64  `json:"chats" redis:"chats" dynamodbav:"chats"`
	PositiveRatings int64  `json:"positive_ratings" redis:"ratings_positive" dynamodbav:"ratings_positive"`
	NegativeRatings int64  `json:"negative_ratings" redis:"ratings_negative" dynamodbav:"ratings_negative"`
}

// Complete reports whether the profile carries everything matchmaking needs.
func (p *Profile) Complete() bool {
	if p == nil {
		return false
	}
	return (p.Gender == GenderMale || p.Gender == GenderFemale) && p.AgeBand != "" && p.Region != ""
}

// Reputation is min(10, positive/chats*3 + 7) once the user has chatted,
// BaselineReputation before that.
func (p *Profile) Reputation() float64 {
	if p.Chats <= 0 {
		return BaselineReputation
	}
	return math.Min(MaxReputation, float64(p.PositiveRatings)/float64(p.Chats)*3+7)
}
