package session

import (
	"fmt"
	"strconv"

	"popcorn/services/watched"
)

// DefaultMaxRating is the number of stars shown by the rating control.
const DefaultMaxRating = watched.MaxRating

// RatingState is what the rating control renders.
type RatingState struct {
	Value     int    `json:"value"`
	Max       int    `json:"max"`
	Message   string `json:"message,omitempty"`
	Decisions int    `json:"decisions"`
}

// RatingControl holds the chosen star value for the current selection and
// counts how often the choice changed.
type RatingControl struct {
	max       int
	messages  []string
	value     int
	decisions int
}

// NewRatingControl clamps max into 1..watched.MaxRating. Messages are only
// used when there is exactly one per star.
func NewRatingControl(maxRating int, messages []string) *RatingControl {
	if maxRating <= 0 || maxRating > watched.MaxRating {
		maxRating = DefaultMaxRating
	}
	if len(messages) != maxRating {
		messages = nil
	}
	return &RatingControl{max: maxRating, messages: messages}
}

func (r *RatingControl) Set(n int) error {
	if n < 1 || n > r.max {
		return fmt.Errorf("%w: got %d, max %d", watched.ErrInvalidRating, n, r.max)
	}
	if n != r.value {
		r.decisions++
	}
	r.value = n
	return nil
}

func (r *RatingControl) Reset() {
	r.value = 0
	r.decisions = 0
}

func (r *RatingControl) State() RatingState {
	return RatingState{
		Value:     r.value,
		Max:       r.max,
		Message:   r.message(),
		Decisions: r.decisions,
	}
}

func (r *RatingControl) message() string {
	if r.value == 0 {
		return ""
	}
	if r.messages != nil {
		return r.messages[r.value-1]
	}
	return strconv.Itoa(r.value)
}
