package models

import "time"

// WatchedEntry is a title the user has rated and added to their watched list.
// Entries are never mutated in place; they are appended or removed.
type WatchedEntry struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Year            string    `json:"year,omitempty"`
	PosterURL       string    `json:"posterUrl,omitempty"`
	CriticRating    float64   `json:"criticRating"`
	RuntimeMinutes  int       `json:"runtimeMinutes"`
	UserRating      int       `json:"userRating"`
	RatingDecisions int       `json:"ratingDecisions,omitempty"` // how often the rating changed before it was confirmed
	AddedAt         time.Time `json:"addedAt"`
}

// WatchedAdd captures the data required to append a watched entry.
type WatchedAdd struct {
	ID              string  `json:"id" validate:"required"`
	Title           string  `json:"title"`
	Year            string  `json:"year,omitempty"`
	PosterURL       string  `json:"posterUrl,omitempty"`
	CriticRating    float64 `json:"criticRating" validate:"gte=0,lte=10"`
	RuntimeMinutes  int     `json:"runtimeMinutes" validate:"gte=0"`
	UserRating      int     `json:"userRating" validate:"required,min=1,max=10"`
	RatingDecisions int     `json:"ratingDecisions,omitempty" validate:"gte=0"`
}

// Entry converts the add request into a watched entry stamped with addedAt.
func (w WatchedAdd) Entry(addedAt time.Time) WatchedEntry {
	return WatchedEntry{
		ID:              w.ID,
		Title:           w.Title,
		Year:            w.Year,
		PosterURL:       w.PosterURL,
		CriticRating:    w.CriticRating,
		RuntimeMinutes:  w.RuntimeMinutes,
		UserRating:      w.UserRating,
		RatingDecisions: w.RatingDecisions,
		AddedAt:         addedAt,
	}
}
