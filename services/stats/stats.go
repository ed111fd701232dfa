// Package stats derives the watched-list summary. Nothing here is cached;
// callers recompute on every request.
package stats

import (
	"math"
	"strconv"

	"popcorn/models"
)

// Summary describes a watched collection. The *Display fields carry the
// means formatted to two decimals.
type Summary struct {
	Count                     int     `json:"count"`
	MeanCriticRating          float64 `json:"meanCriticRating"`
	MeanUserRating            float64 `json:"meanUserRating"`
	MeanRuntimeMinutes        float64 `json:"meanRuntimeMinutes"`
	MeanCriticRatingDisplay   string  `json:"meanCriticRatingDisplay"`
	MeanUserRatingDisplay     string  `json:"meanUserRatingDisplay"`
	MeanRuntimeMinutesDisplay string  `json:"meanRuntimeMinutesDisplay"`
}

// Average is the arithmetic mean of values, 0 when there are none.
// Non-finite inputs are skipped.
func Average(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// FormatMean renders v with two decimals. Non-finite values render as "0.00".
func FormatMean(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func Summarize(entries []models.WatchedEntry) Summary {
	critic := make([]float64, 0, len(entries))
	user := make([]float64, 0, len(entries))
	runtime := make([]float64, 0, len(entries))
	for _, e := range entries {
		critic = append(critic, e.CriticRating)
		user = append(user, float64(e.UserRating))
		runtime = append(runtime, float64(e.RuntimeMinutes))
	}

	s := Summary{
		Count:              len(entries),
		MeanCriticRating:   Average(critic),
		MeanUserRating:     Average(user),
		MeanRuntimeMinutes: Average(runtime),
	}
	s.MeanCriticRatingDisplay = FormatMean(s.MeanCriticRating)
	s.MeanUserRatingDisplay = FormatMean(s.MeanUserRating)
	s.MeanRuntimeMinutesDisplay = FormatMean(s.MeanRuntimeMinutes)
	return s
}
