package similarity

import (
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		s1       string
		s2       string
		minScore float64
		maxScore float64
	}{
		{name: "identical", s1: "The Matrix", s2: "The Matrix", minScore: 1.0, maxScore: 1.0},
		{name: "case insensitive", s1: "The Matrix", s2: "the matrix", minScore: 1.0, maxScore: 1.0},
		{name: "dots vs spaces", s1: "The.Matrix", s2: "The Matrix", minScore: 1.0, maxScore: 1.0},
		{name: "accents transliterated", s1: "Amélie", s2: "Amelie", minScore: 1.0, maxScore: 1.0},
		{name: "ampersand vs and", s1: "Me, MYSELF & I", s2: "Me Myself and I", minScore: 1.0, maxScore: 1.0},
		{name: "possessive prefix", s1: "Disney's Fantasia", s2: "Fantasia", minScore: 0.0, maxScore: 0.9},
		{name: "leading article", s1: "The Dark Knight", s2: "Dark Knight", minScore: 0.9, maxScore: 1.0},
		{name: "different titles", s1: "The Matrix", s2: "Inception", minScore: 0.0, maxScore: 0.4},
		{name: "empty", s1: "", s2: "Inception", minScore: 0.0, maxScore: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := Similarity(tt.s1, tt.s2)
			if score < tt.minScore || score > tt.maxScore {
				t.Errorf("Similarity(%q, %q) = %.3f, want within [%.2f, %.2f]", tt.s1, tt.s2, score, tt.minScore, tt.maxScore)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		query string
		title string
		want  bool
	}{
		{"", "The Matrix", true},
		{"matrix", "The Matrix", true},
		{"mat rel", "The Matrix Reloaded", true},
		{"amelie", "Le Fabuleux Destin d'Amélie Poulain", true},
		{"the matrx", "The Matrix", true},
		{"inception", "The Matrix", false},
		{"matrix", "", false},
	}

	for _, tt := range tests {
		if got := Matches(tt.query, tt.title, DefaultThreshold); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.query, tt.title, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  The.Matrix--Reloaded ": "the matrix reloaded",
		"Star Wars: Episode IV":   "star wars episode iv",
		"Amélie":                  "amelie",
		"Fast & Furious":          "fast and furious",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"matrix", "matrx", 1},
	}
	for _, tt := range tests {
		if got := levenshteinDistance([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
