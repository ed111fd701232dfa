package models

// SearchResultItem is a single match returned by the search endpoint.
type SearchResultItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Year      string `json:"year"`
	PosterURL string `json:"posterUrl,omitempty"`
}

// MovieDetail holds the full record for one title, fetched per selection.
type MovieDetail struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Year           string  `json:"year"`
	PosterURL      string  `json:"posterUrl,omitempty"`
	Runtime        string  `json:"runtime,omitempty"` // raw value as reported upstream, e.g. "136 min"
	RuntimeMinutes int     `json:"runtimeMinutes"`
	CriticRating   float64 `json:"criticRating"`
	Genre          string  `json:"genre,omitempty"`
	Plot           string  `json:"plot,omitempty"`
	Director       string  `json:"director,omitempty"`
	Actors         string  `json:"actors,omitempty"`
	ReleaseDate    string  `json:"releaseDate,omitempty"`
}

// BatchDetailsItem pairs a requested id with its detail or the error that prevented it.
type BatchDetailsItem struct {
	ID      string       `json:"id"`
	Details *MovieDetail `json:"details,omitempty"`
	Error   string       `json:"error,omitempty"`
}
