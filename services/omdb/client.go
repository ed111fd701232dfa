package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"popcorn/models"
)

var (
	// ErrNotFound is returned when the upstream reports no matching title.
	ErrNotFound = errors.New("movie not found")
	// ErrUnavailable covers transport failures and non-success HTTP statuses.
	ErrUnavailable = errors.New("metadata service unavailable")
	// ErrAPIKeyMissing is returned when no API key is configured.
	ErrAPIKeyMissing = errors.New("omdb api key not configured")
)

// Config holds the client settings.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	DetailRetries     int
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client talks to an OMDb-compatible search and detail endpoint.
type Client struct {
	baseURL       string
	apiKey        string
	httpc         *http.Client
	limiter       *rate.Limiter
	detailRetries uint
	logger        *slog.Logger
}

func NewClient(cfg Config) *Client {
	httpc := cfg.HTTPClient
	if httpc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	retries := cfg.DetailRetries
	if retries <= 0 {
		retries = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:       strings.TrimSpace(cfg.BaseURL),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		httpc:         httpc,
		limiter:       rate.NewLimiter(limit, burst),
		detailRetries: uint(retries),
		logger:        logger.With("component", "omdb"),
	}
}

func (c *Client) isConfigured() bool {
	return c != nil && c.apiKey != "" && c.baseURL != ""
}

type searchResponse struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Search   []struct {
		IMDBID string `json:"imdbID"`
		Title  string `json:"Title"`
		Year   string `json:"Year"`
		Poster string `json:"Poster"`
	} `json:"Search"`
}

type detailResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	IMDBID     string `json:"imdbID"`
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Poster     string `json:"Poster"`
	Runtime    string `json:"Runtime"`
	IMDBRating string `json:"imdbRating"`
	Genre      string `json:"Genre"`
	Plot       string `json:"Plot"`
	Director   string `json:"Director"`
	Actors     string `json:"Actors"`
	Released   string `json:"Released"`
}

// statusError marks a response status; retryable for 429 and 5xx.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return "omdb request failed: " + e.status }

func (e *statusError) Unwrap() error { return ErrUnavailable }

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Search queries the search endpoint for titles matching query.
// The request is never retried; a cancelled ctx yields ctx.Err().
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResultItem, error) {
	if !c.isConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var payload searchResponse
	if err := c.get(ctx, url.Values{"s": {query}}, &payload); err != nil {
		return nil, err
	}

	// Any negative search status ("Movie not found!", "Too many results.") is reported as not found.
	if strings.EqualFold(payload.Response, "False") {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, payload.Error)
	}

	results := make([]models.SearchResultItem, 0, len(payload.Search))
	for _, item := range payload.Search {
		results = append(results, models.SearchResultItem{
			ID:        item.IMDBID,
			Title:     item.Title,
			Year:      item.Year,
			PosterURL: cleanValue(item.Poster),
		})
	}
	return results, nil
}

// Details fetches the full record for one title, retrying 429/5xx responses.
func (c *Client) Details(ctx context.Context, id string) (*models.MovieDetail, error) {
	if !c.isConfigured() {
		return nil, ErrAPIKeyMissing
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	var payload detailResponse
	err := retry.Do(
		func() error {
			payload = detailResponse{}
			return c.get(ctx, url.Values{"i": {id}}, &payload)
		},
		retry.Context(ctx),
		retry.Attempts(c.detailRetries),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var se *statusError
			return errors.As(err, &se) && se.retryable()
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("detail request failed, retrying", "id", id, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(payload.Response, "False") {
		if isNotFoundMessage(payload.Error) || strings.Contains(strings.ToLower(payload.Error), "incorrect imdb id") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, payload.Error)
	}

	detailID := payload.IMDBID
	if detailID == "" {
		detailID = id
	}

	return &models.MovieDetail{
		ID:             detailID,
		Title:          payload.Title,
		Year:           payload.Year,
		PosterURL:      cleanValue(payload.Poster),
		Runtime:        cleanValue(payload.Runtime),
		RuntimeMinutes: ParseRuntime(payload.Runtime),
		CriticRating:   ParseRating(payload.IMDBRating),
		Genre:          cleanValue(payload.Genre),
		Plot:           cleanValue(payload.Plot),
		Director:       cleanValue(payload.Director),
		Actors:         cleanValue(payload.Actors),
		ReleaseDate:    cleanValue(payload.Released),
	}, nil
}

func (c *Client) get(ctx context.Context, params url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build omdb request: %w", err)
	}

	q := req.URL.Query()
	q.Set("apikey", c.apiKey)
	for key, values := range params {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func isNotFoundMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "not found")
}

// cleanValue maps the upstream "N/A" placeholder to an empty string.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "N/A") {
		return ""
	}
	return v
}

// ParseRuntime extracts the minutes from values like "136 min". Unknown values yield 0.
func ParseRuntime(v string) int {
	fields := strings.Fields(cleanValue(v))
	if len(fields) == 0 {
		return 0
	}
	minutes, err := strconv.Atoi(fields[0])
	if err != nil || minutes < 0 {
		return 0
	}
	return minutes
}

// ParseRating parses a critic rating like "8.7". Unknown values yield 0.
func ParseRating(v string) float64 {
	rating, err := strconv.ParseFloat(cleanValue(v), 64)
	if err != nil || rating < 0 {
		return 0
	}
	return rating
}
