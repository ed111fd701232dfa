package api

import (
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"strconv"
	"strings"
	"time"

	"popcorn/handlers"
	"popcorn/internal/metrics"
	"popcorn/utils"

	"github.com/gorilla/mux"
)

// PINHeader carries the access PIN when the server requires one.
const PINHeader = "X-Popcorn-PIN"

func itoa(i int) string      { return strconv.Itoa(i) }
func itoa64(i uint64) string { return strconv.FormatUint(i, 10) }

// localhostOnlyMiddleware restricts access to localhost requests only
func localhostOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = strings.Trim(host, "[]")
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			http.Error(w, "Debug endpoints only accessible from localhost", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// PINMiddleware rejects requests that do not present pin via header or ?pin=.
// An empty pin disables the check.
func PINMiddleware(pin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pin == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			presented := r.Header.Get(PINHeader)
			if presented == "" {
				presented = r.URL.Query().Get("pin")
			}
			if !utils.PINMatches(pin, strings.TrimSpace(presented)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"PIN required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// metricsMiddleware records request latency by route template.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method, itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	pin string,
	moviesHandler *handlers.MoviesHandler,
	watchedHandler *handlers.WatchedHandler,
	sessionsHandler *handlers.SessionsHandler,
	posterHandler *handlers.PosterHandler,
	tasksHandler *handlers.TasksHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)
	api.Use(metricsMiddleware)

	// Debug endpoints (localhost only, no PIN required)
	pprofRouter := api.PathPrefix("/debug/pprof").Subrouter()
	pprofRouter.Use(localhostOnlyMiddleware)
	pprofRouter.HandleFunc("/", pprof.Index)
	pprofRouter.HandleFunc("/cmdline", pprof.Cmdline)
	pprofRouter.HandleFunc("/profile", pprof.Profile)
	pprofRouter.HandleFunc("/symbol", pprof.Symbol)
	pprofRouter.HandleFunc("/trace", pprof.Trace)
	pprofRouter.HandleFunc("/goroutine", pprof.Handler("goroutine").ServeHTTP)
	pprofRouter.HandleFunc("/heap", pprof.Handler("heap").ServeHTTP)

	runtimeRouter := api.PathPrefix("/debug/runtime").Subrouter()
	runtimeRouter.Use(localhostOnlyMiddleware)
	runtimeRouter.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{` +
			`"goroutines":` + itoa(runtime.NumGoroutine()) + `,` +
			`"heapAlloc":` + itoa64(m.HeapAlloc) + `,` +
			`"heapInuse":` + itoa64(m.HeapInuse) + `,` +
			`"numGC":` + itoa(int(m.NumGC)) +
			`}`))
	}).Methods(http.MethodGet)

	protected := api.PathPrefix("").Subrouter()
	protected.Use(PINMiddleware(pin))

	// Stateless lookups
	protected.HandleFunc("/search", moviesHandler.Search).Methods(http.MethodGet)
	protected.HandleFunc("/search", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/movies/batch", moviesHandler.BatchDetails).Methods(http.MethodPost)
	protected.HandleFunc("/movies/batch", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/movies/{id}", moviesHandler.Details).Methods(http.MethodGet)
	protected.HandleFunc("/movies/{id}", handleOptions).Methods(http.MethodOptions)

	protected.HandleFunc("/posters", posterHandler.Proxy).Methods(http.MethodGet)
	protected.HandleFunc("/posters", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/posters/stats", posterHandler.Stats).Methods(http.MethodGet)

	// Maintenance tasks
	protected.HandleFunc("/tasks", tasksHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/tasks", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/tasks/{id}/run", tasksHandler.Run).Methods(http.MethodPost)
	protected.HandleFunc("/tasks/{id}/run", handleOptions).Methods(http.MethodOptions)

	// Watched list
	protected.HandleFunc("/watched", watchedHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/watched", watchedHandler.Add).Methods(http.MethodPost)
	protected.HandleFunc("/watched", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/watched/summary", watchedHandler.Summary).Methods(http.MethodGet)
	protected.HandleFunc("/watched/summary", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/watched/{id}", watchedHandler.Remove).Methods(http.MethodDelete)
	protected.HandleFunc("/watched/{id}", handleOptions).Methods(http.MethodOptions)

	// Interactive sessions
	sessions := protected.PathPrefix("/sessions").Subrouter()
	sessions.HandleFunc("", sessionsHandler.Create).Methods(http.MethodPost)
	sessions.HandleFunc("", handleOptions).Methods(http.MethodOptions)
	sessions.HandleFunc("/{id}", sessionsHandler.Get).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}", sessionsHandler.Delete).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id}", handleOptions).Methods(http.MethodOptions)
	sessions.HandleFunc("/{id}/events", sessionsHandler.Events).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}/query", sessionsHandler.SetQuery).Methods(http.MethodPut)
	sessions.HandleFunc("/{id}/query", handleOptions).Methods(http.MethodOptions)
	sessions.HandleFunc("/{id}/refresh", sessionsHandler.Refresh).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/refresh", handleOptions).Methods(http.MethodOptions)
	sessions.HandleFunc("/{id}/focus", sessionsHandler.Focus).Methods(http.MethodPut)
	sessions.HandleFunc("/{id}/focus", handleOptions).Methods(http.MethodOptions)
	sessions.HandleFunc("/{id}/select", sessionsHandler.Select).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/select", handleOptions).Methods(http.MethodOptions)
	sessions.HandleFunc("/{id}/close", sessionsHandler.Close).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/close", handleOptions).Methods(http.MethodOptions)
	sessions.HandleFunc("/{id}/keys", sessionsHandler.Keys).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/keys", handleOptions).Methods(http.MethodOptions)
	sessions.HandleFunc("/{id}/rating", sessionsHandler.Rate).Methods(http.MethodPut)
	sessions.HandleFunc("/{id}/rating", handleOptions).Methods(http.MethodOptions)
	sessions.HandleFunc("/{id}/confirm", sessionsHandler.Confirm).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/confirm", handleOptions).Methods(http.MethodOptions)
}
