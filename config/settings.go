package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server  ServerSettings  `json:"server"`
	OMDb    OMDbSettings    `json:"omdb"`
	Storage StorageSettings `json:"storage"`
	Posters PosterSettings  `json:"posters"`
	App     AppSettings     `json:"app"`
	Log     LogConfig       `json:"log"`
}

type ServerSettings struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	PIN        string `json:"pin,omitempty"`
	RequirePIN bool   `json:"requirePin"` // when set, /api routes require the X-Popcorn-PIN header
}

// OMDbSettings configures the upstream movie metadata API.
type OMDbSettings struct {
	BaseURL           string  `json:"baseUrl"`
	APIKey            string  `json:"apiKey"`
	TimeoutSeconds    int     `json:"timeoutSeconds"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`
	DetailRetries     int     `json:"detailRetries"` // attempts for the detail endpoint on 429/5xx; search is never retried
}

// StorageBackend selects where the watched list slot lives.
type StorageBackend string

const (
	StorageBackendFile   StorageBackend = "file"
	StorageBackendSQLite StorageBackend = "sqlite"
	StorageBackendRedis  StorageBackend = "redis"
	StorageBackendBadger StorageBackend = "badger"
)

// StorageSettings describes the durable slot holding the watched list.
type StorageSettings struct {
	Backend       StorageBackend `json:"backend"`
	SlotKey       string         `json:"slotKey"`
	Directory     string         `json:"directory"`  // file backend
	SQLitePath    string         `json:"sqlitePath"` // sqlite backend
	BadgerPath    string         `json:"badgerPath"` // badger backend
	RedisAddr     string         `json:"redisAddr"`
	RedisPassword string         `json:"redisPassword,omitempty"`
	RedisDB       int            `json:"redisDb"`
}

// PosterSettings controls the poster proxy cache.
type PosterSettings struct {
	CacheDirectory  string   `json:"cacheDirectory"`
	AllowedHosts    []string `json:"allowedHosts"`
	CacheMaxAgeDays int      `json:"cacheMaxAgeDays"`
}

// AppSettings holds presentation-adjacent defaults shared by all sessions.
type AppSettings struct {
	Title          string   `json:"title"`
	MaxRating      int      `json:"maxRating"`
	RatingMessages []string `json:"ratingMessages,omitempty"`
	// SessionIdleMinutes is how long an untouched session survives before it is pruned.
	SessionIdleMinutes int `json:"sessionIdleMinutes"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

const (
	DefaultOMDbBaseURL = "https://www.omdbapi.com/"
	DefaultAppTitle    = "usePopcorn"
	DefaultSlotKey     = "watched"
)

// DefaultSettings returns the settings written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7878},
		OMDb: OMDbSettings{
			BaseURL:           DefaultOMDbBaseURL,
			TimeoutSeconds:    15,
			RequestsPerSecond: 5,
			Burst:             5,
			DetailRetries:     3,
		},
		Storage: StorageSettings{
			Backend:    StorageBackendFile,
			SlotKey:    DefaultSlotKey,
			Directory:  "cache",
			SQLitePath: "cache/popcorn.db",
			BadgerPath: "cache/badger",
			RedisAddr:  "127.0.0.1:6379",
		},
		Posters: PosterSettings{
			CacheDirectory:  "cache/posters",
			AllowedHosts:    []string{"m.media-amazon.com", "img.omdbapi.com"},
			CacheMaxAgeDays: 30,
		},
		App: AppSettings{Title: DefaultAppTitle, MaxRating: 10, SessionIdleMinutes: 30},
		Log: LogConfig{
			File:       "cache/logs/popcorn.log",
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Manager loads and saves settings.json.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir creates the directory holding the settings file.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.saveLocked(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}

	backfill(&s)
	return s, nil
}

// backfill fills settings introduced after the config file was written.
func backfill(s *Settings) {
	defaults := DefaultSettings()

	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = defaults.Server.Host
	}
	if s.Server.Port == 0 {
		s.Server.Port = defaults.Server.Port
	}

	if strings.TrimSpace(s.OMDb.BaseURL) == "" {
		s.OMDb.BaseURL = defaults.OMDb.BaseURL
	}
	if s.OMDb.TimeoutSeconds <= 0 {
		s.OMDb.TimeoutSeconds = defaults.OMDb.TimeoutSeconds
	}
	if s.OMDb.RequestsPerSecond <= 0 {
		s.OMDb.RequestsPerSecond = defaults.OMDb.RequestsPerSecond
	}
	if s.OMDb.Burst <= 0 {
		s.OMDb.Burst = defaults.OMDb.Burst
	}
	if s.OMDb.DetailRetries <= 0 {
		s.OMDb.DetailRetries = defaults.OMDb.DetailRetries
	}

	s.Storage.Backend = StorageBackend(strings.ToLower(strings.TrimSpace(string(s.Storage.Backend))))
	if s.Storage.Backend == "" {
		s.Storage.Backend = defaults.Storage.Backend
	}
	if strings.TrimSpace(s.Storage.SlotKey) == "" {
		s.Storage.SlotKey = defaults.Storage.SlotKey
	}
	if strings.TrimSpace(s.Storage.Directory) == "" {
		s.Storage.Directory = defaults.Storage.Directory
	}
	if strings.TrimSpace(s.Storage.SQLitePath) == "" {
		s.Storage.SQLitePath = defaults.Storage.SQLitePath
	}
	if strings.TrimSpace(s.Storage.BadgerPath) == "" {
		s.Storage.BadgerPath = defaults.Storage.BadgerPath
	}
	if strings.TrimSpace(s.Storage.RedisAddr) == "" {
		s.Storage.RedisAddr = defaults.Storage.RedisAddr
	}

	if strings.TrimSpace(s.Posters.CacheDirectory) == "" {
		s.Posters.CacheDirectory = defaults.Posters.CacheDirectory
	}
	if len(s.Posters.AllowedHosts) == 0 {
		s.Posters.AllowedHosts = defaults.Posters.AllowedHosts
	}
	if s.Posters.CacheMaxAgeDays <= 0 {
		s.Posters.CacheMaxAgeDays = defaults.Posters.CacheMaxAgeDays
	}

	if strings.TrimSpace(s.App.Title) == "" {
		s.App.Title = defaults.App.Title
	}
	if s.App.MaxRating <= 0 {
		s.App.MaxRating = defaults.App.MaxRating
	}
	if s.App.SessionIdleMinutes <= 0 {
		s.App.SessionIdleMinutes = defaults.App.SessionIdleMinutes
	}

	if strings.TrimSpace(s.Log.File) == "" {
		s.Log.File = defaults.Log.File
	}
	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = defaults.Log.Level
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = defaults.Log.MaxSize
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = defaults.Log.MaxBackups
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = defaults.Log.MaxAge
	}
}

// ApplyEnv overrides settings from environment variables.
func ApplyEnv(s *Settings) {
	if key := strings.TrimSpace(os.Getenv("OMDB_API_KEY")); key != "" {
		s.OMDb.APIKey = key
	}
	if backend := strings.TrimSpace(os.Getenv("POPCORN_STORAGE_BACKEND")); backend != "" {
		s.Storage.Backend = StorageBackend(strings.ToLower(backend))
	}
	if addr := strings.TrimSpace(os.Getenv("POPCORN_REDIS_ADDR")); addr != "" {
		s.Storage.RedisAddr = addr
	}
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(s)
}

func (m *Manager) saveLocked(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
