package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Database  DatabaseSettings  `json:"database"`
	Metadata  MetadataSettings  `json:"metadata"`
	Plans     PlanSettings      `json:"plans"`
	Scheduler SchedulerSettings `json:"scheduler"`
	RateLimit RateLimitSettings `json:"rateLimit"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	Language   string `json:"language"`
	TTLHours   int    `json:"ttlHours"`
}

// PlanSettings tunes trial and invite windows.
type PlanSettings struct {
	TrialDays      int `json:"trialDays"`
	InviteTTLHours int `json:"inviteTtlHours"`
}

// SchedulerSettings controls the background maintenance loop.
type SchedulerSettings struct {
	CheckIntervalSeconds      int `json:"checkIntervalSeconds"`
	TrialExpiryIntervalHours  int `json:"trialExpiryIntervalHours"`
	InviteExpiryIntervalHours int `json:"inviteExpiryIntervalHours"`
}

// RateLimitSettings bounds per-user write traffic.
type RateLimitSettings struct {
	RequestsPerMinute int `json:"requestsPerMinute"`
	Burst             int `json:"burst"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 7878},
		Database: DatabaseSettings{Path: "data/vistream.db"},
		Metadata: MetadataSettings{TMDBAPIKey: "", Language: "en-US", TTLHours: 24},
		Plans:    PlanSettings{TrialDays: 30, InviteTTLHours: 72},
		Scheduler: SchedulerSettings{
			CheckIntervalSeconds:      60,
			TrialExpiryIntervalHours:  1,
			InviteExpiryIntervalHours: 1,
		},
		RateLimit: RateLimitSettings{RequestsPerMinute: 120, Burst: 30},
		Log: LogConfig{
			File:       "data/logs/backend.log",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	// Backfill defaults for settings introduced after the config was written.
	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = "0.0.0.0"
	}
	if s.Server.Port == 0 {
		s.Server.Port = 7878
	}
	if strings.TrimSpace(s.Database.Path) == "" {
		s.Database.Path = "data/vistream.db"
	}
	if strings.TrimSpace(s.Metadata.Language) == "" {
		s.Metadata.Language = "en-US"
	}
	if s.Metadata.TTLHours == 0 {
		s.Metadata.TTLHours = 24
	}
	if s.Plans.TrialDays == 0 {
		s.Plans.TrialDays = 30
	}
	if s.Plans.InviteTTLHours == 0 {
		s.Plans.InviteTTLHours = 72
	}
	if s.Scheduler.CheckIntervalSeconds == 0 {
		s.Scheduler.CheckIntervalSeconds = 60
	}
	if s.Scheduler.TrialExpiryIntervalHours == 0 {
		s.Scheduler.TrialExpiryIntervalHours = 1
	}
	if s.Scheduler.InviteExpiryIntervalHours == 0 {
		s.Scheduler.InviteExpiryIntervalHours = 1
	}
	if s.RateLimit.RequestsPerMinute == 0 {
		s.RateLimit.RequestsPerMinute = 120
	}
	if s.RateLimit.Burst == 0 {
		s.RateLimit.Burst = 30
	}
	if strings.TrimSpace(s.Log.File) == "" {
		s.Log.File = "data/logs/backend.log"
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = 50
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = 3
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = 7
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
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
