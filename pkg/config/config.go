// Package config loads the watcher's sealed JSON configuration and the
// secrets required from the process environment, and holds the handful
// of fields the chat command handler is allowed to mutate at runtime.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// File is the on-disk shape of config.json.
type File struct {
	Containers                       []string          `json:"containers"`
	CheckIntervalSeconds             int               `json:"check_interval_seconds"`
	TailLines                        int               `json:"tail_lines"`
	GracePeriodSeconds               int               `json:"grace_period_seconds"`
	StagnationAlertEnabled           bool              `json:"stagnation_alert_enabled"`
	StagnationThresholdMinutes       int               `json:"stagnation_threshold_minutes"`
	ReputationCheckEnabled           bool              `json:"reputation_check_enabled"`
	ReputationAPIBaseURL             string            `json:"reputation_api_base_url"`
	ReputationCheckWindow            int               `json:"reputation_check_window"`
	ReputationFailureThreshold       int               `json:"reputation_failure_threshold"`
	ReputationRestartCooldownMinutes int               `json:"reputation_restart_cooldown_minutes"`
	NodeAddresses                    map[string]string `json:"node_addresses"`
	LogDir                           string            `json:"log_dir"`
	WatcherLogFile                   string            `json:"watcher_log_file"`
}

// Secrets are required from the environment, never from config.json.
type Secrets struct {
	TelegramBotToken string
	TelegramChatID   string
	RPCURL           string
}

// Store bundles the immutable file config and secrets with the two
// fields the command handler may mutate at runtime. All mutable access
// goes through Get/Set so the supervisor and command loops never race.
type Store struct {
	File    File
	Secrets Secrets

	mu                          sync.RWMutex
	stagnationAlertEnabled     bool
	stagnationThresholdMinutes int
}

// Load reads configPath, overlays the required secrets from the
// environment (optionally populated by an adjacent .env file), and
// returns a ready Store. Any failure here is fatal to the process:
// there is no sane partial configuration to run with.
func Load(configPath, envPath string) (*Store, error) {
	if envPath != "" {
		// Mirrors python-dotenv: a missing .env is not an error, only
		// a missing required variable is.
		_ = godotenv.Load(envPath)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	secrets, err := loadSecrets()
	if err != nil {
		return nil, err
	}

	if f.LogDir == "" {
		f.LogDir = "./logs"
	}
	if f.WatcherLogFile == "" {
		f.WatcherLogFile = "./watcher_events.log"
	}

	return &Store{
		File:                       f,
		Secrets:                    *secrets,
		stagnationAlertEnabled:     f.StagnationAlertEnabled,
		stagnationThresholdMinutes: f.StagnationThresholdMinutes,
	}, nil
}

func (f File) validate() error {
	if len(f.Containers) == 0 {
		return fmt.Errorf("containers must be a non-empty list")
	}
	if f.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check_interval_seconds must be positive")
	}
	if f.TailLines <= 0 {
		return fmt.Errorf("tail_lines must be positive")
	}
	if f.GracePeriodSeconds <= 0 {
		return fmt.Errorf("grace_period_seconds must be positive")
	}
	if f.ReputationCheckEnabled {
		if f.ReputationAPIBaseURL == "" {
			return fmt.Errorf("reputation_api_base_url required when reputation_check_enabled is true")
		}
		if f.ReputationCheckWindow <= 0 {
			return fmt.Errorf("reputation_check_window must be positive")
		}
		if f.ReputationFailureThreshold <= 0 {
			return fmt.Errorf("reputation_failure_threshold must be positive")
		}
	}
	return nil
}

func loadSecrets() (*Secrets, error) {
	var missing []string
	get := func(name string) string {
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}
		return v
	}

	s := &Secrets{
		TelegramBotToken: get("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   get("TELEGRAM_CHAT_ID"),
		RPCURL:           get("RPC_URL"),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}
	return s, nil
}

// StagnationAlertEnabled returns the current mutable value.
func (s *Store) StagnationAlertEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stagnationAlertEnabled
}

// StagnationThresholdMinutes returns the current mutable value.
func (s *Store) StagnationThresholdMinutes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stagnationThresholdMinutes
}

// SetStagnationAlertEnabled is called by the command handler.
func (s *Store) SetStagnationAlertEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stagnationAlertEnabled = v
}

// SetStagnationThresholdMinutes is called by the command handler.
func (s *Store) SetStagnationThresholdMinutes(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stagnationThresholdMinutes = v
}
