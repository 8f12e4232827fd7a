// Package config is the CLI harness's configuration layer (C13): flag/env
// driven EngineConfig and Credentials, grounded on the claude-ops config
// package's flat viper-backed struct. Unlike that package's StateDir-rooted
// persistence, this one never reads or writes a credentials file of its
// own — the UI shell's persisted-state JSON and the watchdog's
// monitor-active flag are both out of scope per spec.md §1, and the core
// must never touch either.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/xkmonitor/core/internal/models"
)

// EngineConfig holds every runtime knob the CLI harness exposes: base URL,
// HTTP timeouts, the control surface's bind address and auth secret, the
// notifier's webhook key, the session's campus/batch codes, and tracing/
// metrics settings. BaseURL, ConnectTimeout, ReadTimeout and LogVerbose are
// loaded but not applied: the session client always uses session.BaseURL and
// tlsclient.DefaultOptions, and nothing reads LogVerbose.
type EngineConfig struct {
	BaseURL string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	ControlBindAddr  string
	ControlAuthToken string // empty disables bearer-token auth

	NotifierKey string

	// CampusCode/BatchCode seed the session's active-semester identifiers
	// before the first login completes; the portal's own login response
	// (session.LoginResult.CampusCode/BatchCode) overrides these once
	// available, but an operator who already knows their campus/batch code
	// can supply it up front rather than leaving every pre-login call with
	// an empty value.
	CampusCode string
	BatchCode  string

	OTLPEndpoint   string
	MetricsEnabled bool

	LogVerbose bool
}

// Load reads configuration from viper, which merges flag values, env vars,
// and defaults set up by the cobra command in cmd/xkmonitor.
func Load() EngineConfig {
	return EngineConfig{
		BaseURL:          viper.GetString("base_url"),
		ConnectTimeout:   viper.GetDuration("connect_timeout"),
		ReadTimeout:      viper.GetDuration("read_timeout"),
		ControlBindAddr:  viper.GetString("control_bind_addr"),
		ControlAuthToken: viper.GetString("control_auth_token"),
		NotifierKey:      viper.GetString("notifier_key"),
		CampusCode:       viper.GetString("campus_code"),
		BatchCode:        viper.GetString("batch_code"),
		OTLPEndpoint:     viper.GetString("otlp_endpoint"),
		MetricsEnabled:   viper.GetBool("metrics_enabled"),
		LogVerbose:       viper.GetBool("verbose"),
	}
}

// LoadCredentials reads the student's login credentials from the flag/env
// sources wired up by the cobra command; nothing is read from stdin. Credentials are never written to
// disk by the core (spec.md §1 Non-goals: local configuration file
// persistence belongs to the UI shell).
func LoadCredentials() models.Credentials {
	return models.Credentials{
		StudentID: viper.GetString("student_id"),
		Password:  viper.GetString("password"),
	}
}
