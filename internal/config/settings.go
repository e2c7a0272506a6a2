// Package config loads process settings for sitemon from defaults and
// SITEMON_* environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
)

// EnvPrefix is the prefix for environment overrides, e.g. SITEMON_HOSTS_FILE.
const EnvPrefix = "SITEMON_"

// Settings is the process configuration. The user's blocklist and duration
// are not here; they live in the text config file at ConfigFile.
type Settings struct {
	// HostsFile is the hosts file to edit.
	HostsFile string `koanf:"hosts_file" validate:"required"`

	// DataDir holds the config file, history database, registry and socket.
	DataDir string `koanf:"data_dir" validate:"required"`

	// ConfigFile defaults to <data_dir>/config.txt.
	ConfigFile string `koanf:"config_file"`

	// Socket is the control API unix socket, default <data_dir>/sitemon.sock.
	Socket string `koanf:"socket"`

	// RedirectIP is the address blocked domains resolve to.
	RedirectIP string `koanf:"redirect_ip" validate:"required,ip"`

	// MatchMode is "hostname" or "substring".
	MatchMode string `koanf:"match_mode" validate:"required,oneof=hostname substring"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// LogFile defaults to <data_dir>/sitemon.log.
	LogFile string `koanf:"log_file"`

	// Notify enables the desktop notification on expiry.
	Notify bool `koanf:"notify"`
}

// envLoader loads SITEMON_* variables with the prefix stripped and keys
// lower-cased. Tests replace it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil)
}

// Defaults returns settings for the current execution mode before overrides.
func Defaults() Settings {
	mode := infra.DetectExecMode()
	return Settings{
		HostsFile:  mode.HostsFile,
		DataDir:    mode.DataDir,
		RedirectIP: infra.DefaultRedirectIP,
		MatchMode:  "hostname",
		LogLevel:   "info",
		Notify:     true,
	}
}

// Load builds Settings from defaults and the environment, fills derived
// paths and validates the result.
func Load() (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("error unmarshalling settings: %w", err)
	}
	s.fillDerived()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &s, nil
}

func (s *Settings) fillDerived() {
	if s.ConfigFile == "" {
		s.ConfigFile = filepath.Join(s.DataDir, "config.txt")
	}
	if s.Socket == "" {
		s.Socket = filepath.Join(s.DataDir, "sitemon.sock")
	}
	if s.LogFile == "" {
		s.LogFile = filepath.Join(s.DataDir, "sitemon.log")
	}
}

// ErrorLogFile is where error-level logs go, next to LogFile.
func (s *Settings) ErrorLogFile() string {
	ext := filepath.Ext(s.LogFile)
	return strings.TrimSuffix(s.LogFile, ext) + ".error" + ext
}
