package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	EnvConfigPath      = "UVGUARD_CONFIG"
	EnvUVBin           = "UVGUARD_UV_BIN"
	EnvGuardrailsBin   = "UVGUARD_GUARDRAILS_BIN"
	EnvCorePackage     = "UVGUARD_CORE_PACKAGE"
	EnvHubToken        = "GUARDRAILS_TOKEN"
	EnvVerifyRegistry  = "UVGUARD_VERIFY_REGISTRY"
	EnvMetricsTextfile = "UVGUARD_METRICS_TEXTFILE"
)

// Settings controls how uvguard reaches its external tools.
type Settings struct {
	UVBin           string `toml:"uv_bin"`
	GuardrailsBin   string `toml:"guardrails_bin"`
	CorePackage     string `toml:"core_package"`
	ManifestFile    string `toml:"manifest_file"`
	ValidatorsKey   string `toml:"validators_key"`
	HubIndexURL     string `toml:"hub_index_url"`
	DefaultIndexURL string `toml:"default_index_url"`
	HubToken        string `toml:"hub_token"`
	RCPath          string `toml:"rc_path"`
	VerifyRegistry  bool   `toml:"verify_registry"`
	RegistryTimeout string `toml:"registry_timeout"`
	MetricsTextfile string `toml:"metrics_textfile"`
}

func Default() Settings {
	rc := ""
	if home, err := os.UserHomeDir(); err == nil {
		rc = filepath.Join(home, ".guardrailsrc")
	}
	return Settings{
		UVBin:           "uv",
		GuardrailsBin:   "guardrails",
		CorePackage:     "guardrails-ai",
		ManifestFile:    "pyproject.toml",
		ValidatorsKey:   "guardrails",
		HubIndexURL:     "https://pypi.guardrailsai.com/simple",
		DefaultIndexURL: "https://pypi.org/simple",
		RCPath:          rc,
		RegistryTimeout: "10s",
	}
}

// DefaultPath is $UVGUARD_CONFIG or <user config dir>/uvguard/config.toml.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "uvguard", "config.toml")
}

// Load reads settings from path on top of the defaults and applies env
// overrides. A missing file is not an error.
func Load(path string) (Settings, error) {
	cfg := Default()
	if path != "" {
		if err := loadToml(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, err
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Settings{}, err
	}
	if err := Validate(cfg); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Settings) error {
	if v := strings.TrimSpace(os.Getenv(EnvUVBin)); v != "" {
		cfg.UVBin = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGuardrailsBin)); v != "" {
		cfg.GuardrailsBin = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCorePackage)); v != "" {
		cfg.CorePackage = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHubToken)); v != "" {
		cfg.HubToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMetricsTextfile)); v != "" {
		cfg.MetricsTextfile = v
	}
	if raw := strings.TrimSpace(os.Getenv(EnvVerifyRegistry)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config env %s: %w", EnvVerifyRegistry, err)
		}
		cfg.VerifyRegistry = v
	}
	return nil
}

func Validate(cfg Settings) error {
	if strings.TrimSpace(cfg.UVBin) == "" {
		return fmt.Errorf("config missing uv_bin")
	}
	if strings.TrimSpace(cfg.GuardrailsBin) == "" {
		return fmt.Errorf("config missing guardrails_bin")
	}
	if strings.TrimSpace(cfg.CorePackage) == "" {
		return fmt.Errorf("config missing core_package")
	}
	if strings.TrimSpace(cfg.ManifestFile) == "" {
		return fmt.Errorf("config missing manifest_file")
	}
	if strings.TrimSpace(cfg.ValidatorsKey) == "" {
		return fmt.Errorf("config missing validators_key")
	}
	if err := validateIndexURL("hub_index_url", cfg.HubIndexURL); err != nil {
		return err
	}
	if err := validateIndexURL("default_index_url", cfg.DefaultIndexURL); err != nil {
		return err
	}
	if _, err := cfg.Timeout(); err != nil {
		return err
	}
	return nil
}

// Timeout is the parsed registry_timeout; empty means no timeout.
func (s Settings) Timeout() (time.Duration, error) {
	raw := strings.TrimSpace(s.RegistryTimeout)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse registry_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("registry_timeout must not be negative")
	}
	return d, nil
}

func validateIndexURL(key, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("config %s invalid: %w", key, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("config %s must be an http(s) URL: %q", key, raw)
	}
	return nil
}
