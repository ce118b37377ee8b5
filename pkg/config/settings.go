package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bootkit/bootkit/pkg/telemetry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BOOTKIT_"

var validate = validator.New()

// Settings are the tool settings of bootkit. They configure how bootkit runs,
// never what it installs; desired state lives in the manifest.
type Settings struct {
	// Manifest is the manifest used when --manifest is not given.
	Manifest string `yaml:"manifest,omitempty"`

	// PackageManager overrides the manifest's primary package manager.
	PackageManager string `yaml:"package_manager,omitempty" validate:"omitempty,oneof=scoop winget apt pacman dnf auto"`

	// OSRelease is the os-release file read when the package manager is "auto".
	OSRelease string `yaml:"os_release,omitempty"`

	// EnvFile is where persisted environment variables are written.
	EnvFile string `yaml:"env_file,omitempty"`

	// Sudo prefixes system package manager installs with sudo.
	Sudo bool `yaml:"sudo"`

	// PowerShell is the shell used for PowerShell modules.
	PowerShell string `yaml:"powershell,omitempty"`

	Journal JournalSettings `yaml:"journal"`
	Policy  PolicySettings  `yaml:"policy"`
	Logging LoggingSettings `yaml:"logging"`
	Tracing TracingSettings `yaml:"tracing"`
	Metrics MetricsSettings `yaml:"metrics"`
}

// JournalSettings configure the run history database.
type JournalSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty" validate:"required_if=Enabled true"`

	// Keep is how many runs are retained; 0 keeps everything.
	Keep int `yaml:"keep" validate:"gte=0"`
}

// PolicySettings configure the install policy gate.
type PolicySettings struct {
	// Paths are .rego files or directories loaded next to the builtin policies.
	Paths []string `yaml:"paths,omitempty"`

	// DeniedPackages are package names no install may target.
	DeniedPackages []string `yaml:"denied_packages,omitempty"`

	// AllowHTTP permits plain http source and dotfile URLs.
	AllowHTTP bool `yaml:"allow_http"`

	// Disabled lists builtin or loaded policies to switch off.
	Disabled []string `yaml:"disabled,omitempty"`
}

// LoggingSettings configure structured logging.
type LoggingSettings struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	Output string `yaml:"output,omitempty"`
}

// TracingSettings configure span export.
type TracingSettings struct {
	Enabled      bool              `yaml:"enabled"`
	Exporter     string            `yaml:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string            `yaml:"endpoint,omitempty" validate:"required_if=Exporter otlp"`
	Output       string            `yaml:"output,omitempty"`
	SamplingRate float64           `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	Insecure     bool              `yaml:"insecure"`
	Headers      map[string]string `yaml:"headers,omitempty"`
}

// MetricsSettings configure the metrics textfile.
type MetricsSettings struct {
	Enabled      bool   `yaml:"enabled"`
	TextfilePath string `yaml:"textfile,omitempty"`
}

// Default returns the baseline settings.
func Default() Settings {
	return Settings{
		OSRelease: "/etc/os-release",
		Journal: JournalSettings{
			Enabled: true,
			Path:    filepath.Join(StateDir(), "journal.db"),
			Keep:    100,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingSettings{
			Exporter:     "none",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Metrics: MetricsSettings{
			Enabled: true,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/bootkit/config.yaml, falling back to
// the platform's user configuration directory.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bootkit", "config.yaml")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "bootkit", "config.yaml")
	}
	return filepath.Join(".bootkit", "config.yaml")
}

// StateDir returns the directory bootkit keeps its run history in.
func StateDir() string {
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "bootkit")
		}
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "bootkit")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "bootkit")
	}
	return ".bootkit"
}

// Load reads settings from path, applies environment overrides and
// validates the result. A missing file yields the defaults unless
// required is set.
func Load(path string, required bool) (Settings, error) {
	cfg := Default()

	contents, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(contents, &cfg); err != nil {
			return Settings{}, fmt.Errorf("unmarshal settings %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BOOTKIT_* variables. LOG_LEVEL is honoured
// as well, below BOOTKIT_LOG_LEVEL.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	if v, ok := lookup("LOG_LEVEL"); ok {
		s.Logging.Level = strings.ToLower(v)
	}

	str("MANIFEST", &s.Manifest)
	str("PACKAGE_MANAGER", &s.PackageManager)
	str("OS_RELEASE", &s.OSRelease)
	str("ENV_FILE", &s.EnvFile)
	str("JOURNAL", &s.Journal.Path)
	str("LOG_LEVEL", &s.Logging.Level)
	str("LOG_FORMAT", &s.Logging.Format)
	str("OTLP_ENDPOINT", &s.Tracing.Endpoint)
	str("METRICS_TEXTFILE", &s.Metrics.TextfilePath)

	if v, ok := lookup(EnvPrefix + "DENIED_PACKAGES"); ok {
		s.Policy.DeniedPackages = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "POLICY_PATHS"); ok {
		s.Policy.Paths = filepath.SplitList(v)
	}
	if v, ok := lookup(EnvPrefix + "HISTORY_KEEP"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sHISTORY_KEEP: %w", EnvPrefix, err)
		}
		s.Journal.Keep = n
	}

	for name, dst := range map[string]*bool{
		"SUDO":       &s.Sudo,
		"ALLOW_HTTP": &s.Policy.AllowHTTP,
		"JOURNAL_ON": &s.Journal.Enabled,
		"TRACING":    &s.Tracing.Enabled,
		"METRICS":    &s.Metrics.Enabled,
	} {
		if err := boolean(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks field constraints.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Telemetry converts the settings into a telemetry configuration.
func (s *Settings) Telemetry(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Logging = telemetry.LoggingConfig{
		Level:  s.Logging.Level,
		Format: s.Logging.Format,
		Output: s.Logging.Output,
	}
	cfg.Tracing.Enabled = s.Tracing.Enabled
	cfg.Tracing.Exporter = s.Tracing.Exporter
	cfg.Tracing.Endpoint = s.Tracing.Endpoint
	cfg.Tracing.Output = s.Tracing.Output
	cfg.Tracing.SamplingRate = s.Tracing.SamplingRate
	cfg.Tracing.Insecure = s.Tracing.Insecure
	cfg.Tracing.ExportTimeout = 10 * time.Second
	if len(s.Tracing.Headers) > 0 {
		cfg.Tracing.Headers = s.Tracing.Headers
	}
	cfg.Metrics.Enabled = s.Metrics.Enabled
	cfg.Metrics.TextfilePath = s.Metrics.TextfilePath
	return cfg
}

// Marshal returns the YAML encoding of the settings.
func (s Settings) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return buf, nil
}

func splitList(v string) []string {
	var out []string
	for _, f := range strings.Split(v, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
