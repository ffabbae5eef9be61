package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/portwatch/internal/detector"
	"github.com/loykin/portwatch/internal/env"
	"github.com/loykin/portwatch/internal/logger"
	"github.com/loykin/portwatch/internal/monitor"
	"github.com/loykin/portwatch/internal/policy"
	"github.com/loykin/portwatch/internal/process"
)

// EnvPrefix prefixes environment overrides, e.g. PORTWATCH_MAX_RESTARTS.
const EnvPrefix = "PORTWATCH"

// Probe methods accepted in [[targets]].probe.
const (
	ProbeListen  = "listen"
	ProbeDial    = "dial"
	ProbeCommand = "command"
)

var ErrNoTargets = errors.New("no targets configured")

// Config represents the whole configuration file.
type Config struct {
	CheckInterval      time.Duration `toml:"check_interval" mapstructure:"check_interval"`
	RestartSettleDelay time.Duration `toml:"restart_settle_delay" mapstructure:"restart_settle_delay"`
	MaxRestarts        int           `toml:"max_restarts" mapstructure:"max_restarts"`
	RestartWindow      time.Duration `toml:"restart_window" mapstructure:"restart_window"`
	ProbeTimeout       time.Duration `toml:"probe_timeout" mapstructure:"probe_timeout"`
	ProbeConcurrency   int           `toml:"probe_concurrency" mapstructure:"probe_concurrency"`
	LaunchTimeout      time.Duration `toml:"launch_timeout" mapstructure:"launch_timeout"`
	LaunchGrace        time.Duration `toml:"launch_grace" mapstructure:"launch_grace"`

	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool     `toml:"use_os_env" mapstructure:"use_os_env"`

	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Daemon  DaemonConfig  `toml:"daemon" mapstructure:"daemon"`
	History []string      `toml:"history" mapstructure:"history"`

	Targets []TargetConfig `toml:"targets" mapstructure:"targets"`

	// directory of the loaded file; relative paths resolve against it
	baseDir string
}

// LogConfig configures the monitor's own log and the default output
// directory for launched commands.
type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	NoColor    bool   `toml:"no_color" mapstructure:"no_color"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
	TargetDir  string `toml:"target_dir" mapstructure:"target_dir"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// ServerConfig enables the status API when Listen is set.
type ServerConfig struct {
	Listen        string     `toml:"listen" mapstructure:"listen"`
	BasePath      string     `toml:"base_path" mapstructure:"base_path"`
	TLS           *TLSConfig `toml:"tls" mapstructure:"tls"`
	TLSMinVersion string     `toml:"tls_min_version" mapstructure:"tls_min_version"`
	TLSMaxVersion string     `toml:"tls_max_version" mapstructure:"tls_max_version"`
}

type TLSConfig struct {
	Enabled      bool        `toml:"enabled" mapstructure:"enabled"`
	CertFile     string      `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile      string      `toml:"key_file" mapstructure:"key_file"`
	Dir          string      `toml:"dir" mapstructure:"dir"`
	AutoGenerate bool        `toml:"auto_generate" mapstructure:"auto_generate"`
	AutoGen      *AutoGenTLS `toml:"auto_gen" mapstructure:"auto_gen"`
}

type AutoGenTLS struct {
	CommonName   string   `toml:"common_name" mapstructure:"common_name"`
	Organization string   `toml:"organization" mapstructure:"organization"`
	DNSNames     []string `toml:"dns_names" mapstructure:"dns_names"`
	IPAddresses  []string `toml:"ip_addresses" mapstructure:"ip_addresses"`
	ValidDays    int      `toml:"valid_days" mapstructure:"valid_days"`
}

type DaemonConfig struct {
	PidFile string `toml:"pidfile" mapstructure:"pidfile"`
	LogFile string `toml:"logfile" mapstructure:"logfile"`
}

// TargetConfig is one [[targets]] entry.
type TargetConfig struct {
	Port          int              `toml:"port" mapstructure:"port"`
	Name          string           `toml:"name" mapstructure:"name"`
	Command       string           `toml:"command" mapstructure:"command"`
	WorkDir       string           `toml:"workdir" mapstructure:"workdir"`
	Env           []string         `toml:"env" mapstructure:"env"`
	Host          string           `toml:"host" mapstructure:"host"`
	Probe         string           `toml:"probe" mapstructure:"probe"`
	HealthCommand string           `toml:"health_command" mapstructure:"health_command"`
	Log           *TargetLogConfig `toml:"log" mapstructure:"log"`
}

type TargetLogConfig struct {
	Dir    string `toml:"dir" mapstructure:"dir"`
	Stdout string `toml:"stdout" mapstructure:"stdout"`
	Stderr string `toml:"stderr" mapstructure:"stderr"`
}

// ID is the target's unique key.
func (t TargetConfig) ID() string { return strconv.Itoa(t.Port) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("check_interval", 120*time.Second)
	v.SetDefault("restart_settle_delay", 20*time.Second)
	v.SetDefault("max_restarts", 3)
	v.SetDefault("restart_window", 10*time.Minute)
	v.SetDefault("probe_timeout", 5*time.Second)
	v.SetDefault("probe_concurrency", 1)
	v.SetDefault("launch_timeout", 10*time.Second)
	v.SetDefault("launch_grace", time.Duration(0))
	v.SetDefault("use_os_env", true)
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("history", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.no_color", false)
	v.SetDefault("log.file", logger.DefaultFile)
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("server.listen", "")
	v.SetDefault("server.base_path", "/api")
}

// Load reads the file at path, applies defaults and PORTWATCH_* overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if !supportedExt(filepath.Ext(path)) {
		v.SetConfigType("toml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.baseDir = abs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func supportedExt(ext string) bool {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "toml", "yaml", "yml", "json":
		return true
	}
	return false
}

// Validate checks loop parameters and targets.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxRestarts <= 0 {
		errs = append(errs, fmt.Errorf("max_restarts must be positive, got %d", c.MaxRestarts))
	}
	if c.RestartWindow <= 0 {
		errs = append(errs, fmt.Errorf("restart_window must be positive, got %s", c.RestartWindow))
	}
	if c.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("check_interval must be positive, got %s", c.CheckInterval))
	}
	if c.RestartSettleDelay < 0 || c.ProbeTimeout < 0 || c.LaunchTimeout < 0 || c.LaunchGrace < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.ProbeConcurrency < 0 {
		errs = append(errs, fmt.Errorf("probe_concurrency must not be negative, got %d", c.ProbeConcurrency))
	}
	if len(c.Targets) == 0 {
		errs = append(errs, ErrNoTargets)
	}
	seen := make(map[int]bool, len(c.Targets))
	for i, t := range c.Targets {
		if err := t.validate(); err != nil {
			errs = append(errs, fmt.Errorf("targets[%d]: %w", i, err))
			continue
		}
		if seen[t.Port] {
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate port %d", i, t.Port))
		}
		seen[t.Port] = true
	}
	return errors.Join(errs...)
}

func (t TargetConfig) validate() error {
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("port %d out of range 1..65535", t.Port)
	}
	if strings.TrimSpace(t.Command) == "" {
		return fmt.Errorf("target %d requires command", t.Port)
	}
	switch strings.ToLower(t.Probe) {
	case "", ProbeListen:
		// the socket table reports numeric addresses only
		if t.Host != "" && net.ParseIP(t.Host) == nil {
			return fmt.Errorf("target %d: listen host %q must be an IP address", t.Port, t.Host)
		}
	case ProbeDial:
	case ProbeCommand:
		if strings.TrimSpace(t.HealthCommand) == "" {
			return fmt.Errorf("target %d: probe %q requires health_command", t.Port, ProbeCommand)
		}
	default:
		return fmt.Errorf("target %d: unknown probe %q", t.Port, t.Probe)
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

// Policy builds the shared restart policy.
func (c *Config) Policy() (*policy.Policy, error) {
	return policy.New(c.MaxRestarts, c.RestartWindow)
}

// Settings returns the loop timings.
func (c *Config) Settings() monitor.Settings {
	return monitor.Settings{
		CheckInterval:    c.CheckInterval,
		SettleDelay:      c.RestartSettleDelay,
		ProbeTimeout:     c.ProbeTimeout,
		ProbeConcurrency: c.ProbeConcurrency,
	}
}

// Logger returns the monitor log configuration.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		NoColor:    c.Log.NoColor,
		File:       c.resolve(c.Log.File),
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// Environment composes the global environment for start commands.
func (c *Config) Environment() (*env.Env, error) {
	files := make([]string, 0, len(c.EnvFiles))
	for _, f := range c.EnvFiles {
		files = append(files, c.resolve(f))
	}
	return env.Load(c.UseOSEnv, files, c.Env)
}

// Launcher returns a launcher that starts commands with environment e.
func (c *Config) Launcher(e *env.Env) *process.Launcher {
	l := &process.Launcher{Grace: c.LaunchGrace, Timeout: c.LaunchTimeout}
	if e != nil {
		l.Env = e.Merge
	}
	return l
}

// BuildTargets turns [[targets]] into monitor targets in file order.
func (c *Config) BuildTargets() ([]monitor.Target, error) {
	if len(c.Targets) == 0 {
		return nil, ErrNoTargets
	}
	defaults := logger.FileConfig{Dir: c.resolve(c.Log.TargetDir)}
	out := make([]monitor.Target, 0, len(c.Targets))
	for _, tc := range c.Targets {
		if err := tc.validate(); err != nil {
			return nil, err
		}
		logCfg := defaults
		if tc.Log != nil {
			logCfg = logCfg.Merge(logger.FileConfig{
				Dir:        c.resolve(tc.Log.Dir),
				StdoutPath: c.resolve(tc.Log.Stdout),
				StderrPath: c.resolve(tc.Log.Stderr),
			})
		}
		name := tc.Name
		if name == "" {
			name = "port-" + tc.ID()
		}
		out = append(out, monitor.Target{
			ID:       tc.ID(),
			Name:     tc.Name,
			Port:     tc.Port,
			Detector: c.detectorFor(tc),
			Spec: process.Spec{
				Name:    name,
				Command: tc.Command,
				WorkDir: c.resolve(tc.WorkDir),
				Env:     tc.Env,
				Log:     logCfg,
			},
		})
	}
	return out, nil
}

func (c *Config) detectorFor(tc TargetConfig) detector.Detector {
	switch strings.ToLower(tc.Probe) {
	case ProbeDial:
		return detector.DialDetector{Host: tc.Host, Port: tc.Port, Timeout: c.ProbeTimeout}
	case ProbeCommand:
		return detector.CommandDetector{Command: tc.HealthCommand}
	default:
		return detector.ListenDetector{Port: tc.Port, Host: tc.Host}
	}
}
