// Package config resolves detection settings from a YAML file,
// COPYCATCH_* environment variables, and CLI flags, in that precedence
// order. Every resolved value remembers where it came from so the CLI
// can explain effective settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stargraph/copycatch/internal/copycatch"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Detection defaults match the parameters used for real stargazer sweeps:
// a 180-day window, clusters of at least 20 actors over 4 repos at half
// density, and a 2x iteration-cap multiplier.
const (
	DefaultDeltaDays = 180
	DefaultMinActors = 20
	DefaultMinRepos  = 4
	DefaultRho       = 0.5
	DefaultBeta      = 2.0
	DefaultJobs      = 1
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries CLI flag values into resolution. Empty strings
// mean "not set on the command line".
type ResolveOptions struct {
	ConfigPath   string
	CLIDBPath    string
	CLIDeltaDays string
	CLIMinActors string
	CLIMinRepos  string
	CLIRho       string
	CLIBeta      string
	CLIJobs      string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath    ResolvedValue `json:"db_path"`
	LogLevel  ResolvedValue `json:"log_level"`
	LogFormat ResolvedValue `json:"log_format"`

	DeltaDays ResolvedValue `json:"delta_days"`
	MinActors ResolvedValue `json:"min_actors"`
	MinRepos  ResolvedValue `json:"min_repos"`
	Rho       ResolvedValue `json:"rho"`
	Beta      ResolvedValue `json:"beta"`
	Jobs      ResolvedValue `json:"jobs"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	Log    struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Detect struct {
		DeltaDays string `yaml:"delta_days"`
		MinActors string `yaml:"min_actors"`
		MinRepos  string `yaml:"min_repos"`
		Rho       string `yaml:"rho"`
		Beta      string `yaml:"beta"`
		Jobs      string `yaml:"jobs"`
	} `yaml:"detect"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".copycatch", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
		apply(&out.LogFormat, cfg.Log.Format, SourceConfig, path)
		apply(&out.DeltaDays, cfg.Detect.DeltaDays, SourceConfig, path)
		apply(&out.MinActors, cfg.Detect.MinActors, SourceConfig, path)
		apply(&out.MinRepos, cfg.Detect.MinRepos, SourceConfig, path)
		apply(&out.Rho, cfg.Detect.Rho, SourceConfig, path)
		apply(&out.Beta, cfg.Detect.Beta, SourceConfig, path)
		apply(&out.Jobs, cfg.Detect.Jobs, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "COPYCATCH_DB")
	applyEnv(&out.LogLevel, "COPYCATCH_LOG_LEVEL")
	applyEnv(&out.LogFormat, "COPYCATCH_LOG_FORMAT")
	applyEnv(&out.DeltaDays, "COPYCATCH_DELTA_DAYS")
	applyEnv(&out.MinActors, "COPYCATCH_MIN_ACTORS")
	applyEnv(&out.MinRepos, "COPYCATCH_MIN_REPOS")
	applyEnv(&out.Rho, "COPYCATCH_RHO")
	applyEnv(&out.Beta, "COPYCATCH_BETA")
	applyEnv(&out.Jobs, "COPYCATCH_JOBS")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.DeltaDays, opts.CLIDeltaDays, SourceCLI, "--delta-days")
	apply(&out.MinActors, opts.CLIMinActors, SourceCLI, "--n")
	apply(&out.MinRepos, opts.CLIMinRepos, SourceCLI, "--m")
	apply(&out.Rho, opts.CLIRho, SourceCLI, "--rho")
	apply(&out.Beta, opts.CLIBeta, SourceCLI, "--beta")
	apply(&out.Jobs, opts.CLIJobs, SourceCLI, "--jobs")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// DetectionParams converts the resolved values into engine parameters,
// filling unset values with defaults and validating the result.
func (r ResolvedConfig) DetectionParams() (copycatch.Params, error) {
	deltaDays, err := intValue(r.DeltaDays, "delta_days", DefaultDeltaDays)
	if err != nil {
		return copycatch.Params{}, err
	}
	n, err := intValue(r.MinActors, "min_actors", DefaultMinActors)
	if err != nil {
		return copycatch.Params{}, err
	}
	m, err := intValue(r.MinRepos, "min_repos", DefaultMinRepos)
	if err != nil {
		return copycatch.Params{}, err
	}
	rho, err := floatValue(r.Rho, "rho", DefaultRho)
	if err != nil {
		return copycatch.Params{}, err
	}
	beta, err := floatValue(r.Beta, "beta", DefaultBeta)
	if err != nil {
		return copycatch.Params{}, err
	}
	jobs, err := intValue(r.Jobs, "jobs", DefaultJobs)
	if err != nil {
		return copycatch.Params{}, err
	}

	p := copycatch.Params{
		DeltaT: int64(deltaDays) * 24 * 60 * 60,
		N:      n,
		M:      m,
		Rho:    rho,
		Beta:   beta,
		Jobs:   jobs,
	}
	if err := p.Validate(); err != nil {
		return copycatch.Params{}, err
	}
	return p, nil
}

func intValue(v ResolvedValue, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(v.Value)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q (from %s)", name, raw, describeSource(v))
	}
	return n, nil
}

func floatValue(v ResolvedValue, name string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(v.Value)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q (from %s)", name, raw, describeSource(v))
	}
	return f, nil
}

func describeSource(v ResolvedValue) string {
	if v.From != "" {
		return v.From
	}
	return string(v.Source)
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
