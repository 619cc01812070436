package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	DefaultConfigFilename = ".dltctl.yaml"
	DefaultProfileName    = "default"
	EnvPrefix             = "DLTCTL_"

	DefaultPollInterval          = 5 * time.Second
	DefaultMaxPollsWithoutEvents = 60
	DefaultRunPollInterval       = 5 * time.Second
	DefaultRunMaxAttempts        = 60
)

// File is the CLI configuration: named profiles plus top-level values that
// override whichever profile is selected.
//
//	default_profile: dev
//	profiles:
//	  dev:
//	    host: https://example.cloud.databricks.com
//	    token: dapi...
//	    workspace_path: /Users/me@example.com/dltctl_artifacts
//	    poll_interval: 5s
type File struct {
	Profile        `koanf:",squash"`
	DefaultProfile string             `koanf:"default_profile"`
	Profiles       map[string]Profile `koanf:"profiles"`
}

type Profile struct {
	Host                  string        `koanf:"host"`
	Token                 string        `koanf:"token"`
	WorkspacePath         string        `koanf:"workspace_path"`
	PollInterval          time.Duration `koanf:"poll_interval"`
	MaxPollsWithoutEvents int           `koanf:"max_polls_without_events"`
	RunPollInterval       time.Duration `koanf:"run_poll_interval"`
	RunMaxAttempts        int           `koanf:"run_max_attempts"`
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigFilename
	}
	return filepath.Join(home, DefaultConfigFilename)
}

// Load reads the YAML file at path, then the environment:
// DATABRICKS_HOST and DATABRICKS_TOKEN first, DLTCTL_* on top of them.
// DLTCTL_ variables use "__" as the nesting separator, so
// DLTCTL_PROFILES__DEV__TOKEN sets profiles.dev.token.
func Load(path string) (*File, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return load(k)
}

// LoadOptional is Load that treats a missing file as empty; the environment
// still applies.
func LoadOptional(path string) (*File, error) {
	if path != "" {
		_, err := os.Stat(path)
		if err == nil {
			return Load(path)
		}
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "stat config")
		}
	}
	return load(koanf.New("."))
}

func load(k *koanf.Koanf) (*File, error) {
	if err := k.Load(env.Provider("DATABRICKS_", ".", func(s string) string {
		switch s {
		case "DATABRICKS_HOST":
			return "host"
		case "DATABRICKS_TOKEN":
			return "token"
		default:
			return ""
		}
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load DATABRICKS_ environment")
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load DLTCTL_ environment")
	}

	var cfg File
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &cfg, nil
}

// ProfileNames lists the configured profiles, sorted.
func (f *File) ProfileNames() []string {
	out := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve picks the profile called name, falling back to default_profile and
// then "default". Asking for a profile by name that does not exist is an
// error; an absent implicit profile is not. Top-level values override the
// profile and defaults fill whatever is still unset.
func (f *File) Resolve(name string) (Profile, error) {
	explicit := name != ""
	if name == "" {
		name = f.DefaultProfile
		explicit = name != ""
	}
	if name == "" {
		name = DefaultProfileName
	}

	p, ok := f.Profiles[name]
	if !ok && explicit {
		return Profile{}, errors.Errorf("profile %q not found (have: %s)", name, strings.Join(f.ProfileNames(), ", "))
	}

	p = p.Merge(f.Profile)
	return p.WithDefaults(), nil
}

// Merge returns p with every non-zero field of o copied over it.
func (p Profile) Merge(o Profile) Profile {
	if o.Host != "" {
		p.Host = o.Host
	}
	if o.Token != "" {
		p.Token = o.Token
	}
	if o.WorkspacePath != "" {
		p.WorkspacePath = o.WorkspacePath
	}
	if o.PollInterval > 0 {
		p.PollInterval = o.PollInterval
	}
	if o.MaxPollsWithoutEvents > 0 {
		p.MaxPollsWithoutEvents = o.MaxPollsWithoutEvents
	}
	if o.RunPollInterval > 0 {
		p.RunPollInterval = o.RunPollInterval
	}
	if o.RunMaxAttempts > 0 {
		p.RunMaxAttempts = o.RunMaxAttempts
	}
	return p
}

func (p Profile) WithDefaults() Profile {
	d := Profile{
		PollInterval:          DefaultPollInterval,
		MaxPollsWithoutEvents: DefaultMaxPollsWithoutEvents,
		RunPollInterval:       DefaultRunPollInterval,
		RunMaxAttempts:        DefaultRunMaxAttempts,
	}
	return d.Merge(p)
}

// Validate checks what every control plane call needs.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Host) == "" {
		return errors.New("no host configured: set DATABRICKS_HOST, --host or host in the config profile")
	}
	if strings.TrimSpace(p.Token) == "" {
		return errors.New("no token configured: set DATABRICKS_TOKEN, --token or token in the config profile")
	}
	return nil
}
