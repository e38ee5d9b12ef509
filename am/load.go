package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/lineage/errors"
)

// Paths lists the config files merged over the defaults, lowest precedence
// first. Empty entries and missing files are skipped.
type Paths struct {
	System  string
	User    string
	Project string
}

// DefaultPaths returns /etc/lineage/am.toml, ~/.lineage/am.toml and the
// nearest am.toml found walking up from the working directory.
func DefaultPaths() Paths {
	p := Paths{System: filepath.Join("/etc", "lineage", ConfigFileName)}
	if home, err := os.UserHomeDir(); err == nil {
		p.User = filepath.Join(home, ".lineage", ConfigFileName)
	}
	if wd, err := os.Getwd(); err == nil {
		p.Project = findProjectConfig(wd)
	}
	return p
}

var (
	globalMu     sync.Mutex
	globalConfig *Config
	globalViper  *viper.Viper
	globalSource Sources
)

// Load reads the configuration from DefaultPaths, caching the result for
// the life of the process.
func Load() (*Config, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalConfig != nil {
		return globalConfig, nil
	}

	v, sources, err := NewViper(DefaultPaths())
	if err != nil {
		return nil, err
	}
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	globalConfig, globalViper, globalSource = cfg, v, sources
	return cfg, nil
}

// GetViper returns the viper instance behind Load, loading it if needed.
func GetViper() (*viper.Viper, Sources, error) {
	if _, err := Load(); err != nil {
		return nil, nil, err
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalViper, globalSource, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig, globalViper, globalSource = nil, nil, nil
}

// LoadWithViper decodes the configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads defaults plus one file, ignoring the environment.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to read config file %s", configPath),
			"check the file is valid TOML")
	}
	return LoadWithViper(v)
}

// NewViper builds a viper instance with defaults, the files in paths and
// the BERDL environment, and reports where each file-provided key came from.
// Environment variables take precedence over every file.
func NewViper(paths Paths) (*viper.Viper, Sources, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvVars(v)
	SetDefaults(v)

	sources := make(Sources)
	layers := []struct {
		path   string
		source ConfigSource
	}{
		{paths.System, SourceSystem},
		{paths.User, SourceUser},
		{paths.Project, SourceProject},
	}
	for _, layer := range layers {
		if layer.path == "" {
			continue
		}
		if _, err := os.Stat(layer.path); err != nil {
			continue
		}
		file := viper.New()
		file.SetConfigFile(layer.path)
		file.SetConfigType("toml")
		if err := file.ReadInConfig(); err != nil {
			return nil, nil, errors.WithHintf(
				errors.Wrapf(err, "failed to read %s config %s", layer.source, layer.path),
				"fix or remove %s", layer.path)
		}
		if err := v.MergeConfigMap(file.AllSettings()); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to merge %s", layer.path)
		}
		for _, key := range file.AllKeys() {
			sources[key] = SourceInfo{Source: layer.source, Path: layer.path}
		}
	}
	return v, sources, nil
}

// findProjectConfig walks up from dir looking for am.toml. Returns "" when
// none is found before the filesystem root.
func findProjectConfig(dir string) string {
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
