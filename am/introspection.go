package am

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/lineage/am.toml
	SourceUser        ConfigSource = "user"        // ~/.lineage/am.toml
	SourceProject     ConfigSource = "project"     // project am.toml
	SourceEnvironment ConfigSource = "environment" // BERDL_* and KB_AUTH_TOKEN
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // file path or environment variable name
}

// Sources maps dotted keys to the file that last set them.
type Sources map[string]SourceInfo

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key" yaml:"key"`
	Value      any          `json:"value" yaml:"value"`
	Source     ConfigSource `json:"source" yaml:"source"`
	SourcePath string       `json:"source_path,omitempty" yaml:"source_path,omitempty"`
}

// secretKeys are masked in introspection output.
var secretKeys = map[string]bool{
	"remote.auth_token": true,
}

// Introspect lists every effective setting in key order with its source.
// Secrets are masked.
func Introspect(v *viper.Viper, sources Sources) []SettingInfo {
	keys := v.AllKeys()
	sort.Strings(keys)

	settings := make([]SettingInfo, 0, len(keys))
	for _, key := range keys {
		info := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := sources[key]; ok {
			info = si
		}
		if name, ok := envOverride(key); ok {
			info = SourceInfo{Source: SourceEnvironment, Path: name}
		}

		value := v.Get(key)
		if secretKeys[key] {
			value = mask(v.GetString(key))
		}
		settings = append(settings, SettingInfo{
			Key:        key,
			Value:      value,
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
	return settings
}

// envOverride returns the environment variable that sets key, if any.
func envOverride(key string) (string, bool) {
	names := append([]string(nil), envBindings[key]...)
	names = append(names, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	for _, name := range names {
		if _, ok := os.LookupEnv(name); ok {
			return name, true
		}
	}
	return "", false
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
