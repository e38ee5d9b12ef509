// Package am loads the lineage configuration ("am" as in "I am configured
// like this"). Values come from built-in defaults, TOML files and BERDL_*
// environment variables, merged by viper.
package am

import "time"

// Config is the complete lineage configuration.
type Config struct {
	Remote    RemoteConfig    `mapstructure:"remote" json:"remote" toml:"remote"`
	Cache     CacheConfig     `mapstructure:"cache" json:"cache" toml:"cache"`
	Traversal TraversalConfig `mapstructure:"traversal" json:"traversal" toml:"traversal"`
	Mirror    MirrorConfig    `mapstructure:"mirror" json:"mirror" toml:"mirror"`
	Log       LogConfig       `mapstructure:"log" json:"log" toml:"log"`
}

// RemoteConfig configures the BERDL table service client.
type RemoteConfig struct {
	BaseURL           string  `mapstructure:"base_url" json:"base_url" toml:"base_url"`
	Database          string  `mapstructure:"database" json:"database" toml:"database"`
	AuthToken         string  `mapstructure:"auth_token" json:"auth_token,omitempty" toml:"auth_token,omitempty"` // KB_AUTH_TOKEN, sent as a bearer token
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" json:"timeout_seconds" toml:"timeout_seconds"`
	Retries           int     `mapstructure:"retries" json:"retries" toml:"retries"` // total attempts per request
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" json:"retry_delay_seconds" toml:"retry_delay_seconds"`
	PageSize          int     `mapstructure:"page_size" json:"page_size" toml:"page_size"`
	MaxRequestsPerSec float64 `mapstructure:"max_requests_per_second" json:"max_requests_per_second" toml:"max_requests_per_second"` // 0 = unlimited
	BlockPrivateIP    bool    `mapstructure:"block_private_ip" json:"block_private_ip" toml:"block_private_ip"`
}

// Timeout returns the per-request timeout.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// RetryDelay returns the wait between attempts.
func (r RemoteConfig) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelaySeconds) * time.Second
}

// CacheConfig configures the on-disk response cache.
type CacheConfig struct {
	Dir        string `mapstructure:"dir" json:"dir" toml:"dir"`
	Disabled   bool   `mapstructure:"disabled" json:"disabled" toml:"disabled"`
	TTLSeconds int    `mapstructure:"ttl_seconds" json:"ttl_seconds" toml:"ttl_seconds"` // 0 = never expire
}

// TTL returns the entry lifetime. Zero means entries never expire.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// TraversalConfig configures graph walks.
type TraversalConfig struct {
	ArtifactHost string `mapstructure:"artifact_host" json:"artifact_host" toml:"artifact_host"` // host FASTQ links must point at
	Parallelism  int    `mapstructure:"parallelism" json:"parallelism" toml:"parallelism"`
	MaxDepth     int    `mapstructure:"max_depth" json:"max_depth" toml:"max_depth"` // 0 = unbounded
}

// MirrorConfig configures the offline SQLite mirror.
type MirrorConfig struct {
	Path string `mapstructure:"path" json:"path" toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	JSON      bool `mapstructure:"json" json:"json" toml:"json"`
	Debug     bool `mapstructure:"debug" json:"debug" toml:"debug"`
	Verbosity int  `mapstructure:"verbosity" json:"verbosity" toml:"verbosity"`
}

// EffectiveVerbosity folds Debug into Verbosity.
func (l LogConfig) EffectiveVerbosity() int {
	if l.Debug && l.Verbosity < 2 {
		return 2
	}
	return l.Verbosity
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// ConfigFileName is the file name searched for at every config location.
const ConfigFileName = "am.toml"
