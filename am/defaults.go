package am

import "github.com/spf13/viper"

// Default values. The artifact host spelling matches the one BERDL links use.
const (
	DefaultBaseURL           = "https://hub.berdl.kbase.us/apis/mcp"
	DefaultDatabase          = "enigma_coral"
	DefaultTimeoutSeconds    = 180
	DefaultRetries           = 5
	DefaultRetryDelaySeconds = 4
	DefaultPageSize          = 1000
	DefaultCacheDir          = "./.berdl_cache"
	DefaultArtifactHost      = "genomcs.lbl.gov"
	DefaultMirrorPath        = "lineage.db"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("remote.base_url", DefaultBaseURL)
	v.SetDefault("remote.database", DefaultDatabase)
	v.SetDefault("remote.auth_token", "")
	v.SetDefault("remote.timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("remote.retries", DefaultRetries)
	v.SetDefault("remote.retry_delay_seconds", DefaultRetryDelaySeconds)
	v.SetDefault("remote.page_size", DefaultPageSize)
	v.SetDefault("remote.max_requests_per_second", 0.0)
	v.SetDefault("remote.block_private_ip", false)

	v.SetDefault("cache.dir", DefaultCacheDir)
	v.SetDefault("cache.disabled", false)
	v.SetDefault("cache.ttl_seconds", 0)

	v.SetDefault("traversal.artifact_host", DefaultArtifactHost)
	v.SetDefault("traversal.parallelism", 1)
	v.SetDefault("traversal.max_depth", 0)

	v.SetDefault("mirror.path", DefaultMirrorPath)

	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.verbosity", 0)
}

// EnvPrefix prefixes every automatically bound environment variable, so
// remote.page_size reads BERDL_REMOTE_PAGE_SIZE.
const EnvPrefix = "BERDL"

// envBindings maps keys to the variable names the BERDL tools have always
// used. The first set variable wins.
var envBindings = map[string][]string{
	"remote.base_url":   {"BERDL_BASE_URL", "BERDL_REMOTE_BASE_URL"},
	"remote.database":   {"BERDL_DATABASE", "BERDL_REMOTE_DATABASE"},
	"remote.auth_token": {"KB_AUTH_TOKEN", "BERDL_REMOTE_AUTH_TOKEN"},
	"cache.dir":         {"BERDL_CACHE_DIR"},
	"cache.disabled":    {"BERDL_CACHE_DISABLE", "BERDL_CACHE_DISABLED"},
	"cache.ttl_seconds": {"BERDL_CACHE_TTL_SECONDS"},
	"log.debug":         {"BERDL_DEBUG", "BERDL_LOG_DEBUG"},
}

// BindEnvVars binds the legacy variable names.
func BindEnvVars(v *viper.Viper) {
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		_ = v.BindEnv(args...)
	}
}
