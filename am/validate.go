package am

import (
	"net/url"

	"github.com/teranos/lineage/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.WithHint(
			errors.Newf("remote.base_url must be an http(s) URL, got %q", c.Remote.BaseURL),
			"set BERDL_BASE_URL or remote.base_url in am.toml")
	}
	if c.Remote.Database == "" {
		return errors.New("remote.database cannot be empty")
	}
	if c.Remote.TimeoutSeconds <= 0 {
		return errors.Newf("remote.timeout_seconds must be > 0, got %d", c.Remote.TimeoutSeconds)
	}
	if c.Remote.Retries <= 0 {
		return errors.Newf("remote.retries must be > 0, got %d", c.Remote.Retries)
	}
	// 0 = retry immediately
	if c.Remote.RetryDelaySeconds < 0 {
		return errors.Newf("remote.retry_delay_seconds must be >= 0, got %d", c.Remote.RetryDelaySeconds)
	}
	if c.Remote.PageSize <= 0 {
		return errors.Newf("remote.page_size must be > 0, got %d", c.Remote.PageSize)
	}
	// 0 = unlimited
	if c.Remote.MaxRequestsPerSec < 0 {
		return errors.Newf("remote.max_requests_per_second must be >= 0, got %f", c.Remote.MaxRequestsPerSec)
	}

	if !c.Cache.Disabled && c.Cache.Dir == "" {
		return errors.New("cache.dir cannot be empty unless cache.disabled is set")
	}
	// 0 = never expire
	if c.Cache.TTLSeconds < 0 {
		return errors.Newf("cache.ttl_seconds must be >= 0, got %d", c.Cache.TTLSeconds)
	}

	if c.Traversal.ArtifactHost == "" {
		return errors.New("traversal.artifact_host cannot be empty")
	}
	if c.Traversal.Parallelism <= 0 {
		return errors.Newf("traversal.parallelism must be > 0, got %d", c.Traversal.Parallelism)
	}
	// 0 = unbounded
	if c.Traversal.MaxDepth < 0 {
		return errors.Newf("traversal.max_depth must be >= 0, got %d", c.Traversal.MaxDepth)
	}

	if c.Mirror.Path == "" {
		return errors.New("mirror.path cannot be empty")
	}
	if c.Log.Verbosity < 0 {
		return errors.Newf("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}
	return nil
}
