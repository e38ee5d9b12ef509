package am

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/lineage/errors"
)

// backupCount is how many rotated backups WriteDefault keeps.
const backupCount = 3

// Default returns the configuration SetDefaults describes.
func Default() Config {
	return Config{
		Remote: RemoteConfig{
			BaseURL:           DefaultBaseURL,
			Database:          DefaultDatabase,
			TimeoutSeconds:    DefaultTimeoutSeconds,
			Retries:           DefaultRetries,
			RetryDelaySeconds: DefaultRetryDelaySeconds,
			PageSize:          DefaultPageSize,
		},
		Cache:     CacheConfig{Dir: DefaultCacheDir},
		Traversal: TraversalConfig{ArtifactHost: DefaultArtifactHost, Parallelism: 1},
		Mirror:    MirrorConfig{Path: DefaultMirrorPath},
	}
}

// Marshal renders cfg as TOML. The auth token is never written.
func Marshal(cfg Config) ([]byte, error) {
	cfg.Remote.AuthToken = ""
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return data, nil
}

// WriteDefault writes the default configuration to path, rotating any
// existing file into .back1 through .back3 first.
func WriteDefault(path string) error {
	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// createBackup rotates path.backN up by one and copies path to .back1.
func createBackup(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	oldest := backupName(path, backupCount)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete %s", oldest)
	}
	for n := backupCount - 1; n >= 1; n-- {
		from := backupName(path, n)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, backupName(path, n+1)); err != nil {
			return errors.Wrapf(err, "failed to rotate %s", from)
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(backupName(path, 1), content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}

func backupName(path string, n int) string {
	return path + ".back" + string(rune('0'+n))
}
