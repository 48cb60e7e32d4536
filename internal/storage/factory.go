package storage

import (
	"errors"
	"strings"
)

// ErrMirrorDisabled is returned by NewMirror when storage is not enabled.
var ErrMirrorDisabled = errors.New("object storage mirror disabled")

// NewMirror creates the cache mirror based on the configuration.
// Parameters:
//   - cfg: storage configuration including endpoint, credentials, bucket and prefix.
// Returns:
//   - ObjectStorage: initialized storage client implementation.
//   - error: ErrMirrorDisabled when cfg is nil or disabled, or a client construction error.
func NewMirror(cfg *S3Config) (ObjectStorage, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrMirrorDisabled
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required when the mirror is enabled")
	}

	// Auto-detect storage type if not specified
	if cfg.Type == "" {
		cfg.Type = detectStorageType(cfg.Endpoint)
	}

	return NewS3Storage(cfg)
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case endpoint == "" || strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
