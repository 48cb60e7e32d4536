// Package cache stores remote images on disk under content-addressed names.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/storage"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const defaultExt = ".jpg"

var (
	// ErrNotImage is returned when the server declares a non-image content type.
	ErrNotImage = errors.New("response is not an image")

	// ErrDownload wraps transport failures and non-2xx responses from the image host.
	ErrDownload = errors.New("image download failed")
)

var knownExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

var contentTypeExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Config holds configuration for the content cache.
type Config struct {
	Dir       string
	Timeout   time.Duration
	UserAgent string
}

// FetchResult describes a cached file.
type FetchResult struct {
	ID         string
	LocalPath  string
	Width      int
	Height     int
	Downloaded bool // false when the file was already cached
}

// Cache downloads images into a directory keyed by the md5 of their URL.
type Cache struct {
	client *resty.Client
	dir    string
	mirror storage.ObjectStorage
	logger *logger.Logger

	mu       sync.Mutex
	inflight map[string]*idLock
}

// idLock is dropped from the inflight map once no fetch holds or waits on it.
type idLock struct {
	sync.Mutex
	refs int
}

// New creates a content cache. mirror may be nil.
func New(cfg *Config, mirror storage.ObjectStorage, log *logger.Logger) *Cache {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "wallfeed/1.0"
	}

	client := resty.New()
	client.SetHeader("User-Agent", ua)
	client.SetTimeout(timeout)

	if log == nil {
		log = logger.GetDefault()
	}

	return &Cache{
		client:   client,
		dir:      cfg.Dir,
		mirror:   mirror,
		logger:   log,
		inflight: make(map[string]*idLock),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) log(ctx context.Context) *logger.Logger {
	if logger.HasLogger(ctx) {
		return logger.FromContext(ctx)
	}
	return c.logger
}

// HashURL returns the cache id for a URL.
func HashURL(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// Fetch returns the cached file for rawURL, downloading it if it is not on disk yet.
func (c *Cache) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid image url %q", rawURL)
	}

	id := HashURL(rawURL)
	unlock := c.lock(id)
	defer unlock()

	ext := extFromURL(u)
	if p, ok := c.existing(id, ext); ok {
		w, h := decodeDimensions(p)
		return &FetchResult{ID: id, LocalPath: p, Width: w, Height: h}, nil
	}

	finalPath, contentType, err := c.download(ctx, rawURL, id, ext)
	if err != nil {
		return nil, err
	}

	w, h := decodeDimensions(finalPath)
	c.upload(ctx, finalPath, contentType)

	c.log(ctx).WithFields(logger.Fields{
		"id":   id,
		"path": finalPath,
	}).Debug("Image cached")

	return &FetchResult{ID: id, LocalPath: finalPath, Width: w, Height: h, Downloaded: true}, nil
}

// lock serializes fetches of the same id.
func (c *Cache) lock(id string) func() {
	c.mu.Lock()
	l, ok := c.inflight[id]
	if !ok {
		l = &idLock{}
		c.inflight[id] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.inflight, id)
		}
		c.mu.Unlock()
	}
}

// existing finds a cached file. With an unknown extension any "<id>.*" matches.
func (c *Cache) existing(id, ext string) (string, bool) {
	if ext != "" {
		p := filepath.Join(c.dir, id+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
		return "", false
	}

	matches, err := filepath.Glob(filepath.Join(c.dir, id+".*"))
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			return m, true
		}
	}
	return "", false
}

func (c *Cache) download(ctx context.Context, rawURL, id, ext string) (string, string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrDownload, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", "", fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	mediaType := ""
	if contentType != "" {
		mediaType, _, err = mime.ParseMediaType(contentType)
		if err != nil || !strings.HasPrefix(mediaType, "image/") {
			return "", "", fmt.Errorf("%w: content type %q", ErrNotImage, contentType)
		}
	}

	if ext == "" {
		ext = contentTypeExts[mediaType]
	}
	if ext == "" {
		ext = defaultExt
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	finalPath := filepath.Join(c.dir, id+ext)
	if err := writeAtomic(finalPath, body); err != nil {
		return "", "", err
	}

	if mediaType == "" {
		mediaType = mime.TypeByExtension(ext)
	}
	return finalPath, mediaType, nil
}

// writeAtomic streams r to a temp file in the target directory and renames it into place.
func writeAtomic(target string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move image into cache: %w", err)
	}
	return nil
}

func (c *Cache) upload(ctx context.Context, localPath, contentType string) {
	if c.mirror == nil {
		return
	}

	key := c.mirror.Key(filepath.Base(localPath))
	if exists, err := c.mirror.Exists(ctx, key); err == nil && exists {
		c.log(ctx).WithField("key", key).Debug("Cached file already mirrored")
		return
	}

	f, err := os.Open(localPath)
	if err != nil {
		c.log(ctx).WithError(err).Warn("Failed to open cached file for mirroring")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.log(ctx).WithError(err).Warn("Failed to stat cached file for mirroring")
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := c.mirror.Upload(ctx, key, f, info.Size(), contentType); err != nil {
		c.log(ctx).WithError(err).WithField("key", key).Warn("Failed to mirror cached file")
	}
}

// RemovePaths deletes cached files. Every path is attempted; missing files
// are not errors. The returned slice holds one entry per failure.
func (c *Cache) RemovePaths(ctx context.Context, paths []string) []error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.log(ctx).WithError(err).WithField("path", p).Warn("Failed to remove cached file")
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", p, err))
			continue
		}

		if c.mirror != nil {
			key := c.mirror.Key(filepath.Base(p))
			if err := c.mirror.Delete(ctx, key); err != nil {
				c.log(ctx).WithError(err).WithField("key", key).Warn("Failed to delete mirrored file")
			}
		}
	}
	return errs
}

// extFromURL returns the lower-cased path extension when it is a known image type.
func extFromURL(u *url.URL) string {
	ext := strings.ToLower(path.Ext(u.Path))
	if knownExts[ext] {
		return ext
	}
	return ""
}

func decodeDimensions(p string) (int, int) {
	f, err := os.Open(p)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
