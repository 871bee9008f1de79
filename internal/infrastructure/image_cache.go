package infrastructure

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	csmap "github.com/mhmtszr/concurrent-swiss-map"
	"go.uber.org/zap"
)

const maxImageBytes = 20 << 20

// ImageCache stores remote thumbnails on disk as <media_id>_<md5(url)><ext>
// and indexes them by URL hash.
type ImageCache struct {
	dir        string
	entries    *csmap.CsMap[string, string]
	httpClient *http.Client
	logger     *zap.Logger
}

// NewImageCache creates the cache directory and indexes files already in it
func NewImageCache(dir string, timeout time.Duration, logger *zap.Logger) (*ImageCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	c := &ImageCache{
		dir:        dir,
		entries:    csmap.Create[string, string](),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	c.index()
	return c, nil
}

func (c *ImageCache) index() {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		i := strings.LastIndex(stem, "_")
		if i < 0 || len(stem)-i-1 != md5.Size*2 {
			continue
		}
		c.entries.Store(stem[i+1:], filepath.Join(c.dir, f.Name()))
	}
}

func urlKey(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached file for url if it is still on disk
func (c *ImageCache) Lookup(url string) (string, bool) {
	if url == "" {
		return "", false
	}
	key := urlKey(url)
	path, ok := c.entries.Load(key)
	if !ok {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		c.entries.Delete(key)
		return "", false
	}
	return path, true
}

// Fetch downloads url unless it is already cached and returns the local path
func (c *ImageCache) Fetch(ctx context.Context, mediaID, url string) (string, error) {
	if path, ok := c.Lookup(url); ok {
		return path, nil
	}

	key := urlKey(url)
	base := filepath.Join(c.dir, fmt.Sprintf("%s_%s", SanitizeID(mediaID), key))
	path, err := downloadImage(ctx, c.httpClient, url, base)
	if err != nil {
		return "", err
	}
	c.entries.Store(key, path)
	c.logger.Debug("cached thumbnail", zap.String("media_id", mediaID), zap.String("path", path))
	return path, nil
}

// Len returns the number of indexed thumbnails
func (c *ImageCache) Len() int {
	return c.entries.Count()
}

// SanitizeID makes an identifier safe for use in a file name
func SanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
}

// downloadImage writes the image at url to base+ext and returns the full path
func downloadImage(ctx context.Context, client *http.Client, url, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch image: HTTP %d", resp.StatusCode)
	}

	path := base + imageExtension(resp.Header.Get("Content-Type"), url)
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(f, io.LimitReader(resp.Body, maxImageBytes))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// imageExtension picks the file extension from the content type, then the URL
func imageExtension(contentType, url string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return ".jpg"
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "webp"):
		return ".webp"
	}
	u := url
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch ext := strings.ToLower(filepath.Ext(u)); ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp":
		return ext
	}
	return ".jpg"
}
