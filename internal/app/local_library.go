package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/media"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

const hashChunkSize = 64 * 1024

// ScanResult reports what a directory scan changed
type ScanResult struct {
	Scanned   int           `json:"scanned"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Removed   int64         `json:"removed"`
	Errors    []string      `json:"errors,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// LocalLibrary indexes media files found under the configured directories
type LocalLibrary struct {
	store       domain.CatalogStore
	probe       domain.FileProbe
	dirs        []string
	logger      *zap.Logger
	multiLogger *logger.MultiLogger
	now         func() time.Time
	mu          sync.Mutex
}

// NewLocalLibrary creates a new local library
func NewLocalLibrary(
	store domain.CatalogStore,
	probe domain.FileProbe,
	dirs []string,
	logger *zap.Logger,
	multiLogger *logger.MultiLogger,
) *LocalLibrary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalLibrary{
		store:       store,
		probe:       probe,
		dirs:        dirs,
		logger:      logger,
		multiLogger: multiLogger,
		now:         time.Now,
	}
}

// Directories returns the configured library roots
func (l *LocalLibrary) Directories() []string {
	return append([]string(nil), l.dirs...)
}

// ScanDirectories rescans every configured directory
func (l *LocalLibrary) ScanDirectories(ctx context.Context) (*ScanResult, error) {
	return l.RescanDirectories(ctx, l.dirs)
}

// RescanDirectories indexes new or changed files under dirs and drops rows
// for files that disappeared from them.
func (l *LocalLibrary) RescanDirectories(ctx context.Context, dirs []string) (*ScanResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	result := &ScanResult{}

	seenDirs := map[string]bool{}
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if dir == "" || seenDirs[dir] {
			continue
		}
		seenDirs[dir] = true

		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := l.scanDirectory(ctx, dir, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", dir, err))
			l.logger.Warn("Directory scan failed", zap.String("dir", dir), zap.Error(err))
		}
	}

	result.Elapsed = time.Since(start)
	l.logger.Info("Library scan completed",
		zap.Int("directories", len(seenDirs)),
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated),
		zap.Int64("removed", result.Removed),
		zap.Duration("elapsed", result.Elapsed))

	if l.multiLogger != nil {
		l.multiLogger.LogCatalogEvent("library_scan_completed",
			zap.Strings("directories", dirs),
			zap.Int("scanned", result.Scanned),
			zap.Int("updated", result.Updated),
			zap.Int("unchanged", result.Unchanged),
			zap.Int64("removed", result.Removed),
			zap.Int("errors", len(result.Errors)))
	}
	return result, nil
}

func (l *LocalLibrary) scanDirectory(ctx context.Context, dir string, result *ScanResult) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Debug("Library directory does not exist", zap.String("dir", dir))
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}

	existing, err := l.store.ListUnder(dir)
	if err != nil {
		return fmt.Errorf("failed to list indexed files: %w", err)
	}
	known := make(map[string]*domain.LocalMedia, len(existing))
	for _, row := range existing {
		known[row.FilePath] = row
	}

	seen := map[string]bool{}
	var batch []*domain.LocalMedia

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !media.IsSupportedMediaFile(path) {
			return nil
		}

		seen[path] = true
		result.Scanned++

		fi, err := d.Info()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			return nil
		}
		if prev := known[path]; prev != nil && prev.FileSize == fi.Size() && prev.LastModified.Equal(fi.ModTime()) {
			result.Unchanged++
			return nil
		}

		row, err := l.buildRow(ctx, path, fi)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			return nil
		}
		batch = append(batch, row)
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	if len(batch) > 0 {
		if err := l.store.Upsert(batch); err != nil {
			return fmt.Errorf("failed to store scanned files: %w", err)
		}
		result.Updated += len(batch)
	}

	var gone []string
	for path := range known {
		if !seen[path] {
			gone = append(gone, path)
		}
	}
	if len(gone) > 0 {
		n, err := l.store.DeleteByPaths(gone)
		if err != nil {
			return fmt.Errorf("failed to remove vanished files: %w", err)
		}
		result.Removed += n
	}
	return nil
}

// AddFile indexes a single file, returning the stored row
func (l *LocalLibrary) AddFile(ctx context.Context, path string) (*domain.LocalMedia, error) {
	if !media.IsSupportedMediaFile(path) {
		return nil, fmt.Errorf("unsupported media file: %s", path)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}

	row, err := l.buildRow(ctx, path, fi)
	if err != nil {
		return nil, err
	}
	if err := l.store.Upsert([]*domain.LocalMedia{row}); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	l.logger.Info("Indexed media file", zap.String("path", path), zap.String("title", row.Title))
	return row, nil
}

// RemoveFile drops the row for path
func (l *LocalLibrary) RemoveFile(path string) (bool, error) {
	n, err := l.store.DeleteByPaths([]string{path})
	if err != nil {
		return false, fmt.Errorf("failed to remove file: %w", err)
	}
	if n > 0 {
		l.logger.Info("Removed media file from library", zap.String("path", path))
	}
	return n > 0, nil
}

func (l *LocalLibrary) buildRow(ctx context.Context, path string, fi fs.FileInfo) (*domain.LocalMedia, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	hash, err := partialHash(path, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to hash file: %w", err)
	}

	now := l.now()
	row := &domain.LocalMedia{
		FilePath:      path,
		Title:         media.ExtractTitle(name),
		Kind:          media.DetectKind(path, name),
		FileSize:      fi.Size(),
		Year:          media.ExtractYear(name),
		FileHash:      hash,
		LastModified:  fi.ModTime(),
		FileValidated: true,
		ValidatedAt:   now,
	}

	md := map[string]interface{}{
		"original_filename": filepath.Base(path),
	}

	if info, err := l.probe.Metadata(ctx, path); err != nil {
		l.logger.Debug("Failed to probe media file", zap.String("path", path), zap.Error(err))
	} else if info != nil {
		row.DurationSeconds = info.DurationSeconds
		row.Resolution = info.Resolution()
		row.Codec = info.VideoCodec
		if info.AudioCodec != "" {
			md["audio_codec"] = info.AudioCodec
		}
		if info.FormatName != "" {
			md["format_name"] = info.FormatName
		}
		if info.BitRate != "" {
			md["bit_rate"] = info.BitRate
		}
	}

	if row.Kind == domain.KindEpisode {
		ep := media.ParseEpisodePath(path)
		if ep.Show != "" {
			md["series_name"] = ep.Show
		}
		md["season_number"] = ep.Season
		md["episode_number"] = ep.Episode
	}

	for _, candidate := range media.PosterCandidates(path) {
		if ok, _ := l.probe.Exists(candidate); ok {
			row.PosterPath = candidate
			break
		}
	}

	if err := row.SetMetadata(md); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return row, nil
}

// partialHash hashes the first and last 64 KiB of a file together with its size
func partialHash(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyN(h, f, hashChunkSize); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if size > 2*hashChunkSize {
		if _, err := f.Seek(-hashChunkSize, io.SeekEnd); err != nil {
			return "", err
		}
		if _, err := io.CopyN(h, f, hashChunkSize); err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
	}
	fmt.Fprintf(h, "%d", size)
	return hex.EncodeToString(h.Sum(nil)), nil
}
