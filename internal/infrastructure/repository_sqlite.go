package infrastructure

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourusername/mediahub-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// sqliteMaxParams keeps IN clauses under SQLite's bound parameter limit
const sqliteMaxParams = 500

// SQLiteCatalogStore implements CatalogStore using SQLite
type SQLiteCatalogStore struct {
	db *gorm.DB
}

// NewSQLiteCatalogStore opens (and migrates) the local library database
func NewSQLiteCatalogStore(dbPath string) (*SQLiteCatalogStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+"?_journal_mode=WAL&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.LocalMedia{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteCatalogStore{db: db}, nil
}

// Upsert inserts rows or updates them on file path conflict
func (r *SQLiteCatalogStore) Upsert(items []*domain.LocalMedia) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "file_path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "kind", "file_size", "duration_seconds", "year", "resolution", "codec",
			"file_hash", "poster_path", "last_modified", "metadata", "file_validated",
			"validated_at", "updated_at",
		}),
	}).CreateInBatches(items, 100).Error
}

// DeleteByPaths removes rows for paths in batches
func (r *SQLiteCatalogStore) DeleteByPaths(paths []string) (int64, error) {
	var removed int64
	for start := 0; start < len(paths); start += sqliteMaxParams {
		end := start + sqliteMaxParams
		if end > len(paths) {
			end = len(paths)
		}
		res := r.db.Where("file_path IN ?", paths[start:end]).Delete(&domain.LocalMedia{})
		if res.Error != nil {
			return removed, res.Error
		}
		removed += res.RowsAffected
	}
	return removed, nil
}

// List returns every row ordered by title
func (r *SQLiteCatalogStore) List() ([]*domain.LocalMedia, error) {
	var items []*domain.LocalMedia
	err := r.db.Order("title ASC").Find(&items).Error
	return items, err
}

// ListUnder returns rows stored below dir
func (r *SQLiteCatalogStore) ListUnder(dir string) ([]*domain.LocalMedia, error) {
	prefix := strings.TrimRight(filepath.Clean(dir), string(filepath.Separator)) + string(filepath.Separator)
	var items []*domain.LocalMedia
	err := r.db.Where("file_path LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Order("title ASC").
		Find(&items).Error
	return items, err
}

// FindByPath returns the row for path or nil when not found
func (r *SQLiteCatalogStore) FindByPath(path string) (*domain.LocalMedia, error) {
	var item domain.LocalMedia
	err := r.db.Where("file_path = ?", path).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// UpdateValidation stores the outcome of a disk check
func (r *SQLiteCatalogStore) UpdateValidation(path string, validated bool, at time.Time) error {
	return r.db.Model(&domain.LocalMedia{}).
		Where("file_path = ?", path).
		Updates(map[string]interface{}{
			"file_validated": validated,
			"validated_at":   at,
		}).Error
}

// Count returns the number of rows
func (r *SQLiteCatalogStore) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.LocalMedia{}).Count(&count).Error
	return count, err
}

// Close closes the database connection
func (r *SQLiteCatalogStore) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
