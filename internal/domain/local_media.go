package domain

import (
	"encoding/json"
	"time"
)

// LocalMedia is a row of the durable local library index
type LocalMedia struct {
	ID              uint      `json:"-" gorm:"primaryKey"`
	FilePath        string    `json:"file_path" gorm:"uniqueIndex;not null"`
	Title           string    `json:"title" gorm:"not null;index"`
	Kind            MediaKind `json:"media_type" gorm:"not null"`
	FileSize        int64     `json:"file_size"`
	DurationSeconds int       `json:"duration,omitempty"`
	Year            int       `json:"year,omitempty"`
	Resolution      string    `json:"resolution,omitempty"`
	Codec           string    `json:"codec,omitempty"`
	FileHash        string    `json:"file_hash,omitempty" gorm:"index"`
	PosterPath      string    `json:"poster_path,omitempty"`
	LastModified    time.Time `json:"last_modified"`
	Metadata        string    `json:"metadata,omitempty" gorm:"type:text"` // JSON metadata
	FileValidated   bool      `json:"file_validated" gorm:"default:false"`
	ValidatedAt     time.Time `json:"validation_timestamp"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName pins the table name
func (LocalMedia) TableName() string {
	return "local_media"
}

// MetadataMap decodes the JSON metadata column; malformed content yields an empty map
func (m *LocalMedia) MetadataMap() map[string]interface{} {
	out := map[string]interface{}{}
	if m.Metadata == "" {
		return out
	}
	_ = json.Unmarshal([]byte(m.Metadata), &out)
	return out
}

// SetMetadata encodes md into the metadata column
func (m *LocalMedia) SetMetadata(md map[string]interface{}) error {
	if len(md) == 0 {
		m.Metadata = ""
		return nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return err
	}
	m.Metadata = string(b)
	return nil
}

// CatalogID is the stable identifier of the file in the unified catalog
func (m *LocalMedia) CatalogID() string {
	key := m.FileHash
	if len(key) > 16 {
		key = key[:16]
	}
	if key == "" {
		key = m.FilePath
	}
	return "local_" + key
}

// ToCatalogItem converts the row into a local-only catalog entry
func (m *LocalMedia) ToCatalogItem() *CatalogItem {
	md := m.MetadataMap()
	md["file_size"] = m.FileSize
	if m.Resolution != "" {
		md["resolution"] = m.Resolution
	}
	if m.Codec != "" {
		md["codec"] = m.Codec
	}
	return &CatalogItem{
		ID:                  m.CatalogID(),
		Title:               m.Title,
		Kind:                m.Kind,
		Availability:        AvailabilityLocalOnly,
		Year:                m.Year,
		DurationSeconds:     m.DurationSeconds,
		CachedThumbnailPath: m.PosterPath,
		LocalPath:           m.FilePath,
		Metadata:            md,
		FileValidated:       m.FileValidated,
		ValidationTimestamp: m.ValidatedAt,
	}
}
