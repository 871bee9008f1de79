package infrastructure

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yourusername/mediahub-go/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var bucketTasks = []byte("download_tasks")

// BoltTaskStore persists active download tasks in a bbolt file
type BoltTaskStore struct {
	db *bolt.DB
}

// NewBoltTaskStore opens the task state file at path
func NewBoltTaskStore(path string) (*BoltTaskStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTasks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltTaskStore{db: db}, nil
}

// Save replaces the stored task set
func (s *BoltTaskStore) Save(tasks []*domain.DownloadTask) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketTasks); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketTasks)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			data, err := json.Marshal(task)
			if err != nil {
				return fmt.Errorf("failed to encode task %s: %w", task.TaskID, err)
			}
			if err := b.Put([]byte(task.TaskID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns the stored tasks; undecodable entries are skipped
func (s *BoltTaskStore) Load() ([]*domain.DownloadTask, error) {
	var tasks []*domain.DownloadTask
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var task domain.DownloadTask
			if err := json.Unmarshal(v, &task); err != nil {
				return nil
			}
			tasks = append(tasks, &task)
			return nil
		})
	})
	return tasks, err
}

// Close closes the bolt file
func (s *BoltTaskStore) Close() error {
	return s.db.Close()
}
