package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/nurdwerks/jules-interface/internal/types"
)

var (
	bucketSessions   = []byte("sessions")
	bucketActivities = []byte("activities")
)

// Cache persists the last-known sessions and timelines so the UI has
// something to render before the first sync completes. It is a snapshot,
// not a second source of truth; the next resync overwrites it.
type Cache struct {
	db *bolt.DB
}

func OpenCache(path string) (*Cache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("cache db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketActivities)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Save replaces the snapshot with the store's current contents. Pending
// placeholders are skipped; they are meaningless across restarts.
func (c *Cache) Save(s *Store) error {
	if c == nil || c.db == nil || s == nil {
		return nil
	}
	sessions := s.Sessions()
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketSessions); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketActivities); err != nil {
			return err
		}
		sb, err := tx.CreateBucket(bucketSessions)
		if err != nil {
			return err
		}
		ab, err := tx.CreateBucket(bucketActivities)
		if err != nil {
			return err
		}
		for _, session := range sessions {
			if session.Pending {
				continue
			}
			data, err := json.Marshal(session)
			if err != nil {
				return err
			}
			if err := sb.Put([]byte(session.Name), data); err != nil {
				return err
			}
			timeline := s.Activities(session.Name)
			if len(timeline) == 0 {
				continue
			}
			data, err = json.Marshal(timeline)
			if err != nil {
				return err
			}
			if err := ab.Put([]byte(session.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load primes a store from the snapshot through the ordinary mutation
// entry points, so the same merge and dedup rules apply.
func (c *Cache) Load(s *Store) error {
	if c == nil || c.db == nil || s == nil {
		return nil
	}
	return c.db.View(func(tx *bolt.Tx) error {
		sb := tx.Bucket(bucketSessions)
		ab := tx.Bucket(bucketActivities)
		if sb == nil {
			return nil
		}
		return sb.ForEach(func(key, value []byte) error {
			var session types.Session
			if err := json.Unmarshal(value, &session); err != nil {
				return nil // skip a corrupt record, keep the rest
			}
			s.UpsertSession(&session)
			if ab == nil {
				return nil
			}
			raw := ab.Get(key)
			if len(raw) == 0 {
				return nil
			}
			var timeline []*types.Activity
			if err := json.Unmarshal(raw, &timeline); err != nil {
				return nil
			}
			for _, activity := range timeline {
				s.AppendActivity(session.Name, activity)
			}
			return nil
		})
	})
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
