// Package session persists the CLI's login token and working state between
// invocations in a small bbolt file.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketName = []byte("session")
	stateKey   = []byte("state")
)

var ErrNotLoggedIn = errors.New("not logged in, run `piu login` first")

// State is everything the CLI remembers. Token presence (unexpired) is the
// authenticated flag.
type State struct {
	Token           string    `json:"token"`
	ExpiresAt       time.Time `json:"expiresAt"`
	UserName        string    `json:"userName,omitempty"`
	OperationID     string    `json:"operationId,omitempty"`
	CollectionID    string    `json:"collectionId,omitempty"`
	CollectionTitle string    `json:"collectionTitle,omitempty"`
	ProductIDs      []string  `json:"productIds,omitempty"`
	Selected        []string  `json:"selected,omitempty"`
}

func (s *State) Authenticated(now time.Time) bool {
	return s.Token != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}

type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored state, or a zero State when nothing is stored.
func (s *Store) Load() (*State, error) {
	state := &State{}
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketName).Get(stateKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, state)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return state, nil
}

func (s *Store) Save(state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(stateKey, data)
	})
}

// Update loads, mutates and saves in one transaction.
func (s *Store) Update(fn func(*State) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		state := &State{}
		if data := b.Get(stateKey); data != nil {
			if err := json.Unmarshal(data, state); err != nil {
				return err
			}
		}
		if err := fn(state); err != nil {
			return err
		}
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return b.Put(stateKey, data)
	})
}

// Clear drops everything, including the token.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(stateKey)
	})
}
