package auth

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var clientsBucket = []byte("clients")

// StoredClient represents a paired client stored on disk
type StoredClient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"tokenHash"` // SHA-256 hash of token
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists paired clients in a bbolt database
type Store struct {
	db *bbolt.DB
}

// NewStore opens (or creates) the client database at path
func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open auth database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(clientsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create clients bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// AddClient adds a new client to the store
func (s *Store) AddClient(clientID, name, token string) error {
	client := StoredClient{
		ID:        clientID,
		Name:      name,
		TokenHash: HashToken(token),
		CreatedAt: time.Now(),
	}

	value, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("error serializing client: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(clientsBucket).Put([]byte(clientID), value)
	})
}

// RemoveClient removes a client from the store
func (s *Store) RemoveClient(clientID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(clientsBucket)
		if b.Get([]byte(clientID)) == nil {
			return ErrClientNotFound
		}
		return b.Delete([]byte(clientID))
	})
}

// ValidateToken checks if a token is valid
func (s *Store) ValidateToken(token string) bool {
	_, err := s.GetClientByToken(token)
	return err == nil
}

// GetClientByToken returns the client associated with a token
func (s *Store) GetClientByToken(token string) (*StoredClient, error) {
	tokenHash := HashToken(token)

	var found *StoredClient
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(clientsBucket).ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var client StoredClient
			if err := json.Unmarshal(v, &client); err != nil {
				return fmt.Errorf("error deserializing client %s: %w", k, err)
			}
			if client.TokenHash == tokenHash {
				found = &client
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrClientNotFound
	}
	return found, nil
}

// ListClients returns all registered clients, oldest first
func (s *Store) ListClients() ([]ClientInfo, error) {
	var clients []ClientInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(clientsBucket).ForEach(func(k, v []byte) error {
			var client StoredClient
			if err := json.Unmarshal(v, &client); err != nil {
				return fmt.Errorf("error deserializing client %s: %w", k, err)
			}
			clients = append(clients, ClientInfo{
				ID:        client.ID,
				Name:      client.Name,
				CreatedAt: client.CreatedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].CreatedAt.Before(clients[j].CreatedAt)
	})
	return clients, nil
}
