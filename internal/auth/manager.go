// Package auth handles client pairing and token validation.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	tokenBytes      = 32 // 256-bit tokens
	maxAuthFailures = 5
	lockoutDuration = 60 * time.Second
)

// ErrClientNotFound is returned when no stored client matches
var ErrClientNotFound = errors.New("client not found")

// ClientInfo contains information about a registered client
type ClientInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manager handles client authentication
type Manager struct {
	store    *Store
	testMode bool

	// Notify announces a pairing outside test mode
	Notify func(clientName string) error

	mu           sync.Mutex
	authFailures map[string]int       // peer -> failure count
	lockouts     map[string]time.Time // peer -> lockout end time
}

// NewManager creates a new auth manager
func NewManager(store *Store, testMode bool) *Manager {
	return &Manager{
		store:        store,
		testMode:     testMode,
		Notify:       ShowPairingNotification,
		authFailures: make(map[string]int),
		lockouts:     make(map[string]time.Time),
	}
}

// Pair registers a new client and returns its token and id.
// Outside test mode the user is notified and the pairing is reported as requiring approval.
func (m *Manager) Pair(clientName string) (token, clientID string, requiresApproval bool, err error) {
	clientID = uuid.NewString()

	token, err = generateToken()
	if err != nil {
		return "", "", false, fmt.Errorf("failed to generate token: %w", err)
	}

	if !m.testMode && m.Notify != nil {
		if err := m.Notify(clientName); err != nil {
			log.Printf("[AUTH] Failed to show pairing notification: %v", err)
		}
	}

	if err := m.store.AddClient(clientID, clientName, token); err != nil {
		return "", "", false, fmt.Errorf("failed to store client: %w", err)
	}

	return token, clientID, !m.testMode, nil
}

// ValidateToken checks if a token is valid
func (m *Manager) ValidateToken(token string) bool {
	if token == "" {
		return false
	}
	return m.store.ValidateToken(token)
}

// RecordAuthFailure records an authentication failure for a peer
func (m *Manager) RecordAuthFailure(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.authFailures[peer]++

	if m.authFailures[peer] >= maxAuthFailures {
		log.Printf("[AUTH] Locking out %q for %v", peer, lockoutDuration)
		m.lockouts[peer] = time.Now().Add(lockoutDuration)
		m.authFailures[peer] = 0
	}
}

// IsLockedOut checks if a peer is locked out
func (m *Manager) IsLockedOut(peer string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	lockoutEnd, exists := m.lockouts[peer]
	if !exists {
		return false
	}

	if time.Now().After(lockoutEnd) {
		delete(m.lockouts, peer)
		return false
	}

	return true
}

// RevokeClient revokes a client's access
func (m *Manager) RevokeClient(clientID string) error {
	return m.store.RemoveClient(clientID)
}

// ListClients returns all registered clients
func (m *Manager) ListClients() ([]ClientInfo, error) {
	return m.store.ListClients()
}

func generateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashToken creates a SHA-256 hash of a token for storage
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
