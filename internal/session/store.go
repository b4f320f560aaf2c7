package session

import (
	"errors"
	"sync"
	"time"

	"github.com/voxrelay/voxrelay-backend/internal/models"
)

var (
	// ErrDuplicateSession is returned when creating a session whose id already exists.
	ErrDuplicateSession = errors.New("session already exists")
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidTransition is returned for backwards or repeated status transitions.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the session table shared across calls. Implementations must make
// AppendTurn and MarkStatus atomic per session id so a snapshot read after
// call end sees a complete, correctly ordered transcript. The in-memory
// implementation below is the reference; a shared external store can be
// substituted without touching the relay.
type Store interface {
	Create(id, recipientEmail, persona, voice string) (*models.CallSession, error)
	Get(id string) (*models.CallSession, error)
	SetCallSID(id, callSID string) error
	AppendTurn(id string, role models.Role, text string) error
	MarkStatus(id string, status models.Status) error
	Evict(id string)
}

// entry wraps a session with its own lock so concurrent calls never contend
// on each other's transcript writes.
type entry struct {
	mu      sync.Mutex
	session models.CallSession
}

// MemoryStore keeps all session state in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
	}
}

// Create registers a new session in PENDING state.
func (s *MemoryStore) Create(id, recipientEmail, persona, voice string) (*models.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return nil, ErrDuplicateSession
	}

	e := &entry{
		session: models.CallSession{
			ID:             id,
			RecipientEmail: recipientEmail,
			Persona:        persona,
			Voice:          voice,
			Status:         models.StatusPending,
			CreatedAt:      time.Now().UTC(),
		},
	}
	s.entries[id] = e

	snap := e.session
	return &snap, nil
}

// Get returns a snapshot copy of the session. Mutating the result does not
// affect stored state.
func (s *MemoryStore) Get(id string) (*models.CallSession, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.session
	snap.Transcript = make([]models.Turn, len(e.session.Transcript))
	copy(snap.Transcript, e.session.Transcript)
	return &snap, nil
}

// SetCallSID attaches the telephony provider's call identifier to the session.
func (s *MemoryStore) SetCallSID(id, callSID string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.CallSID = callSID
	return nil
}

// AppendTurn appends one transcript turn. Calls for the same session are
// serialized; ordering is the caller's arrival order under the session lock.
func (s *MemoryStore) AppendTurn(id string, role models.Role, text string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Transcript = append(e.session.Transcript, models.Turn{Role: role, Text: text})
	return nil
}

// MarkStatus advances the session status. Backward transitions and any
// transition out of a terminal status are rejected.
func (s *MemoryStore) MarkStatus(id string, status models.Status) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !models.CanTransition(e.session.Status, status) {
		return ErrInvalidTransition
	}
	e.session.Status = status
	return nil
}

// Evict removes the session. Evicting an absent id is a no-op.
func (s *MemoryStore) Evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

func (s *MemoryStore) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
