// Package memory is a process-local implementation of the user and session
// repositories, used when no database is configured and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/dmitrijs2005/estately/internal/server/models"
	"github.com/google/uuid"
)

// Store holds users and sessions behind one mutex. It satisfies both
// users.Repository and sessions.Store.
type Store struct {
	mu       sync.Mutex
	users    map[string]*models.User
	byEmail  map[string]string
	sessions map[string]models.Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*models.User),
		byEmail:  make(map[string]string),
		sessions: make(map[string]models.Session),
		now:      time.Now,
	}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		c.PasswordHash = &h
	}
	return &c
}

func (s *Store) Create(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user.EmailVerified = false

	s.users[user.ID] = cloneUser(user)
	s.byEmail[user.Email] = user.ID
	return user, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) UpdateRole(_ context.Context, id string, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now().UTC()
	return nil
}

// Delete removes a user and its session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		delete(s.byEmail, u.Email)
		delete(s.users, id)
	}
	delete(s.sessions, id)
}

func (s *Store) Get(_ context.Context, userID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &sess, nil
}

func (s *Store) Save(_ context.Context, userID, digest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return common.ErrorNotFound
	}
	s.sessions[userID] = models.Session{UserID: userID, TokenDigest: digest, ExpiresAt: expiresAt}
	return nil
}

func (s *Store) Rotate(_ context.Context, userID, oldDigest, newDigest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[userID]
	if !ok || cur.TokenDigest != oldDigest {
		return common.ErrorConflict
	}
	s.sessions[userID] = models.Session{UserID: userID, TokenDigest: newDigest, ExpiresAt: expiresAt}
	return nil
}

func (s *Store) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}
