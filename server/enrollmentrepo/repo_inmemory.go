package enrollmentrepo

import (
	"bytes"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("enrollment not found")

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu          sync.RWMutex
	enrollments map[int64]*Enrollment
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		enrollments: make(map[int64]*Enrollment),
	}
}

// Upsert stores a copy of enrollment, replacing any set-up in progress.
func (r *InMemoryRepo) Upsert(enrollment *Enrollment) error {
	if enrollment == nil {
		return errors.New("enrollment cannot be nil")
	}
	if enrollment.UserID <= 0 {
		return errors.New("enrollment user id is required")
	}
	if len(enrollment.Secret) == 0 {
		return errors.New("enrollment secret is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrollments[enrollment.UserID] = clone(enrollment)
	return nil
}

func (r *InMemoryRepo) Get(userID int64) (*Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.enrollments[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

func (r *InMemoryRepo) Delete(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.enrollments, userID)
	return nil
}

func clone(e *Enrollment) *Enrollment {
	return &Enrollment{
		UserID:    e.UserID,
		Secret:    bytes.Clone(e.Secret),
		CreatedAt: e.CreatedAt,
	}
}
