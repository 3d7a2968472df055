package coderepo

import (
	"fmt"
	"strings"
	"sync"
)

var _ Repo = (*InMemoryRepo)(nil)

type InMemoryRepo struct {
	mu    sync.RWMutex
	codes map[Purpose]map[string]Code // purpose -> lower-cased email -> code
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		codes: make(map[Purpose]map[string]Code),
	}
}

func (r *InMemoryRepo) Upsert(purpose Purpose, email string, code Code) error {
	if err := checkKey(purpose, email); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[purpose]; !ok {
		r.codes[purpose] = make(map[string]Code)
	}
	r.codes[purpose][key(email)] = code
	return nil
}

func (r *InMemoryRepo) Get(purpose Purpose, email string) (Code, error) {
	if err := checkKey(purpose, email); err != nil {
		return Code{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	code, ok := r.codes[purpose][key(email)]
	if !ok {
		return Code{}, ErrCodeNotFound
	}
	return code, nil
}

// Delete is a no-op for a missing code.
func (r *InMemoryRepo) Delete(purpose Purpose, email string) error {
	if err := checkKey(purpose, email); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byEmail, ok := r.codes[purpose]
	if !ok {
		return nil
	}
	delete(byEmail, key(email))
	if len(byEmail) == 0 {
		delete(r.codes, purpose)
	}
	return nil
}

func checkKey(purpose Purpose, email string) error {
	if purpose == "" {
		return fmt.Errorf("purpose is required")
	}
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
