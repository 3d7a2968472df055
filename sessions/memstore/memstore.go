package memstore

import (
	"context"
	"sync"

	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
)

var _ sessions.Storage = (*MemStore)(nil)

// MemStore keeps session entries for the lifetime of the process only.
type MemStore struct {
	entries sessions.Entries
	lock    sync.RWMutex
}

func New() *MemStore {
	return &MemStore{}
}

// NewWith seeds the store, which lets tests simulate a previous run.
func NewWith(entries sessions.Entries) *MemStore {
	return &MemStore{entries: copyEntries(entries)}
}

func (m *MemStore) Load(_ context.Context) (sessions.Entries, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return copyEntries(m.entries), nil
}

func (m *MemStore) Save(_ context.Context, entries sessions.Entries) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.entries = copyEntries(entries)
	return nil
}

func (m *MemStore) Remove(_ context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.entries = sessions.Entries{}
	return nil
}

func copyEntries(e sessions.Entries) sessions.Entries {
	out := sessions.Entries{Token: e.Token}
	if e.User != nil {
		out.User = append([]byte(nil), e.User...)
	}
	return out
}
