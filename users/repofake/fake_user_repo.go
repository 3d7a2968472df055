package fakeuserrepo

import (
	"strings"
	"sync"
	"time"

	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[int64]*users.User
	emailIds map[string]int64 // lower-cased email to user id
	nextID   int64
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[int64]*users.User),
		emailIds: make(map[string]int64),
	}
}

func (ur *FakeUserRepo) Insert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := emailKey(user.Email)
	if _, ok := ur.emailIds[key]; ok {
		return users.ErrEmailTaken
	}
	ur.nextID++
	user.ID = ur.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[key] = user.ID
	return nil
}

func (ur *FakeUserRepo) Update(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	existing, ok := ur.users[user.ID]
	if !ok {
		return users.ErrUserNotFound
	}
	if emailKey(existing.Email) != emailKey(user.Email) {
		if _, taken := ur.emailIds[emailKey(user.Email)]; taken {
			return users.ErrEmailTaken
		}
		delete(ur.emailIds, emailKey(existing.Email))
		ur.emailIds[emailKey(user.Email)] = user.ID
	}
	stored := *user
	ur.users[user.ID] = &stored
	return nil
}

// GetByEmail returns a copy; callers persist changes with Update.
func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[emailKey(email)]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	u := *ur.users[id]
	return &u, nil
}

func (ur *FakeUserRepo) GetByID(id int64) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	stored, ok := ur.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	u := *stored
	return &u, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
