package sessions

import "context"

// Persisted entry names. Both are written together and removed together.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Entries is the persisted form of a session: the opaque token and the JSON
// encoded user profile.
type Entries struct {
	Token string
	User  []byte
}

// Complete reports whether both entries are present. Anything less is treated
// as "no session".
func (e Entries) Complete() bool {
	return e.Token != "" && len(e.User) > 0
}

// Storage persists session entries across process restarts.
type Storage interface {
	// Load returns whatever entries exist; missing entries are empty, not errors.
	Load(ctx context.Context) (Entries, error)

	// Save writes both entries.
	Save(ctx context.Context, entries Entries) error

	// Remove deletes both entries. Removing nothing is not an error.
	Remove(ctx context.Context) error
}
