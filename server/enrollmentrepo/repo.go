package enrollmentrepo

import "time"

// Enrollment is an authenticator app set-up that has not yet been confirmed
// with a first code. The account keeps its old method until then.
type Enrollment struct {
	UserID    int64
	Secret    []byte
	CreatedAt time.Time
}

type Repo interface {
	Upsert(enrollment *Enrollment) error
	Get(userID int64) (*Enrollment, error)
	Delete(userID int64) error
}
