package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

var _ sessions.Storage = (*FileStore)(nil)

// FileStore persists the token and user entries as two files in one directory,
// mirroring the two keys a browser keeps in local storage.
type FileStore struct {
	dir string
}

func New(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir is the directory holding the session files.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) Load(_ context.Context) (sessions.Entries, error) {
	tok, err := f.read(sessions.KeyToken)
	if err != nil {
		return sessions.Entries{}, err
	}
	user, err := f.read(sessions.KeyUser)
	if err != nil {
		return sessions.Entries{}, err
	}
	return sessions.Entries{Token: string(tok), User: user}, nil
}

func (f *FileStore) Save(_ context.Context, entries sessions.Entries) error {
	if err := os.MkdirAll(f.dir, dirPerm); err != nil {
		return apperrors.Wrapf(err, "[FileStore.Save] mkdir %s", f.dir)
	}
	// The old token goes first so a crash before the new token lands leaves
	// an incomplete pair rather than one token paired with another user.
	if err := os.Remove(f.path(sessions.KeyToken)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrapf(err, "[FileStore.Save] remove stale %s", sessions.KeyToken)
	}
	if err := f.write(sessions.KeyUser, entries.User); err != nil {
		return err
	}
	return f.write(sessions.KeyToken, []byte(entries.Token))
}

// Remove deletes the token first so a crash part way leaves at most a user
// entry, which Restore discards.
func (f *FileStore) Remove(_ context.Context) error {
	for _, name := range []string{sessions.KeyToken, sessions.KeyUser} {
		if err := os.Remove(f.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return apperrors.Wrapf(err, "[FileStore.Remove] %s", name)
		}
	}
	return nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *FileStore) read(name string) ([]byte, error) {
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "[FileStore.Load] %s", name)
	}
	return data, nil
}

// write replaces name atomically via a temp file and rename.
func (f *FileStore) write(name string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, "."+name+"-*")
	if err != nil {
		return apperrors.Wrapf(err, "[FileStore.Save] create temp for %s", name)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return apperrors.Wrapf(err, "[FileStore.Save] chmod %s", name)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Wrapf(err, "[FileStore.Save] write %s", name)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrapf(err, "[FileStore.Save] close %s", name)
	}
	if err := os.Rename(tmp.Name(), f.path(name)); err != nil {
		return apperrors.Wrapf(err, "[FileStore.Save] rename %s", name)
	}
	return nil
}
