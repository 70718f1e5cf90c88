package os

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockName = ".watchparty.lock"

// Flock is an inter-process file lock.
// Two coordinators sharing one uploads dir never write the current movie at once.
type Flock struct {
	f *flock.Flock
}

// NewFileLock makes a lock file inside dir (the temp dir when empty).
func NewFileLock(dir string) (*Flock, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, lockName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0660)
	if err != nil {
		return nil, err
	}
	_ = f.Close()
	return &Flock{f: flock.New(path)}, nil
}

func (f *Flock) Lock() error   { return f.f.Lock() }
func (f *Flock) Unlock() error { return f.f.Unlock() }
func (f *Flock) Path() string  { return f.f.Path() }

// IsLockFile tells if the file name belongs to the lock itself.
func IsLockFile(name string) bool { return filepath.Base(name) == lockName }
