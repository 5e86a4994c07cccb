package lib

import (
	"fmt"
	"os"
)

// FileLock is an exclusive advisory lock. The operating system releases it when the process dies,
// so a crashed run never leaves a stale lock behind.
type FileLock struct {
	file *os.File
}

// LockFile acquires the lock on filename (created if needed) without waiting.
// It returns ErrArchiveLocked if another process is holding it.
func LockFile(filename string) (*FileLock, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("cannot open lock file %q: %w", filename, err)
	}
	err = lockFile(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s (%v)", ErrArchiveLocked, filename, err)
	}
	return &FileLock{file: file}, nil
}

func (l *FileLock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return closeErr
}
