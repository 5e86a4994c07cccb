package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/creativeprojects/refugeemail/cfg"
	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/creativeprojects/refugeemail/storage"
	"github.com/creativeprojects/refugeemail/storage/local"
	"github.com/creativeprojects/refugeemail/storage/mbox"
	"github.com/creativeprojects/refugeemail/storage/mdir"
)

// archivePath returns where the local copy of a source folder is saved
func archivePath(archiveType cfg.ArchiveType, dir, serverURL, username, folder string) string {
	base := filepath.Join(dir, lib.AccountTag(serverURL, username))
	switch archiveType {
	case cfg.ArchiveMaildir:
		return filepath.Join(base, "maildir")
	case cfg.ArchiveLocal:
		return filepath.Join(base, "archive.db")
	default:
		return filepath.Join(base, lib.EscapeFilename(folder)+".mbox")
	}
}

// openArchive locks and opens the local copy of a source folder
func openArchive(archiveType cfg.ArchiveType, path string, folder mailbox.Info, logger lib.Logger) (storage.Archive, error) {
	switch archiveType {
	case cfg.ArchiveMbox, "":
		archive, err := mbox.OpenWithLogger(path, logger)
		if err != nil {
			return nil, err
		}
		return archive, nil

	case cfg.ArchiveMaildir:
		err := os.MkdirAll(filepath.Dir(path), 0o700)
		if err != nil {
			return nil, err
		}
		lock, err := lib.LockFile(path + ".lock")
		if err != nil {
			return nil, err
		}
		backend, err := mdir.NewWithLogger(path, logger)
		if err != nil {
			_ = lock.Unlock()
			return nil, err
		}
		return newBackendArchive(backend, folder, lock, logger)

	case cfg.ArchiveLocal:
		// bolt holds an exclusive lock on the database file
		backend, err := local.NewBoltStoreWithLogger(path, logger)
		if err != nil {
			return nil, err
		}
		return newBackendArchive(backend, folder, nil, logger)

	default:
		return nil, fmt.Errorf("unsupported archive type %q", archiveType)
	}
}

// newBackendArchive releases the backend and the lock when the archive cannot be created
func newBackendArchive(backend storage.Backend, folder mailbox.Info, lock *lib.FileLock, logger lib.Logger) (storage.Archive, error) {
	archive, err := storage.NewBackendArchive(backend, folder, lock, logger)
	if err != nil {
		_ = backend.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return archive, nil
}
