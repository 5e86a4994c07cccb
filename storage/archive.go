package storage

import (
	"bytes"
	"fmt"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
)

// Archive is a local copy of the migrated messages. It stays locked between its creation and Close.
type Archive interface {
	// Append saves a message and returns its key in the archive
	Append(msg *mailbox.Message) (mailbox.MessageID, error)
	// Flush makes the messages appended so far durable
	Flush() error
	// Close flushes and releases the lock
	Close() error
}

// BackendArchive saves the archived messages into one mailbox of a local backend (maildir or bolt)
type BackendArchive struct {
	backend Backend
	info    mailbox.Info
	lock    *lib.FileLock
	log     lib.Logger
}

// NewBackendArchive creates the mailbox if needed. The archive owns the backend and the lock from now on:
// they're both released by Close. lock can be nil when the backend is already exclusive.
func NewBackendArchive(backend Backend, info mailbox.Info, lock *lib.FileLock, logger lib.Logger) (*BackendArchive, error) {
	logger = lib.LoggerOrDefault(logger)
	err := backend.CreateMailbox(info)
	if err != nil {
		return nil, fmt.Errorf("cannot create archive mailbox %q: %w", info.Name, err)
	}
	logger.Printf("archiving into mailbox %q", info.Name)
	return &BackendArchive{
		backend: backend,
		info:    info,
		lock:    lock,
		log:     logger,
	}, nil
}

func (a *BackendArchive) Append(msg *mailbox.Message) (mailbox.MessageID, error) {
	raw, err := msg.ReadBody()
	if err != nil {
		return mailbox.EmptyMessageID, err
	}
	key, err := a.backend.PutMessage(a.info, msg.MessageProperties, bytes.NewReader(raw))
	if err != nil {
		return mailbox.EmptyMessageID, fmt.Errorf("cannot archive message %s: %w", msg.Uid, err)
	}
	return key, nil
}

// Flush does nothing: both local backends write every message synchronously
func (a *BackendArchive) Flush() error {
	return nil
}

func (a *BackendArchive) Close() error {
	err := a.backend.Close()
	if unlockErr := a.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

var _ Archive = &BackendArchive{}
