package mbox

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/emersion/go-mbox"
)

const defaultSender = "MAILER-DAEMON"

// Archive appends messages to a single mbox file. The key of a message is its position in the file, starting at 1.
type Archive struct {
	filename string
	file     *os.File
	buffer   *bufio.Writer
	lock     *lib.FileLock
	count    uint32
	log      lib.Logger
}

// Open locks the mbox file and counts the messages already in it. The file is created if needed.
func Open(filename string) (*Archive, error) {
	return OpenWithLogger(filename, nil)
}

func OpenWithLogger(filename string, logger lib.Logger) (*Archive, error) {
	logger = lib.LoggerOrDefault(logger)
	if filename == "" {
		return nil, fmt.Errorf("%w: mbox file name", lib.ErrMissingParameter)
	}
	err := os.MkdirAll(filepath.Dir(filename), 0700)
	if err != nil {
		return nil, fmt.Errorf("cannot create archive directory: %w", err)
	}
	lock, err := lib.LockFile(filename + ".lock")
	if err != nil {
		return nil, err
	}

	count, err := countMessages(filename)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("cannot open archive %q: %w", filename, err)
	}
	logger.Printf("archive %q opened with %d messages", filename, count)

	return &Archive{
		filename: filename,
		file:     file,
		buffer:   bufio.NewWriter(file),
		lock:     lock,
		count:    count,
		log:      logger,
	}, nil
}

// Filename of the mbox file
func (a *Archive) Filename() string {
	return a.filename
}

// Count returns the number of messages in the file, including the ones not flushed yet
func (a *Archive) Count() uint32 {
	return a.count
}

func (a *Archive) Append(msg *mailbox.Message) (mailbox.MessageID, error) {
	if a.file == nil {
		return mailbox.EmptyMessageID, os.ErrClosed
	}
	raw, err := msg.ReadBody()
	if err != nil {
		return mailbox.EmptyMessageID, err
	}

	writer := mbox.NewWriter(a.buffer)
	content, err := writer.CreateMessage(sender(raw), msg.InternalDate)
	if err != nil {
		return mailbox.EmptyMessageID, fmt.Errorf("cannot archive message %s: %w", msg.Uid, err)
	}
	_, err = content.Write(raw)
	if err != nil {
		return mailbox.EmptyMessageID, fmt.Errorf("cannot archive message %s: %w", msg.Uid, err)
	}
	err = writer.Close()
	if err != nil {
		return mailbox.EmptyMessageID, fmt.Errorf("cannot archive message %s: %w", msg.Uid, err)
	}
	a.count++
	a.log.Printf("message %s archived at position %d", msg.Uid, a.count)
	return mailbox.NewMessageIDFromUint(a.count), nil
}

// Flush writes the buffered messages and waits until they're on disk
func (a *Archive) Flush() error {
	if a.file == nil {
		return os.ErrClosed
	}
	err := a.buffer.Flush()
	if err != nil {
		return fmt.Errorf("cannot write archive %q: %w", a.filename, err)
	}
	err = a.file.Sync()
	if err != nil {
		return fmt.Errorf("cannot sync archive %q: %w", a.filename, err)
	}
	return nil
}

// Close flushes the messages and releases the lock. It's safe to call more than once.
func (a *Archive) Close() error {
	if a.file == nil {
		return nil
	}
	err := a.Flush()
	if closeErr := a.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	a.file = nil
	if unlockErr := a.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

func countMessages(filename string) (uint32, error) {
	file, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("cannot open archive %q: %w", filename, err)
	}
	defer file.Close()

	var count uint32
	reader := mbox.NewReader(bufio.NewReader(file))
	for {
		_, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("%w: archive %q: %s", lib.ErrCorruptState, filename, err)
		}
		count++
	}
}

// sender returns the address from the From header, used on the separator line
func sender(raw []byte) string {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return defaultSender
	}
	address, err := mail.ParseAddress(msg.Header.Get("From"))
	if err != nil || address.Address == "" {
		return defaultSender
	}
	return address.Address
}
