package lib

import "errors"

var (
	ErrMailboxNotFound = errors.New("mailbox not found")
	ErrInfoNotFound    = errors.New("mailbox info not found")
	ErrStatusNotFound  = errors.New("mailbox status not found")
	ErrNotSelected     = errors.New("mailbox not selected")
	ErrMessageNotFound = errors.New("message not found")
)

// Errors returned by a migration run. They are wrapped with context, use errors.Is to test them.
var (
	ErrMissingParameter   = errors.New("missing mandatory parameter")
	ErrAuthentication     = errors.New("authentication failure")
	ErrConnection         = errors.New("connection error")
	ErrProtocol           = errors.New("protocol error")
	ErrQuota              = errors.New("quota exceeded")
	ErrCorruptState       = errors.New("progress state is corrupted")
	ErrUidValidityChanged = errors.New("source folder identifiers have been renumbered")
	ErrArchiveLocked      = errors.New("archive is locked by another process")
	ErrInvalidBatchSize   = errors.New("batch size must be greater than zero")
	ErrNoTarget           = errors.New("no destination and no local archive")
)
