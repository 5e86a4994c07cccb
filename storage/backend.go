package storage

import (
	"context"
	"io"

	"github.com/creativeprojects/refugeemail/mailbox"
)

type Backend interface {
	// Delimiter used to construct a path of mailboxes with its children
	Delimiter() string
	// SupportMessageID indicates if the backend returns the ID of a new message (like the IMAP UIDPLUS extension)
	SupportMessageID() bool
	// Close the backend
	Close() error
	// CreateMailbox does nothing if the mailbox already exists
	CreateMailbox(info mailbox.Info) error
	ListMailbox() ([]mailbox.Info, error)
	DeleteMailbox(info mailbox.Info) error
	// SelectMailbox opens the current mailbox for listing and fetching messages
	SelectMailbox(info mailbox.Info) (*mailbox.Status, error)
	// ListMessageIDs returns the IDs of all the messages in the selected mailbox, in the backend order
	ListMessageIDs(ctx context.Context) ([]mailbox.MessageID, error)
	// FetchMessages sends the messages matching ids into the channel, and closes it when done.
	// IDs not found in the selected mailbox are ignored.
	FetchMessages(ctx context.Context, ids []mailbox.MessageID, messages chan *mailbox.Message) error
	// UnselectMailbox after fetching messages
	UnselectMailbox() error
	// PutMessage appends a message to the mailbox. The flags and the internal date are kept.
	PutMessage(info mailbox.Info, props mailbox.MessageProperties, body io.Reader) (mailbox.MessageID, error)
}
