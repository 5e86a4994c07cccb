package test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/creativeprojects/refugeemail/storage"
	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sampleMessage = "From: contact@example.org\r\n" +
		"To: contact@example.org\r\n" +
		"Subject: A little message, just for you\r\n" +
		"Date: Wed, 11 May 2016 14:31:59 +0000\r\n" +
		"Message-ID: <0000000@localhost/>\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Hi there :)"
	sampleMessageDate  = time.Date(2020, 10, 20, 12, 11, 0, 0, time.UTC)
	sampleMessageFlags = []string{imap.SeenFlag}
)

// RunTestsOnBackend is the unit tests runner called by the concrete implementations of storage.Backend
func RunTestsOnBackend(t *testing.T, backend storage.Backend) {
	require.NotNil(t, backend)
	ctx := context.Background()
	work := mailbox.Info{
		Delimiter: backend.Delimiter(),
		Name:      "Work",
	}

	t.Run("ListMailbox", func(t *testing.T) {
		list, err := backend.ListMailbox()
		require.NoError(t, err)

		// check there's at least one mailbox
		require.Greater(t, len(list), 0)
		// check the expected delimiter
		assert.Equal(t, backend.Delimiter(), list[0].Delimiter)
	})

	t.Run("CreateExistingMailbox", func(t *testing.T) {
		list, err := backend.ListMailbox()
		require.NoError(t, err)

		assert.True(t, mailboxExists("INBOX", list))

		err = backend.CreateMailbox(mailbox.Info{
			Delimiter: backend.Delimiter(),
			Name:      "INBOX",
		})
		require.NoError(t, err)
	})

	t.Run("CreateDeleteMailboxSameDelimiter", func(t *testing.T) {
		info := mailbox.Info{
			Delimiter: backend.Delimiter(),
			Name:      "Path" + backend.Delimiter() + "Mailbox",
		}
		createMailbox(t, backend, info)
		deleteMailbox(t, backend, info)
		// also deletes the "Path" one if exists (it should on IMAP)
		_ = backend.DeleteMailbox(mailbox.Info{
			Delimiter: backend.Delimiter(),
			Name:      "Path",
		})
	})

	t.Run("CreateDeleteMailboxDifferentDelimiter", func(t *testing.T) {
		info := mailbox.Info{
			Delimiter: "#",
			Name:      "Path#Mailbox",
		}
		createMailbox(t, backend, info)
		deleteMailbox(t, backend, info)
		// also deletes the "Path" one if exists (it should on IMAP)
		_ = backend.DeleteMailbox(mailbox.Info{
			Delimiter: backend.Delimiter(),
			Name:      "Path",
		})
	})

	t.Run("SelectMailboxDoesNotExist", func(t *testing.T) {
		info := mailbox.Info{
			Delimiter: backend.Delimiter(),
			Name:      "No mailbox at that name",
		}
		status, err := backend.SelectMailbox(info)
		assert.Nil(t, status)
		require.Error(t, err)
	})

	t.Run("SelectMailbox", func(t *testing.T) {
		info := mailbox.Info{
			Delimiter: backend.Delimiter(),
			Name:      "INBOX",
		}
		status, err := backend.SelectMailbox(info)
		require.NoError(t, err)
		t.Logf("%v", status)
		assert.Equal(t, info.Name, status.Name)
		assert.NotZero(t, status.UidValidity)

		err = backend.UnselectMailbox()
		assert.NoError(t, err)
	})

	t.Run("FetchWithoutSelectingMailbox", func(t *testing.T) {
		receiver := make(chan *mailbox.Message, 10)
		err := backend.FetchMessages(ctx, []mailbox.MessageID{mailbox.NewMessageIDFromUint(1)}, receiver)
		assert.ErrorIs(t, err, lib.ErrNotSelected)
		// the channel must be closed
		_, ok := <-receiver
		assert.False(t, ok)

		_, err = backend.ListMessageIDs(ctx)
		assert.ErrorIs(t, err, lib.ErrNotSelected)
	})

	t.Run("CreateSimpleMailbox", func(t *testing.T) {
		createMailbox(t, backend, work)
	})

	t.Run("ListEmptyMailbox", func(t *testing.T) {
		_, err := backend.SelectMailbox(work)
		require.NoError(t, err)

		ids, err := backend.ListMessageIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		err = backend.UnselectMailbox()
		assert.NoError(t, err)
	})

	t.Run("AppendMessage", func(t *testing.T) {
		uid, err := backend.PutMessage(work, sampleProperties(), bytes.NewBufferString(sampleMessage))
		require.NoError(t, err)
		if backend.SupportMessageID() {
			assert.False(t, uid.IsZero())
		}

		// Verify the mailbox shows 1 message
		status, err := backend.SelectMailbox(work)
		require.NoError(t, err)
		t.Logf("%v", status)
		assert.Equal(t, work.Name, status.Name)
		assert.Equal(t, uint32(1), status.Messages)
		assert.Equal(t, uint32(0), status.Unseen)

		err = backend.UnselectMailbox()
		assert.NoError(t, err)
	})

	t.Run("FetchOneMessage", func(t *testing.T) {
		_, err := backend.SelectMailbox(work)
		require.NoError(t, err)

		ids, err := backend.ListMessageIDs(ctx)
		require.NoError(t, err)
		require.Len(t, ids, 1)

		messages := fetchMessages(t, backend, ids)
		require.Len(t, messages, 1)
		assert.Equal(t, ids[0], messages[0].Uid)

		err = backend.UnselectMailbox()
		assert.NoError(t, err)
	})

	t.Run("AppendTwoMoreMessages", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			uid, err := backend.PutMessage(work, sampleProperties(), bytes.NewBufferString(sampleMessage))
			require.NoError(t, err)
			if backend.SupportMessageID() {
				assert.False(t, uid.IsZero())
			}
		}

		// Verify the mailbox shows 3 messages
		status, err := backend.SelectMailbox(work)
		require.NoError(t, err)
		t.Logf("%v", status)
		assert.Equal(t, work.Name, status.Name)
		assert.Equal(t, uint32(3), status.Messages)
		assert.Equal(t, uint32(0), status.Unseen)

		err = backend.UnselectMailbox()
		assert.NoError(t, err)
	})

	t.Run("FetchThreeMessages", func(t *testing.T) {
		_, err := backend.SelectMailbox(work)
		require.NoError(t, err)

		ids, err := backend.ListMessageIDs(ctx)
		require.NoError(t, err)
		require.Len(t, ids, 3)
		assert.NotEqual(t, ids[0], ids[1])
		assert.NotEqual(t, ids[1], ids[2])

		messages := fetchMessages(t, backend, ids)
		assert.Len(t, messages, 3)

		err = backend.UnselectMailbox()
		assert.NoError(t, err)
	})

	t.Run("FetchSomeMessages", func(t *testing.T) {
		_, err := backend.SelectMailbox(work)
		require.NoError(t, err)

		ids, err := backend.ListMessageIDs(ctx)
		require.NoError(t, err)
		require.Len(t, ids, 3)

		messages := fetchMessages(t, backend, ids[1:2])
		require.Len(t, messages, 1)
		assert.Equal(t, ids[1], messages[0].Uid)

		// unknown IDs are ignored
		unknown := mailbox.NewMessageIDFromString("unknown")
		if ids[0].IsUint() {
			unknown = mailbox.NewMessageIDFromUint(999999)
		}
		messages = fetchMessages(t, backend, []mailbox.MessageID{unknown})
		assert.Empty(t, messages)

		messages = fetchMessages(t, backend, []mailbox.MessageID{})
		assert.Empty(t, messages)

		err = backend.UnselectMailbox()
		assert.NoError(t, err)
	})

	t.Run("AppendMessageWithWrongSize", func(t *testing.T) {
		props := sampleProperties()
		props.Size = uint32(len(sampleMessage)) - 1
		body := bytes.NewBufferString(sampleMessage)
		_, err := backend.PutMessage(work, props, body)
		assert.Error(t, err)

		// Verify the mailbox still shows 3 messages
		status, err := backend.SelectMailbox(work)
		assert.NoError(t, err)
		t.Logf("%v", status)
		assert.Equal(t, uint32(3), status.Messages)

		err = backend.UnselectMailbox()
		assert.NoError(t, err)
	})

	t.Run("DeleteSimpleMailbox", func(t *testing.T) {
		deleteMailbox(t, backend, work)
	})
}

// PrepareBackend makes sure there's an INBOX with at least one message
func PrepareBackend(backend storage.Backend) error {
	info := mailbox.Info{
		Delimiter: backend.Delimiter(),
		Name:      "INBOX",
	}
	existing, err := backend.ListMailbox()
	if err != nil {
		return err
	}
	if mailboxExists(info.Name, existing) {
		// no need to create the mailbox and add a message to it
		return nil
	}
	err = backend.CreateMailbox(info)
	if err != nil {
		return err
	}
	props := mailbox.MessageProperties{
		Flags:        []string{imap.SeenFlag},
		InternalDate: time.Now(),
		Size:         uint32(len(sampleMessage)),
	}
	buffer := bytes.NewBufferString(sampleMessage)
	_, err = backend.PutMessage(info, props, buffer)
	if err != nil {
		return err
	}
	return nil
}

func sampleProperties() mailbox.MessageProperties {
	return mailbox.MessageProperties{
		Flags:        sampleMessageFlags,
		InternalDate: sampleMessageDate,
		Size:         uint32(len(sampleMessage)),
	}
}

// fetchMessages checks every message received is the sample message
func fetchMessages(t *testing.T, backend storage.Backend, ids []mailbox.MessageID) []*mailbox.Message {
	t.Helper()

	receiver := make(chan *mailbox.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- backend.FetchMessages(context.Background(), ids, receiver)
	}()

	messages := make([]*mailbox.Message, 0, len(ids))
	for msg := range receiver {
		require.NotNil(t, msg)
		body, err := msg.ReadBody()
		assert.NoError(t, err)
		assert.Equal(t, sampleMessage, string(body))
		assert.True(t, sampleMessageDate.Equal(msg.InternalDate))
		assert.ElementsMatch(t, sampleMessageFlags, msg.Flags)
		t.Logf("Received message uid=%s size=%d flags=%+v", msg.Uid.String(), len(body), msg.Flags)
		messages = append(messages, msg)
	}

	// wait until all the messages arrived
	err := <-done
	assert.NoError(t, err)
	return messages
}

func createMailbox(t *testing.T, backend storage.Backend, info mailbox.Info) {
	t.Helper()

	err := backend.CreateMailbox(info)
	require.NoError(t, err)

	list, err := backend.ListMailbox()
	require.NoError(t, err)

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, backend.Delimiter())
	assert.True(t, mailboxExists(name, list))
}

func deleteMailbox(t *testing.T, backend storage.Backend, info mailbox.Info) {
	t.Helper()

	err := backend.DeleteMailbox(info)
	require.NoError(t, err)

	list, err := backend.ListMailbox()
	require.NoError(t, err)

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, backend.Delimiter())
	assert.False(t, mailboxExists(name, list))
}

func mailboxExists(name string, in []mailbox.Info) bool {
	for _, mailbox := range in {
		if mailbox.Name == name {
			return true
		}
	}
	return false
}
