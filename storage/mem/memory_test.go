package mem

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/creativeprojects/refugeemail/storage/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	backend := NewWithLogger(lib.NewTestLogger(t, "mem"))

	defer backend.Close()

	err := test.PrepareBackend(backend)
	require.NoError(t, err)

	test.RunTestsOnBackend(t, backend)
}

func TestFetchKeepsRequestedOrder(t *testing.T) {
	info := mailbox.Info{Name: "INBOX", Delimiter: Delimiter}
	backend := New()
	backend.GenerateFakeEmails(info, 5, 100, 200)

	_, err := backend.SelectMailbox(info)
	require.NoError(t, err)

	ids, err := backend.ListMessageIDs(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 5)

	requested := []mailbox.MessageID{ids[3], ids[0], ids[4]}
	receiver := make(chan *mailbox.Message, 10)
	err = backend.FetchMessages(context.Background(), requested, receiver)
	require.NoError(t, err)

	received := make([]mailbox.MessageID, 0, 3)
	for msg := range receiver {
		received = append(received, msg.Uid)
	}
	assert.Equal(t, requested, received)
}

func TestFailPutMessage(t *testing.T) {
	info := mailbox.Info{Name: "INBOX", Delimiter: Delimiter}
	errQuota := errors.New("quota")
	backend := New()
	require.NoError(t, backend.CreateMailbox(info))
	backend.FailPutMessage(func(count int) error {
		if count == 2 {
			return errQuota
		}
		return nil
	})

	_, err := backend.PutMessage(info, mailbox.MessageProperties{}, bytes.NewBufferString("one"))
	assert.NoError(t, err)
	_, err = backend.PutMessage(info, mailbox.MessageProperties{}, bytes.NewBufferString("two"))
	assert.ErrorIs(t, err, errQuota)
	_, err = backend.PutMessage(info, mailbox.MessageProperties{}, bytes.NewBufferString("three"))
	assert.NoError(t, err)

	assert.Equal(t, [][]byte{[]byte("one"), []byte("three")}, backend.Contents(info))
}

func TestFailFetchMessages(t *testing.T) {
	info := mailbox.Info{Name: "INBOX", Delimiter: Delimiter}
	errNetwork := errors.New("network")
	backend := New()
	backend.GenerateFakeEmails(info, 2, 100, 200)
	backend.FailFetchMessages(func(ids []mailbox.MessageID) error {
		return errNetwork
	})

	_, err := backend.SelectMailbox(info)
	require.NoError(t, err)

	receiver := make(chan *mailbox.Message, 10)
	err = backend.FetchMessages(context.Background(), []mailbox.MessageID{mailbox.NewMessageIDFromUint(1)}, receiver)
	assert.ErrorIs(t, err, errNetwork)
	_, ok := <-receiver
	assert.False(t, ok)
}
