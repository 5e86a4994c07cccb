package mdir

import (
	"bytes"
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/creativeprojects/refugeemail/storage/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaildirBackend(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("maildir is not supported on Windows")
		return
	}
	root := t.TempDir()
	backend, err := NewWithLogger(root, lib.NewTestLogger(t, "maildir"))
	require.NoError(t, err)

	defer backend.Close()

	err = test.PrepareBackend(backend)
	require.NoError(t, err)

	test.RunTestsOnBackend(t, backend)
}

func TestMaildirListByInternalDate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("maildir is not supported on Windows")
		return
	}
	backend, err := New(t.TempDir())
	require.NoError(t, err)

	info := mailbox.Info{Name: "INBOX", Delimiter: Delimiter}
	require.NoError(t, backend.CreateMailbox(info))

	dates := []time.Time{
		time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	keys := make([]mailbox.MessageID, len(dates))
	for i, date := range dates {
		keys[i], err = backend.PutMessage(info, mailbox.MessageProperties{InternalDate: date}, bytes.NewBufferString("message"))
		require.NoError(t, err)
	}

	_, err = backend.SelectMailbox(info)
	require.NoError(t, err)
	ids, err := backend.ListMessageIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []mailbox.MessageID{keys[1], keys[2], keys[0]}, ids)
}
