package migrate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/creativeprojects/refugeemail/state"
	"github.com/creativeprojects/refugeemail/storage/mbox"
	"github.com/creativeprojects/refugeemail/storage/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inbox = mailbox.Info{Name: "INBOX", Delimiter: mem.Delimiter}

// spySource keeps track of the IDs requested in each fetch
type spySource struct {
	Source
	fetched [][]mailbox.MessageID
}

func (s *spySource) FetchMessages(ctx context.Context, ids []mailbox.MessageID, messages chan *mailbox.Message) error {
	s.fetched = append(s.fetched, append([]mailbox.MessageID(nil), ids...))
	return s.Source.FetchMessages(ctx, ids, messages)
}

// interruptingDestination sends an interrupt signal right after saving the nth message
type interruptingDestination struct {
	Destination
	count   int
	at      int
	signals chan os.Signal
}

func (d *interruptingDestination) PutMessage(info mailbox.Info, props mailbox.MessageProperties, body io.Reader) (mailbox.MessageID, error) {
	id, err := d.Destination.PutMessage(info, props, body)
	d.count++
	if d.count == d.at {
		d.signals <- os.Interrupt
	}
	return id, err
}

// memoryArchive keeps the messages in memory, flushing them into flushed
type memoryArchive struct {
	pending  [][]byte
	flushed  [][]byte
	flushErr error
	closeErr error
	closed   bool
}

func (a *memoryArchive) Append(msg *mailbox.Message) (mailbox.MessageID, error) {
	raw, err := msg.ReadBody()
	if err != nil {
		return mailbox.EmptyMessageID, err
	}
	a.pending = append(a.pending, raw)
	return mailbox.NewMessageIDFromUint(uint32(len(a.flushed) + len(a.pending))), nil
}

func (a *memoryArchive) Flush() error {
	if a.flushErr != nil {
		return a.flushErr
	}
	a.flushed = append(a.flushed, a.pending...)
	a.pending = nil
	return nil
}

func (a *memoryArchive) Close() error {
	a.closed = true
	if a.closeErr != nil {
		return a.closeErr
	}
	return a.Flush()
}

type testReporter struct {
	started  int
	updates  int
	finished int
	last     Statistics
}

func (r *testReporter) Start(stats Statistics) {
	r.started++
	r.last = stats
}

func (r *testReporter) Update(stats Statistics) {
	r.updates++
	r.last = stats
}

func (r *testReporter) Finish(stats Statistics) {
	r.finished++
	r.last = stats
}

func newSource(count uint32) *mem.Backend {
	source := mem.New()
	source.GenerateFakeEmails(inbox, count, 100, 1000)
	return source
}

func loadStore(t *testing.T, filename string) *state.Store {
	t.Helper()
	store, err := state.Load(filename)
	require.NoError(t, err)
	return store
}

func TestRunTransfersEverything(t *testing.T) {
	dir := t.TempDir()
	source := newSource(23)
	destination := mem.New()
	archive, err := mbox.Open(filepath.Join(dir, "archive.mbox"))
	require.NoError(t, err)
	store := state.New(filepath.Join(dir, "progress.json"))
	metadataFile := filepath.Join(dir, "meta.json")
	reporter := &testReporter{}

	session, err := NewSession(Config{
		Folder:       inbox,
		BatchSize:    10,
		MetadataFile: metadataFile,
		AccountTag:   "tag",
	}, source, destination, archive, store, WithLogger(lib.NewTestLogger(t, "session")), WithReporter(reporter))
	require.NoError(t, err)

	stats, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Statistics{Total: 23, Transferred: 23, Batches: 3}, stats)
	assert.Zero(t, stats.Remaining())

	// messages are appended in the source order
	assert.Equal(t, source.Contents(inbox), destination.Contents(inbox))

	reloaded := loadStore(t, store.Filename())
	require.Equal(t, 23, reloaded.Len())
	for uid := uint32(1); uid <= 23; uid++ {
		entry, found := reloaded.Get(mailbox.NewMessageIDFromUint(uid))
		require.True(t, found)
		assert.Equal(t, state.Archived(mailbox.NewMessageIDFromUint(uid)), entry)
	}

	status, err := source.SelectMailbox(inbox)
	require.NoError(t, err)
	metadata, err := state.LoadMetadata(metadataFile)
	require.NoError(t, err)
	assert.Equal(t, status.UidValidity, metadata.UidValidity)
	assert.Equal(t, "tag", metadata.AccountTag)
	last, found := metadata.LastRun()
	require.True(t, found)
	assert.Equal(t, ModeMigrate, last.Mode)
	assert.Equal(t, 23, last.Transferred)

	assert.Equal(t, 1, reporter.started)
	assert.Equal(t, 1, reporter.finished)
	assert.Equal(t, 23+3, reporter.updates)
	assert.Equal(t, stats, reporter.last)

	// the archive lock was released
	archive, err = mbox.Open(filepath.Join(dir, "archive.mbox"))
	require.NoError(t, err)
	defer archive.Close()
	assert.Equal(t, uint32(23), archive.Count())

	// a session cannot be used again
	_, err = session.Run(context.Background())
	assert.Error(t, err)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	source := newSource(23)
	destination := mem.New()
	progressFile := filepath.Join(dir, "progress.json")
	archiveFile := filepath.Join(dir, "archive.mbox")

	run := func() Statistics {
		archive, err := mbox.Open(archiveFile)
		require.NoError(t, err)
		session, err := NewSession(Config{Folder: inbox}, source, destination, archive, loadStore(t, progressFile))
		require.NoError(t, err)
		stats, err := session.Run(context.Background())
		require.NoError(t, err)
		return stats
	}

	first := run()
	assert.Equal(t, Statistics{Total: 23, Transferred: 23, Batches: 3}, first)
	ids := loadStore(t, progressFile).IDs()

	second := run()
	assert.Equal(t, Statistics{Total: 23, Skipped: 23, Batches: 3}, second)
	assert.Equal(t, ids, loadStore(t, progressFile).IDs())
	assert.Equal(t, 23, destination.Count(inbox))

	archive, err := mbox.Open(archiveFile)
	require.NoError(t, err)
	defer archive.Close()
	assert.Equal(t, uint32(23), archive.Count())
}

func TestResumeAfterFailure(t *testing.T) {
	progressFile := filepath.Join(t.TempDir(), "progress.json")
	source := newSource(23)
	destination := mem.New()
	errConnection := errors.New("connection lost")
	destination.FailPutMessage(func(count int) error {
		// first message of the second batch
		if count == 11 {
			return errConnection
		}
		return nil
	})

	session, err := NewSession(Config{Folder: inbox, BatchSize: 10}, source, destination, nil, loadStore(t, progressFile))
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	assert.ErrorIs(t, err, errConnection)
	assert.Equal(t, 10, stats.Transferred)
	assert.Equal(t, 1, stats.Batches)

	store := loadStore(t, progressFile)
	assert.Equal(t, uintIDs(10), store.IDs())

	// run again
	destination.FailPutMessage(nil)
	spy := &spySource{Source: source}
	session, err = NewSession(Config{Folder: inbox, BatchSize: 10}, spy, destination, nil, store)
	require.NoError(t, err)
	stats, err = session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Statistics{Total: 23, Transferred: 13, Skipped: 10, Batches: 3}, stats)

	all := uintIDs(23)
	assert.Equal(t, [][]mailbox.MessageID{all[10:20], all[20:23]}, spy.fetched)
	assert.Equal(t, 23, destination.Count(inbox))
	assert.Equal(t, all, loadStore(t, progressFile).IDs())
}

func TestSkipAccounting(t *testing.T) {
	source := newSource(4)
	ids := uintIDs(4)
	store := state.New(filepath.Join(t.TempDir(), "progress.json"))
	store.Record(ids[0], state.Transferred())
	store.Record(ids[2], state.Transferred())

	spy := &spySource{Source: source}
	session, err := NewSession(Config{Folder: inbox, BatchSize: 4}, spy, mem.New(), nil, store)
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][]mailbox.MessageID{{ids[1], ids[3]}}, spy.fetched)
	assert.Equal(t, Statistics{Total: 4, Transferred: 2, Skipped: 2, Batches: 1}, stats)
}

func TestCrashBeforePersist(t *testing.T) {
	progressFile := filepath.Join(t.TempDir(), "progress.json")
	source := newSource(1)
	destination := mem.New()
	errDisk := errors.New("disk failure")
	archive := &memoryArchive{flushErr: errDisk, closeErr: errDisk}

	session, err := NewSession(Config{Folder: inbox}, source, destination, archive, loadStore(t, progressFile))
	require.NoError(t, err)
	_, err = session.Run(context.Background())
	assert.ErrorIs(t, err, errDisk)
	assert.True(t, archive.closed)

	// the message was sent but the progress was never saved
	assert.Equal(t, 1, destination.Count(inbox))
	assert.NoFileExists(t, progressFile)

	archive = &memoryArchive{}
	session, err = NewSession(Config{Folder: inbox}, source, destination, archive, loadStore(t, progressFile))
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Transferred)

	// delivered twice, recorded once
	assert.Equal(t, 2, destination.Count(inbox))
	store := loadStore(t, progressFile)
	assert.Equal(t, 1, store.Len())
	assert.Len(t, archive.flushed, 1)
}

func TestErrorKeepsCommittedMessages(t *testing.T) {
	progressFile := filepath.Join(t.TempDir(), "progress.json")
	source := newSource(5)
	destination := mem.New()
	errQuota := errors.New("over quota")
	destination.FailPutMessage(func(count int) error {
		if count == 3 {
			return errQuota
		}
		return nil
	})
	archive := &memoryArchive{}

	session, err := NewSession(Config{Folder: inbox}, source, destination, archive, loadStore(t, progressFile))
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	assert.ErrorIs(t, err, errQuota)
	assert.Equal(t, 2, stats.Transferred)

	// the archive was closed cleanly so the first two messages are committed
	assert.Len(t, archive.flushed, 2)
	assert.Equal(t, uintIDs(2), loadStore(t, progressFile).IDs())
}

func TestFetchError(t *testing.T) {
	progressFile := filepath.Join(t.TempDir(), "progress.json")
	source := newSource(23)
	errNetwork := errors.New("network down")
	calls := 0
	source.FailFetchMessages(func(ids []mailbox.MessageID) error {
		calls++
		if calls == 2 {
			return errNetwork
		}
		return nil
	})

	session, err := NewSession(Config{Folder: inbox}, source, mem.New(), nil, loadStore(t, progressFile))
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	assert.ErrorIs(t, err, errNetwork)
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, 10, loadStore(t, progressFile).Len())
}

func TestCancellationDeclined(t *testing.T) {
	source := newSource(23)
	destination := mem.New()
	signals := make(chan os.Signal, 1)
	asked := 0
	handler := newInterruptHandler(signals, func(question string) bool {
		asked++
		return false
	})
	signals <- os.Interrupt

	session, err := NewSession(Config{Folder: inbox}, source, destination, nil, state.New(""), WithCanceller(handler))
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, asked)
	assert.Equal(t, Statistics{Total: 23, Transferred: 23, Batches: 3}, stats)
	assert.Equal(t, 23, destination.Count(inbox))
}

func TestCancellationConfirmed(t *testing.T) {
	progressFile := filepath.Join(t.TempDir(), "progress.json")
	source := newSource(23)
	spy := &spySource{Source: source}
	destination := mem.New()
	signals := make(chan os.Signal, 1)
	handler := newInterruptHandler(signals, func(question string) bool {
		return true
	})
	interrupting := &interruptingDestination{
		Destination: destination,
		at:          12,
		signals:     signals,
	}
	archive := &memoryArchive{}

	session, err := NewSession(Config{Folder: inbox}, spy, interrupting, archive, loadStore(t, progressFile), WithCanceller(handler))
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Statistics{Total: 23, Transferred: 12, Batches: 2, Cancelled: true}, stats)
	// no more batch fetched
	assert.Len(t, spy.fetched, 2)
	assert.Equal(t, 12, destination.Count(inbox))
	assert.Len(t, archive.flushed, 12)
	assert.True(t, archive.closed)
	assert.Equal(t, uintIDs(12), loadStore(t, progressFile).IDs())

	// and resume
	session, err = NewSession(Config{Folder: inbox}, source, destination, nil, loadStore(t, progressFile))
	require.NoError(t, err)
	stats, err = session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Statistics{Total: 23, Transferred: 11, Skipped: 12, Batches: 3}, stats)
	assert.Equal(t, 23, destination.Count(inbox))
}

func TestCancelledBeforeStarting(t *testing.T) {
	source := newSource(5)
	spy := &spySource{Source: source}
	session, err := NewSession(Config{Folder: inbox}, spy, mem.New(), nil, state.New(""), WithCanceller(CancellerFunc(func() bool {
		return true
	})))
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Statistics{Total: 5, Cancelled: true}, stats)
	assert.Empty(t, spy.fetched)
}

func TestUidValidityChanged(t *testing.T) {
	dir := t.TempDir()
	progressFile := filepath.Join(dir, "progress.json")
	metadataFile := filepath.Join(dir, "meta.json")
	archiveFile := filepath.Join(dir, "archive.mbox")
	source := newSource(3)

	archive, err := mbox.Open(archiveFile)
	require.NoError(t, err)
	session, err := NewSession(Config{Folder: inbox, MetadataFile: metadataFile}, source, nil, archive, loadStore(t, progressFile))
	require.NoError(t, err)
	_, err = session.Run(context.Background())
	require.NoError(t, err)

	metadata, err := state.LoadMetadata(metadataFile)
	require.NoError(t, err)
	renumbered := uint32(42)
	if metadata.UidValidity == renumbered {
		renumbered++
	}
	source.SetUidValidity(inbox, renumbered)

	archive, err = mbox.Open(archiveFile)
	require.NoError(t, err)
	session, err = NewSession(Config{Folder: inbox, MetadataFile: metadataFile}, source, nil, archive, loadStore(t, progressFile))
	require.NoError(t, err)
	_, err = session.Run(context.Background())
	assert.ErrorIs(t, err, lib.ErrUidValidityChanged)

	// the archive is released and the metadata untouched
	archive, err = mbox.Open(archiveFile)
	require.NoError(t, err)
	assert.NoError(t, archive.Close())
	unchanged, err := state.LoadMetadata(metadataFile)
	require.NoError(t, err)
	assert.Equal(t, metadata, unchanged)
}

func TestArchiveOnly(t *testing.T) {
	dir := t.TempDir()
	source := newSource(12)
	archive, err := mbox.Open(filepath.Join(dir, "archive.mbox"))
	require.NoError(t, err)
	store := state.New(filepath.Join(dir, "progress.json"))

	session, err := NewSession(Config{Folder: inbox, Mode: ModeBackup}, source, nil, archive, store)
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Transferred)
	assert.Equal(t, map[state.Kind]int{state.KindArchived: 12}, loadStore(t, store.Filename()).Count())
}

func TestTransferOnly(t *testing.T) {
	source := newSource(12)
	store := state.New(filepath.Join(t.TempDir(), "progress.json"))

	session, err := NewSession(Config{Folder: inbox, Target: mailbox.Info{Name: "Archive", Delimiter: mem.Delimiter}}, source, mem.New(), nil, store)
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Transferred)
	assert.Equal(t, map[state.Kind]int{state.KindTransferred: 12}, loadStore(t, store.Filename()).Count())
}

func TestEmptyMessageIsRecorded(t *testing.T) {
	source := newSource(2)
	empty := source.PutEmptyMessage(inbox)
	destination := mem.New()
	store := state.New(filepath.Join(t.TempDir(), "progress.json"))

	session, err := NewSession(Config{Folder: inbox}, source, destination, nil, store)
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Statistics{Total: 3, Transferred: 2, Empty: 1, Batches: 1}, stats)
	assert.Equal(t, 2, destination.Count(inbox))

	entry, found := loadStore(t, store.Filename()).Get(empty)
	require.True(t, found)
	assert.Equal(t, state.KindSkipped, entry.Kind())
}

func TestDryRun(t *testing.T) {
	progressFile := filepath.Join(t.TempDir(), "progress.json")
	source := newSource(23)
	spy := &spySource{Source: source}
	destination := mem.New()
	store := state.New(progressFile)
	store.Record(mailbox.NewMessageIDFromUint(1), state.Transferred())

	session, err := NewSession(Config{Folder: inbox, DryRun: true}, spy, destination, nil, store)
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Statistics{Total: 23, Skipped: 1, Batches: 3}, stats)
	assert.Equal(t, 22, stats.Remaining())
	assert.Empty(t, spy.fetched)
	assert.Zero(t, destination.Count(inbox))
	assert.NoFileExists(t, progressFile)
}

func TestSourceFolderNotFound(t *testing.T) {
	progressFile := filepath.Join(t.TempDir(), "progress.json")
	archive := &memoryArchive{}
	session, err := NewSession(Config{Folder: mailbox.Info{Name: "Missing"}}, mem.New(), nil, archive, loadStore(t, progressFile))
	require.NoError(t, err)
	_, err = session.Run(context.Background())
	assert.ErrorIs(t, err, lib.ErrMailboxNotFound)
	assert.True(t, archive.closed)
	assert.NoFileExists(t, progressFile)
}

func TestNewSessionErrors(t *testing.T) {
	source := mem.New()
	store := state.New("")

	_, err := NewSession(Config{Folder: inbox}, source, nil, nil, store)
	assert.ErrorIs(t, err, lib.ErrNoTarget)

	_, err = NewSession(Config{Folder: inbox, BatchSize: -1}, source, mem.New(), nil, store)
	assert.ErrorIs(t, err, lib.ErrInvalidBatchSize)

	_, err = NewSession(Config{Folder: inbox}, nil, mem.New(), nil, store)
	assert.ErrorIs(t, err, lib.ErrMissingParameter)

	_, err = NewSession(Config{Folder: inbox}, source, mem.New(), nil, nil)
	assert.ErrorIs(t, err, lib.ErrMissingParameter)
}

// rewriteSource changes the list of messages returned by each fetch
type rewriteSource struct {
	Source
	rewrite func(messages []*mailbox.Message) []*mailbox.Message
}

func (s *rewriteSource) FetchMessages(ctx context.Context, ids []mailbox.MessageID, messages chan *mailbox.Message) error {
	defer close(messages)

	receiver := make(chan *mailbox.Message, len(ids))
	err := s.Source.FetchMessages(ctx, ids, receiver)
	list := make([]*mailbox.Message, 0, len(ids))
	for msg := range receiver {
		list = append(list, msg)
	}
	if err != nil {
		return err
	}
	for _, msg := range s.rewrite(list) {
		messages <- msg
	}
	return nil
}

func withoutBody(msg *mailbox.Message) *mailbox.Message {
	return &mailbox.Message{
		MessageProperties: msg.MessageProperties,
		Uid:               msg.Uid,
		Mailbox:           msg.Mailbox,
	}
}

func TestResponseWithoutBodyBeforeFullMessage(t *testing.T) {
	source := &rewriteSource{
		Source: newSource(3),
		rewrite: func(messages []*mailbox.Message) []*mailbox.Message {
			list := make([]*mailbox.Message, 0, len(messages)*2)
			for _, msg := range messages {
				list = append(list, withoutBody(msg), msg)
			}
			return list
		},
	}
	destination := mem.New()
	store := state.New(filepath.Join(t.TempDir(), "progress.json"))

	session, err := NewSession(Config{Folder: inbox}, source, destination, nil, store)
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Statistics{Total: 3, Transferred: 3, Batches: 1}, stats)
	assert.Equal(t, 3, destination.Count(inbox))
	assert.Equal(t, map[state.Kind]int{state.KindTransferred: 3}, loadStore(t, store.Filename()).Count())
}

func TestResponseWithoutBodyStaysPending(t *testing.T) {
	progressFile := filepath.Join(t.TempDir(), "progress.json")
	memSource := newSource(3)
	source := &rewriteSource{
		Source: memSource,
		rewrite: func(messages []*mailbox.Message) []*mailbox.Message {
			// the body of the second message never arrives
			messages[1] = withoutBody(messages[1])
			return messages
		},
	}
	destination := mem.New()

	session, err := NewSession(Config{Folder: inbox}, source, destination, nil, loadStore(t, progressFile))
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Transferred)
	assert.Zero(t, stats.Empty)
	assert.Equal(t, 1, stats.Remaining())

	ids := uintIDs(3)
	store := loadStore(t, progressFile)
	assert.False(t, store.Contains(ids[1]))

	// fetched again on the next run
	spy := &spySource{Source: memSource}
	session, err = NewSession(Config{Folder: inbox}, spy, destination, nil, store)
	require.NoError(t, err)
	stats, err = session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]mailbox.MessageID{{ids[1]}}, spy.fetched)
	assert.Equal(t, 1, stats.Transferred)
	assert.Equal(t, 3, destination.Count(inbox))
}

func TestDuplicateAndUnexpectedMessagesInResponse(t *testing.T) {
	memSource := newSource(6)
	all := uintIDs(6)
	store := state.New(filepath.Join(t.TempDir(), "progress.json"))
	// 4 to 6 are done: only 1 to 3 are requested
	for _, id := range all[3:] {
		store.Record(id, state.Transferred())
	}
	var extra *mailbox.Message
	messages := make(chan *mailbox.Message, 1)
	_, err := memSource.SelectMailbox(inbox)
	require.NoError(t, err)
	require.NoError(t, memSource.FetchMessages(context.Background(), all[4:5], messages))
	extra = <-messages
	require.NotNil(t, extra)

	source := &rewriteSource{
		Source: memSource,
		rewrite: func(messages []*mailbox.Message) []*mailbox.Message {
			duplicate := *messages[0]
			duplicate.Body = io.NopCloser(bytes.NewReader(sourceContent(t, memSource, 0)))
			return append(messages, &duplicate, extra)
		},
	}
	destination := mem.New()

	session, err := NewSession(Config{Folder: inbox, BatchSize: 6}, source, destination, nil, store)
	require.NoError(t, err)
	stats, err := session.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Statistics{Total: 6, Transferred: 3, Skipped: 3, Batches: 1}, stats)
	assert.Equal(t, memSource.Contents(inbox)[:3], destination.Contents(inbox))
	reloaded := loadStore(t, store.Filename())
	assert.Equal(t, all, reloaded.IDs())
	entry, found := reloaded.Get(all[4])
	require.True(t, found)
	assert.Equal(t, state.Transferred(), entry)
}

func sourceContent(t *testing.T, backend *mem.Backend, index int) []byte {
	t.Helper()
	contents := backend.Contents(inbox)
	require.Greater(t, len(contents), index)
	return contents[index]
}
