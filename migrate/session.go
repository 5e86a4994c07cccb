package migrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/limitio"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/creativeprojects/refugeemail/state"
	"github.com/creativeprojects/refugeemail/storage"
)

// Source is the account the messages are read from
type Source interface {
	SelectMailbox(info mailbox.Info) (*mailbox.Status, error)
	ListMessageIDs(ctx context.Context) ([]mailbox.MessageID, error)
	FetchMessages(ctx context.Context, ids []mailbox.MessageID, messages chan *mailbox.Message) error
	UnselectMailbox() error
}

// Destination is the account the messages are appended to
type Destination interface {
	CreateMailbox(info mailbox.Info) error
	PutMessage(info mailbox.Info, props mailbox.MessageProperties, body io.Reader) (mailbox.MessageID, error)
}

const (
	ModeMigrate = "migrate"
	ModeBackup  = "backup"
)

type Config struct {
	// Folder to migrate from the source
	Folder mailbox.Info
	// Target folder on the destination. The source folder name is used when empty.
	Target mailbox.Info
	// BatchSize defaults to DefaultBatchSize
	BatchSize int
	// MetadataFile keeps the uid validity of the source folder and the history of the runs. Optional.
	MetadataFile string
	// AccountTag of the source, saved in the metadata
	AccountTag string
	// Mode saved in the history of the runs
	Mode string
	// DryRun lists and filters the messages but never fetches nor saves anything
	DryRun bool
	// Limiter of the bandwidth used to send messages to the destination. Optional.
	Limiter *limitio.Limiter
}

type Option func(*Session)

func WithReporter(reporter Reporter) Option {
	return func(s *Session) {
		if reporter != nil {
			s.reporter = reporter
		}
	}
}

func WithCanceller(canceller Canceller) Option {
	return func(s *Session) {
		s.canceller = canceller
	}
}

func WithLogger(logger lib.Logger) Option {
	return func(s *Session) {
		s.log = lib.LoggerOrDefault(logger)
	}
}

// Session is one migration run of a source folder. It owns the archive: it's closed at the end of Run.
type Session struct {
	config      Config
	source      Source
	destination Destination
	archive     storage.Archive
	store       *state.Store
	metadata    *state.Metadata
	reporter    Reporter
	canceller   Canceller
	log         lib.Logger
	selected    bool
	finished    bool
	// entries recorded since the last time the store was saved
	unsaved     int
}

// NewSession prepares a run. destination or archive can be nil, but not both unless it's a dry run.
func NewSession(config Config, source Source, destination Destination, archive storage.Archive, store *state.Store, options ...Option) (*Session, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: source", lib.ErrMissingParameter)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: progress store", lib.ErrMissingParameter)
	}
	if destination == nil && archive == nil && !config.DryRun {
		return nil, lib.ErrNoTarget
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BatchSize < 0 {
		return nil, fmt.Errorf("%w: %d", lib.ErrInvalidBatchSize, config.BatchSize)
	}
	if config.Target.Name == "" {
		config.Target = config.Folder
	}
	if config.Mode == "" {
		config.Mode = ModeMigrate
	}
	session := &Session{
		config:      config,
		source:      source,
		destination: destination,
		archive:     archive,
		store:       store,
		reporter:    noReport{},
		log:         &lib.NoLog{},
	}
	for _, option := range options {
		option(session)
	}
	return session, nil
}

// Run transfers the messages not already in the progress store, one batch at a time.
// A cancelled run returns no error.
func (s *Session) Run(ctx context.Context) (Statistics, error) {
	stats := Statistics{}
	if s.finished {
		return stats, errors.New("a session can only run once")
	}
	start := time.Now()
	err := s.run(ctx, &stats)
	finalizeErr := s.finalize(start, &stats, err)
	if err != nil {
		return stats, errors.Join(err, finalizeErr)
	}
	return stats, finalizeErr
}

func (s *Session) run(ctx context.Context, stats *Statistics) error {
	status, err := s.source.SelectMailbox(s.config.Folder)
	if err != nil {
		return fmt.Errorf("cannot select source folder %q: %w", s.config.Folder.Name, err)
	}
	s.selected = true

	err = s.checkUidValidity(status)
	if err != nil {
		return err
	}

	ids, err := s.source.ListMessageIDs(ctx)
	if err != nil {
		return fmt.Errorf("cannot list messages in source folder %q: %w", s.config.Folder.Name, err)
	}
	ids = Deduplicate(ids)
	stats.Total = len(ids)
	s.log.Printf("%d messages in source folder %q, %d already done", len(ids), s.config.Folder.Name, s.store.Len())
	s.reporter.Start(*stats)

	if s.destination != nil && !s.config.DryRun {
		err = s.destination.CreateMailbox(s.config.Target)
		if err != nil {
			return fmt.Errorf("cannot create destination folder %q: %w", s.config.Target.Name, err)
		}
	}

	batcher, err := NewBatcher(ids, s.config.BatchSize)
	if err != nil {
		return err
	}
	for {
		if s.cancelled(stats) {
			break
		}
		batch, ok := batcher.Next()
		if !ok {
			break
		}
		err = s.runBatch(ctx, batch, stats)
		if err != nil {
			return err
		}
		stats.Batches++
		s.reporter.Update(*stats)
	}
	return nil
}

// runBatch fetches and commits the messages of a batch that are not done yet, then saves the progress
func (s *Session) runBatch(ctx context.Context, batch []mailbox.MessageID, stats *Statistics) error {
	pending := make([]mailbox.MessageID, 0, len(batch))
	for _, id := range batch {
		if s.store.Contains(id) {
			stats.Skipped++
			continue
		}
		pending = append(pending, id)
	}
	s.log.Printf("batch %d: %d messages to transfer, %d already done", stats.Batches+1, len(pending), len(batch)-len(pending))
	if len(pending) == 0 || s.config.DryRun {
		return nil
	}

	messages, err := s.fetch(ctx, pending)
	if err != nil {
		return err
	}

	recorded, err := s.commit(ctx, pending, messages, stats)
	if err != nil {
		return err
	}
	if recorded == 0 {
		return nil
	}
	if s.archive != nil {
		err = s.archive.Flush()
		if err != nil {
			return fmt.Errorf("cannot flush local archive: %w", err)
		}
	}
	err = s.store.Persist()
	if err != nil {
		return err
	}
	s.unsaved = 0
	return nil
}

// fetch loads all the messages of the batch in one call
func (s *Session) fetch(ctx context.Context, ids []mailbox.MessageID) ([]*mailbox.Message, error) {
	receiver := make(chan *mailbox.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- s.source.FetchMessages(ctx, ids, receiver)
	}()

	messages := make([]*mailbox.Message, 0, len(ids))
	for msg := range receiver {
		messages = append(messages, msg)
	}
	// wait until all the messages arrived
	err := <-done
	if err != nil {
		closeBodies(messages)
		return nil, fmt.Errorf("cannot fetch messages from source folder %q: %w", s.config.Folder.Name, err)
	}
	if len(messages) < len(ids) {
		s.log.Printf("%d messages were not returned by the source", len(ids)-len(messages))
	}
	return messages, nil
}

// commit sends the messages to the destination and/or the archive, in the order they were fetched
func (s *Session) commit(ctx context.Context, requested []mailbox.MessageID, messages []*mailbox.Message, stats *Statistics) (int, error) {
	wanted := make(map[mailbox.MessageID]struct{}, len(requested))
	for _, id := range requested {
		wanted[id] = struct{}{}
	}
	recorded := 0
	for index, msg := range messages {
		if s.cancelled(stats) {
			closeBodies(messages[index:])
			break
		}
		if _, found := wanted[msg.Uid]; !found {
			s.log.Printf("ignoring message %s: not requested", msg.Uid)
			closeBody(msg)
			continue
		}
		if s.store.Contains(msg.Uid) {
			// same message returned twice
			closeBody(msg)
			continue
		}
		if msg.Body == nil {
			// partial response (flags only): the message stays pending until its body arrives
			s.log.Printf("ignoring message %s: no body in the response", msg.Uid)
			continue
		}
		entry, err := s.commitMessage(ctx, msg)
		if err != nil {
			closeBodies(messages[index+1:])
			return recorded, err
		}
		s.store.Record(msg.Uid, entry)
		s.unsaved++
		recorded++
		if entry.Kind() == state.KindSkipped {
			stats.Empty++
		} else {
			stats.Transferred++
		}
		s.reporter.Update(*stats)
	}
	return recorded, nil
}

// commitMessage appends to the destination first, then to the archive
func (s *Session) commitMessage(ctx context.Context, msg *mailbox.Message) (state.Entry, error) {
	raw, err := msg.ReadBody()
	if err != nil {
		return state.Entry{}, err
	}
	if len(raw) == 0 && msg.Size == 0 {
		s.log.Printf("message %s has no content", msg.Uid)
		return state.Skipped(), nil
	}
	props := mailbox.MessageProperties{
		Flags:        lib.StripRecentFlag(msg.Flags),
		InternalDate: msg.InternalDate,
		Size:         uint32(len(raw)),
	}

	if s.destination != nil {
		body := s.config.Limiter.Reader(ctx, bytes.NewReader(raw))
		_, err = s.destination.PutMessage(s.config.Target, props, body)
		if err != nil {
			return state.Entry{}, fmt.Errorf("cannot append message %s to destination folder %q: %w", msg.Uid, s.config.Target.Name, err)
		}
	}

	if s.archive == nil {
		return state.Transferred(), nil
	}
	key, err := s.archive.Append(&mailbox.Message{
		MessageProperties: props,
		Uid:               msg.Uid,
		Mailbox:           msg.Mailbox,
		Body:              io.NopCloser(bytes.NewReader(raw)),
	})
	if err != nil {
		return state.Entry{}, fmt.Errorf("cannot save message %s in local archive: %w", msg.Uid, err)
	}
	return state.Archived(key), nil
}

// finalize closes the archive then saves the progress. It runs after an error or a cancellation too.
func (s *Session) finalize(start time.Time, stats *Statistics, runErr error) error {
	s.finished = true
	var errs []error

	committed := true
	if s.archive != nil {
		err := s.archive.Close()
		if err != nil {
			// the messages recorded since the last flush may not be on disk
			committed = false
			errs = append(errs, fmt.Errorf("cannot close local archive: %w", err))
		}
	}
	if committed && s.unsaved > 0 && !s.config.DryRun {
		if err := s.store.Persist(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.metadata != nil && !s.config.DryRun {
		run := state.Run{
			Date:        start,
			Mode:        s.config.Mode,
			Total:       stats.Total,
			Transferred: stats.Transferred,
			Skipped:     stats.Skipped,
			Cancelled:   stats.Cancelled,
		}
		if runErr != nil {
			run.Error = runErr.Error()
		}
		s.metadata.AddRun(run)
		if err := state.SaveMetadata(s.config.MetadataFile, s.metadata); err != nil {
			errs = append(errs, err)
		}
	}
	if s.selected {
		if err := s.source.UnselectMailbox(); err != nil {
			s.log.Printf("cannot unselect source folder: %s", err)
		}
	}
	s.log.Printf("run finished in %s: %+v", time.Since(start).Truncate(time.Millisecond), *stats)
	s.reporter.Finish(*stats)
	return errors.Join(errs...)
}

// checkUidValidity refuses to resume when the source folder has been renumbered since the last run
func (s *Session) checkUidValidity(status *mailbox.Status) error {
	if s.config.MetadataFile == "" {
		return nil
	}
	metadata, err := state.LoadMetadata(s.config.MetadataFile)
	if err != nil {
		return err
	}
	uidValidity := uint32(0)
	if status != nil {
		uidValidity = status.UidValidity
	}
	if metadata.UidValidity != 0 && uidValidity != 0 && metadata.UidValidity != uidValidity && s.store.Len() > 0 {
		return fmt.Errorf("%w: folder %q had uid validity %d, it's now %d. Remove %q to start again from scratch",
			lib.ErrUidValidityChanged, s.config.Folder.Name, metadata.UidValidity, uidValidity, s.store.Filename())
	}
	metadata.AccountTag = s.config.AccountTag
	metadata.Folder = s.config.Folder.Name
	if uidValidity != 0 {
		metadata.UidValidity = uidValidity
	}
	s.metadata = metadata
	return nil
}

func (s *Session) cancelled(stats *Statistics) bool {
	if stats.Cancelled {
		return true
	}
	if s.canceller != nil && s.canceller.Cancelled() {
		s.log.Print("run cancelled by the operator")
		stats.Cancelled = true
	}
	return stats.Cancelled
}

func closeBody(msg *mailbox.Message) {
	if msg != nil && msg.Body != nil {
		_ = msg.Body.Close()
	}
}

func closeBodies(messages []*mailbox.Message) {
	for _, msg := range messages {
		closeBody(msg)
	}
}
