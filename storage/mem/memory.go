package mem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
)

const Delimiter = "."

// Backend keeps everything in memory. It's safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	data     map[string]*memMailbox
	log      lib.Logger
	selected string
	// fault injection
	failPut   func(count int) error
	putCount  int
	failFetch func(ids []mailbox.MessageID) error
}

func New() *Backend {
	return NewWithLogger(nil)
}

func NewWithLogger(logger lib.Logger) *Backend {
	return &Backend{
		data: make(map[string]*memMailbox),
		log:  lib.LoggerOrDefault(logger),
	}
}

func (m *Backend) Close() error {
	return nil
}

func (m *Backend) Delimiter() string {
	return Delimiter
}

func (m *Backend) SupportMessageID() bool {
	return true
}

// FailPutMessage sets a function called before saving each message. The count starts at 1.
// A non-nil error is returned by PutMessage and the message is not saved.
func (m *Backend) FailPutMessage(fail func(count int) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failPut = fail
	m.putCount = 0
}

// FailFetchMessages sets a function called with the IDs requested by FetchMessages.
// A non-nil error is returned by FetchMessages and no message is sent.
func (m *Backend) FailFetchMessages(fail func(ids []mailbox.MessageID) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failFetch = fail
}

func (m *Backend) CreateMailbox(info mailbox.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)

	if _, ok := m.data[name]; ok {
		// already exists
		return nil
	}

	m.log.Printf("Creating mailbox %q", name)
	m.data[name] = &memMailbox{
		uidValidity: lib.NewUID(),
		messages:    make(map[uint32]*memMessage),
	}
	return nil
}

func (m *Backend) ListMailbox() ([]mailbox.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]mailbox.Info, 0, len(m.data))
	for name := range m.data {
		list = append(list, mailbox.Info{
			Delimiter: Delimiter,
			Name:      name,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (m *Backend) DeleteMailbox(info mailbox.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	delete(m.data, name)
	return nil
}

func (m *Backend) SelectMailbox(info mailbox.Info) (*mailbox.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	mbox, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", lib.ErrMailboxNotFound, name)
	}
	m.selected = name
	return &mailbox.Status{
		Name:        name,
		Messages:    uint32(len(mbox.messages)),
		Unseen:      0,
		UidValidity: mbox.uidValidity,
	}, nil
}

func (m *Backend) ListMessageIDs(ctx context.Context) ([]mailbox.MessageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.selected == "" {
		return nil, lib.ErrNotSelected
	}
	mbox, ok := m.data[m.selected]
	if !ok {
		return nil, fmt.Errorf("%w: %q", lib.ErrMailboxNotFound, m.selected)
	}
	ids := make([]mailbox.MessageID, 0, len(mbox.uids))
	for _, uid := range mbox.uids {
		if _, found := mbox.messages[uid]; found {
			ids = append(ids, mailbox.NewMessageIDFromUint(uid))
		}
	}
	return ids, nil
}

func (m *Backend) PutMessage(info mailbox.Info, props mailbox.MessageProperties, body io.Reader) (mailbox.MessageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	mbox, ok := m.data[name]
	if !ok {
		return mailbox.EmptyMessageID, fmt.Errorf("%w: %q", lib.ErrMailboxNotFound, name)
	}
	buffer := &bytes.Buffer{}
	read, err := buffer.ReadFrom(body)
	if err != nil {
		return mailbox.EmptyMessageID, fmt.Errorf("cannot read message source: %w", err)
	}
	if props.Size > 0 && read != int64(props.Size) {
		return mailbox.EmptyMessageID, fmt.Errorf("message body size advertised as %d bytes but read %d bytes from buffer", props.Size, read)
	}
	if m.failPut != nil {
		m.putCount++
		if err := m.failPut(m.putCount); err != nil {
			return mailbox.EmptyMessageID, err
		}
	}
	uid := mbox.newMessage(buffer.Bytes(), lib.StripRecentFlag(props.Flags), props.InternalDate)
	m.log.Printf("Message saved: mailbox=%q uid=%d size=%d", name, uid, read)
	return mailbox.NewMessageIDFromUint(uid), nil
}

// FetchMessages sends the messages in the order of ids
func (m *Backend) FetchMessages(ctx context.Context, ids []mailbox.MessageID, messages chan *mailbox.Message) error {
	defer close(messages)

	list, err := m.collect(ids)
	if err != nil {
		return err
	}
	for _, message := range list {
		select {
		case messages <- message:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Backend) collect(ids []mailbox.MessageID) ([]*mailbox.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.selected == "" {
		return nil, lib.ErrNotSelected
	}
	if m.failFetch != nil {
		if err := m.failFetch(ids); err != nil {
			return nil, err
		}
	}
	mbox := m.data[m.selected]
	list := make([]*mailbox.Message, 0, len(ids))
	for _, id := range ids {
		if !id.IsUint() {
			continue
		}
		msg, found := mbox.messages[id.AsUint()]
		if !found {
			continue
		}
		list = append(list, &mailbox.Message{
			MessageProperties: mailbox.MessageProperties{
				Flags:        msg.flags,
				InternalDate: msg.date,
				Size:         uint32(len(msg.content)),
			},
			Uid:     id,
			Mailbox: m.selected,
			Body:    io.NopCloser(bytes.NewReader(msg.content)),
		})
	}
	return list, nil
}

func (m *Backend) UnselectMailbox() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.selected = ""
	return nil
}

// Count returns the number of messages in a mailbox
func (m *Backend) Count(info mailbox.Info) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	mbox, ok := m.data[name]
	if !ok {
		return 0
	}
	return len(mbox.messages)
}

// Contents returns the body of every message in a mailbox, in the order they were added
func (m *Backend) Contents(info mailbox.Info) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	mbox, ok := m.data[name]
	if !ok {
		return nil
	}
	contents := make([][]byte, 0, len(mbox.uids))
	for _, uid := range mbox.uids {
		if msg, found := mbox.messages[uid]; found {
			contents = append(contents, msg.content)
		}
	}
	return contents
}

// PutEmptyMessage adds a message without a body, like a server would return for a message it cannot read
func (m *Backend) PutEmptyMessage(info mailbox.Info) mailbox.MessageID {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	mbox, ok := m.data[name]
	if !ok {
		return mailbox.EmptyMessageID
	}
	return mailbox.NewMessageIDFromUint(mbox.newMessage(nil, nil, time.Now()))
}

// SetUidValidity simulates a server renumbering its messages
func (m *Backend) SetUidValidity(info mailbox.Info, uidValidity uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	if mbox, ok := m.data[name]; ok {
		mbox.uidValidity = uidValidity
	}
}

func (m *Backend) GenerateFakeEmails(info mailbox.Info, count uint32, minSize, maxSize int) {
	_ = m.CreateMailbox(info)

	m.mu.Lock()
	defer m.mu.Unlock()

	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	var i uint32
	for i = 1; i <= count; i++ {
		msg := lib.GenerateEmail("user1@example.com", "user2@example.com", i, minSize, maxSize)
		m.data[name].newMessage(
			msg,
			lib.GenerateFlags(5),
			lib.GenerateDateFrom(time.Date(2010, 1, 1, 12, 0, 0, 0, time.Local)),
		)
	}
}
