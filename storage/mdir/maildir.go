package mdir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/emersion/go-maildir"
)

const Delimiter = "."

type Maildir struct {
	root     string
	log      lib.Logger
	selected string
}

func New(root string) (*Maildir, error) {
	return NewWithLogger(root, nil)
}

func NewWithLogger(root string, logger lib.Logger) (*Maildir, error) {
	if runtime.GOOS == "windows" {
		return nil, errors.New("maildir is not supported on Windows")
	}
	if root == "" {
		return nil, fmt.Errorf("%w: maildir root directory", lib.ErrMissingParameter)
	}
	err := os.MkdirAll(root, 0700)
	if err != nil {
		return nil, err
	}

	return &Maildir{
		root: root,
		log:  lib.LoggerOrDefault(logger),
	}, nil
}

func (m *Maildir) Close() error {
	return nil
}

func (m *Maildir) Root() string {
	return m.root
}

func (m *Maildir) Delimiter() string {
	return Delimiter
}

func (m *Maildir) SupportMessageID() bool {
	return true
}

// CreateMailbox doesn't return an error if the mailbox already exists
func (m *Maildir) CreateMailbox(info mailbox.Info) error {
	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	dirName := filepath.Join(m.root, name)
	if _, err := os.Stat(dirName); err == nil || errors.Is(err, fs.ErrExist) {
		// mailbox already exists
		return nil
	}
	mbox := maildir.Dir(dirName)
	err := mbox.Init()
	if err != nil {
		return err
	}
	m.log.Printf("Created mailbox %q", name)
	// default status on new mailbox
	return m.setMailboxStatus(name, mailbox.Status{
		Name:        name,
		UidValidity: lib.NewUID(),
	})
}

func (m *Maildir) ListMailbox() ([]mailbox.Info, error) {
	list := make([]mailbox.Info, 0)
	files, err := os.ReadDir(m.root)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if !file.IsDir() {
			continue
		}
		list = append(list, mailbox.Info{
			Delimiter: Delimiter,
			Name:      file.Name(),
		})
	}
	return list, nil
}

func (m *Maildir) DeleteMailbox(info mailbox.Info) error {
	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	_ = os.Remove(m.statusFile(name))
	return os.RemoveAll(filepath.Join(m.root, name))
}

func (m *Maildir) SelectMailbox(info mailbox.Info) (*mailbox.Status, error) {
	name := lib.VerifyDelimiter(info.Name, info.Delimiter, m.Delimiter())
	if !m.mailboxExists(name) {
		return nil, fmt.Errorf("%w: %q", lib.ErrMailboxNotFound, name)
	}
	m.selected = name
	return m.getMailboxStatus(name)
}

func (m *Maildir) PutMessage(info mailbox.Info, props mailbox.MessageProperties, body io.Reader) (mailbox.MessageID, error) {
	name := lib.VerifyDelimiter(info.Name, info.Delimiter, Delimiter)
	if !m.mailboxExists(name) {
		return mailbox.EmptyMessageID, fmt.Errorf("%w: %q", lib.ErrMailboxNotFound, name)
	}
	mbox := maildir.Dir(filepath.Join(m.root, name))
	msg, copied, err := m.createFromStream(mbox, props.Flags, body)
	if err != nil {
		return mailbox.EmptyMessageID, err
	}
	if props.Size > 0 && copied != int64(props.Size) {
		// delete the message
		filename := msg.Filename()
		_ = os.Remove(filename)
		return mailbox.EmptyMessageID, fmt.Errorf("message body size advertised as %d bytes but read %d bytes from buffer", props.Size, copied)
	}
	m.log.Printf("Message saved: mailbox=%q key=%q size=%d flags=%v date=%q", name, msg.Key(), copied, props.Flags, props.InternalDate)

	// the modification time keeps the internal date
	if !props.InternalDate.IsZero() {
		_ = os.Chtimes(msg.Filename(), time.Now(), props.InternalDate)
	}

	status, err := m.getMailboxStatus(name)
	if err != nil {
		return mailbox.EmptyMessageID, err
	}
	status.Messages++
	err = m.setMailboxStatus(name, *status)
	if err != nil {
		return mailbox.EmptyMessageID, err
	}
	return mailbox.NewMessageIDFromString(msg.Key()), nil
}

func (m *Maildir) createFromStream(mbox maildir.Dir, flags []string, body io.Reader) (*maildir.Message, int64, error) {
	msg, writer, err := mbox.Create(toFlags(flags))
	if err != nil {
		return msg, 0, err
	}
	defer writer.Close()
	copied, err := io.Copy(writer, body)
	if err != nil {
		return msg, copied, err
	}
	return msg, copied, nil
}

type indexedMessage struct {
	msg  *maildir.Message
	info fs.FileInfo
}

// index returns the messages of the selected mailbox by internal date, then by key
func (m *Maildir) index(ctx context.Context) ([]indexedMessage, error) {
	if m.selected == "" {
		return nil, lib.ErrNotSelected
	}
	mbox := maildir.Dir(filepath.Join(m.root, m.selected))
	msgs, err := mbox.Messages()
	if err != nil {
		return nil, err
	}
	index := make([]indexedMessage, 0, len(msgs))
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		filename := msg.Filename()
		info, err := os.Stat(filename)
		if err != nil {
			return nil, fmt.Errorf("cannot stat %q: %w", filename, err)
		}
		index = append(index, indexedMessage{msg: msg, info: info})
	}
	sort.SliceStable(index, func(i, j int) bool {
		if index[i].info.ModTime().Equal(index[j].info.ModTime()) {
			return index[i].msg.Key() < index[j].msg.Key()
		}
		return index[i].info.ModTime().Before(index[j].info.ModTime())
	})
	return index, nil
}

func (m *Maildir) ListMessageIDs(ctx context.Context) ([]mailbox.MessageID, error) {
	index, err := m.index(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]mailbox.MessageID, len(index))
	for i, item := range index {
		ids[i] = mailbox.NewMessageIDFromString(item.msg.Key())
	}
	return ids, nil
}

// FetchMessages sends the messages in the order of ids
func (m *Maildir) FetchMessages(ctx context.Context, ids []mailbox.MessageID, messages chan *mailbox.Message) error {
	defer close(messages)

	index, err := m.index(ctx)
	if err != nil {
		return err
	}
	byKey := make(map[string]indexedMessage, len(index))
	for _, item := range index {
		byKey[item.msg.Key()] = item
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		item, found := byKey[id.AsString()]
		if !found {
			continue
		}
		file, err := item.msg.Open()
		if err != nil {
			return fmt.Errorf("cannot open key %q: %w", item.msg.Key(), err)
		}
		messages <- &mailbox.Message{
			MessageProperties: mailbox.MessageProperties{
				Flags:        flagsToStrings(item.msg.Flags()),
				InternalDate: item.info.ModTime(),
				Size:         uint32(item.info.Size()),
			},
			Uid:     id,
			Mailbox: m.selected,
			Body:    file,
		}
	}
	return nil
}

func (m *Maildir) UnselectMailbox() error {
	m.selected = ""
	return nil
}

func (m *Maildir) mailboxExists(name string) bool {
	stat, err := os.Stat(filepath.Join(m.root, name))
	if err != nil {
		return false
	}
	return stat.IsDir()
}

func (m *Maildir) statusFile(name string) string {
	return filepath.Join(m.root, name+".json")
}

func (m *Maildir) setMailboxStatus(name string, status mailbox.Status) error {
	file, err := os.Create(m.statusFile(name))
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	err = encoder.Encode(status)
	if err != nil {
		return err
	}

	return nil
}

func (m *Maildir) getMailboxStatus(name string) (*mailbox.Status, error) {
	file, err := os.Open(m.statusFile(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", lib.ErrStatusNotFound, err)
	}
	defer file.Close()

	status := &mailbox.Status{}
	decoder := json.NewDecoder(file)
	err = decoder.Decode(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", lib.ErrStatusNotFound, err)
	}

	return status, nil
}
