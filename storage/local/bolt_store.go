package local

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	bolt "go.etcd.io/bbolt"
)

const (
	metadataBucket  = "metadata"
	mailboxBucket   = "mailbox"
	infoKey         = "info"
	statusKey       = "status"
	bodyPrefix      = "body-"
	msgPrefix       = "msg-"
	versionKey      = "version"
	boltFileVersion = 2
	openTimeout     = 3 * time.Second
)

type msgProps struct {
	Flags []string
	Date  time.Time
	Size  uint32
}

// BoltStore keeps the mailboxes in a single bbolt file. The file is locked while it's open.
type BoltStore struct {
	dbFile   string
	db       *bolt.DB
	log      lib.Logger
	selected string
}

func NewBoltStore(filename string) (*BoltStore, error) {
	return NewBoltStoreWithLogger(filename, nil)
}

func NewBoltStoreWithLogger(filename string, logger lib.Logger) (*BoltStore, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: database file name", lib.ErrMissingParameter)
	}
	options := *bolt.DefaultOptions
	options.Timeout = openTimeout

	err := os.MkdirAll(filepath.Dir(filename), 0700)
	if err != nil {
		return nil, fmt.Errorf("cannot open %q: %w", filename, err)
	}

	db, err := bolt.Open(filename, 0600, &options)
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", lib.ErrArchiveLocked, filename)
		}
		return nil, err
	}

	store := &BoltStore{
		dbFile: filename,
		db:     db,
		log:    lib.LoggerOrDefault(logger),
	}
	err = store.init()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *BoltStore) Delimiter() string {
	return "."
}

func (s *BoltStore) SupportMessageID() bool {
	return true
}

func (s *BoltStore) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if existing := bucket.Get([]byte(versionKey)); existing != nil {
			version, err := DeserializeInt(existing)
			if err != nil {
				return err
			}
			if version != boltFileVersion {
				return fmt.Errorf("unsupported file version %d (expected %d)", version, boltFileVersion)
			}
			return nil
		}
		version, err := SerializeInt(boltFileVersion)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(versionKey), version)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) CreateMailbox(info mailbox.Info) error {
	// Start the transaction.
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Setup the mailbox bucket.
	root, err := tx.CreateBucketIfNotExists([]byte(mailboxBucket))
	if err != nil {
		return err
	}

	info = mailbox.ChangeDelimiter(info, s.Delimiter())

	bucket, err := root.CreateBucket([]byte(info.Name))
	if err != nil {
		if errors.Is(err, bolt.ErrBucketExists) {
			// don't return an error when the bucket exists
			return nil
		}
		return err
	}

	err = setMailboxInfo(bucket, info)
	if err != nil {
		return err
	}

	// default status on empty mailbox
	status := mailbox.Status{
		Name:        info.Name,
		UidValidity: lib.NewUID(),
	}
	err = setMailboxStatus(bucket, status)
	if err != nil {
		return err
	}

	// Commit the transaction.
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Printf("Created mailbox %q", info.Name)
	return nil
}

func (s *BoltStore) ListMailbox() ([]mailbox.Info, error) {
	list := make([]mailbox.Info, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(mailboxBucket))
		if bucket == nil {
			return nil
		}
		err := bucket.ForEach(func(k, v []byte) error {
			// if there's a value it's not a bucket
			if v != nil {
				return nil
			}
			entry := bucket.Bucket(k)
			if entry == nil {
				return nil
			}
			info, err := getMailboxInfo(entry)
			if err != nil {
				return err
			}
			list = append(list, *info)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *BoltStore) DeleteMailbox(info mailbox.Info) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(mailboxBucket))
		if bucket == nil {
			return nil
		}
		name := lib.VerifyDelimiter(info.Name, info.Delimiter, s.Delimiter())

		return bucket.DeleteBucket([]byte(name))
	})
}

func (s *BoltStore) SelectMailbox(info mailbox.Info) (*mailbox.Status, error) {
	var status *mailbox.Status
	name := lib.VerifyDelimiter(info.Name, info.Delimiter, s.Delimiter())

	err := s.db.View(func(tx *bolt.Tx) error {
		mbox, err := getMailboxBucket(tx, name)
		if err != nil {
			return err
		}
		status, err = getMailboxStatus(mbox)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.selected = name
	return status, nil
}

func (s *BoltStore) PutMessage(info mailbox.Info, props mailbox.MessageProperties, body io.Reader) (mailbox.MessageID, error) {
	var messageID mailbox.MessageID
	name := lib.VerifyDelimiter(info.Name, info.Delimiter, s.Delimiter())
	err := s.db.Update(func(tx *bolt.Tx) error {
		mbox, err := getMailboxBucket(tx, name)
		if err != nil {
			return err
		}
		status, err := getMailboxStatus(mbox)
		if err != nil {
			return err
		}
		uid, err := mbox.NextSequence()
		if err != nil {
			return fmt.Errorf("cannot get next message ID: %w", err)
		}
		messageID = mailbox.NewMessageIDFromUint(uint32(uid))
		buffer := &bytes.Buffer{}
		writer := zlib.NewWriter(buffer)
		read, err := io.Copy(writer, body)
		if err != nil {
			return fmt.Errorf("cannot read message body: %w", err)
		}
		err = writer.Close()
		if err != nil {
			return fmt.Errorf("error closing zlib writer: %w", err)
		}
		if props.Size > 0 && read != int64(props.Size) {
			return fmt.Errorf("message body size advertised as %d bytes but read %d bytes from buffer", props.Size, read)
		}
		err = mbox.Put(SerializeUID(bodyPrefix, uid), buffer.Bytes())
		if err != nil {
			return fmt.Errorf("cannot save message body: %w", err)
		}
		s.log.Printf("Message saved: mailbox=%q uid=%d size=%d flags=%+v", name, uid, read, props.Flags)

		err = storeUID(mbox, msgPrefix, uid, &msgProps{
			Flags: lib.StripRecentFlag(props.Flags),
			Date:  props.InternalDate,
			Size:  uint32(read),
		})
		if err != nil {
			return err
		}

		status.Messages++
		return setMailboxStatus(mbox, *status)
	})
	if err != nil {
		return mailbox.EmptyMessageID, err
	}
	return messageID, nil
}

func (s *BoltStore) ListMessageIDs(ctx context.Context) ([]mailbox.MessageID, error) {
	if s.selected == "" {
		return nil, lib.ErrNotSelected
	}
	ids := make([]mailbox.MessageID, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		mbox, err := getMailboxBucket(tx, s.selected)
		if err != nil {
			return err
		}
		prefix := []byte(msgPrefix)
		cursor := mbox.Cursor()
		for key, _ := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, _ = cursor.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ids = append(ids, mailbox.NewMessageIDFromUint(uint32(DeserializeUID(msgPrefix, key))))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FetchMessages loads the messages in memory before sending them: data from bolt is only valid inside the transaction
func (s *BoltStore) FetchMessages(ctx context.Context, ids []mailbox.MessageID, messages chan *mailbox.Message) error {
	defer close(messages)

	if s.selected == "" {
		return lib.ErrNotSelected
	}
	name := s.selected
	list := make([]*mailbox.Message, 0, len(ids))

	err := s.db.View(func(tx *bolt.Tx) error {
		mbox, err := getMailboxBucket(tx, name)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if !id.IsUint() {
				continue
			}
			uid := uint64(id.AsUint())
			value := mbox.Get(SerializeUID(bodyPrefix, uid))
			if value == nil {
				continue
			}
			properties := &msgProps{}
			if propsData := mbox.Get(SerializeUID(msgPrefix, uid)); propsData != nil {
				properties, err = DeserializeObject[msgProps](propsData)
				if err != nil {
					return err
				}
			}
			// uncompress data
			reader, err := zlib.NewReader(bytes.NewReader(value))
			if err != nil {
				return fmt.Errorf("cannot read message %d: %w", uid, err)
			}
			raw, err := io.ReadAll(reader)
			reader.Close()
			if err != nil {
				return fmt.Errorf("cannot read message %d: %w", uid, err)
			}
			list = append(list, &mailbox.Message{
				MessageProperties: mailbox.MessageProperties{
					Flags:        properties.Flags,
					Size:         properties.Size,
					InternalDate: properties.Date,
				},
				Uid:     id,
				Mailbox: name,
				Body:    io.NopCloser(bytes.NewReader(raw)),
			})
		}
		return nil
	})
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

func (s *BoltStore) UnselectMailbox() error {
	s.selected = ""
	return nil
}

func getMailboxBucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	bucket := tx.Bucket([]byte(mailboxBucket))
	if bucket == nil {
		return nil, fmt.Errorf("%w: %q", lib.ErrMailboxNotFound, name)
	}
	mbox := bucket.Bucket([]byte(name))
	if mbox == nil {
		return nil, fmt.Errorf("%w: %q", lib.ErrMailboxNotFound, name)
	}
	return mbox, nil
}

func setMailboxInfo(bucket *bolt.Bucket, info mailbox.Info) error {
	data, err := SerializeObject(&info)
	if err != nil {
		return err
	}

	err = bucket.Put([]byte(infoKey), data)
	if err != nil {
		return err
	}

	return nil
}

func getMailboxInfo(bucket *bolt.Bucket) (*mailbox.Info, error) {
	data := bucket.Get([]byte(infoKey))
	if data == nil {
		return nil, lib.ErrInfoNotFound
	}
	info, err := DeserializeObject[mailbox.Info](data)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func setMailboxStatus(bucket *bolt.Bucket, status mailbox.Status) error {
	data, err := SerializeObject(&status)
	if err != nil {
		return err
	}

	err = bucket.Put([]byte(statusKey), data)
	if err != nil {
		return err
	}

	return nil
}

func getMailboxStatus(bucket *bolt.Bucket) (*mailbox.Status, error) {
	data := bucket.Get([]byte(statusKey))
	if data == nil {
		return nil, lib.ErrStatusNotFound
	}
	info, err := DeserializeObject[mailbox.Status](data)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func storeUID[T any](bucket *bolt.Bucket, prefix string, uid uint64, data *T) error {
	serialized, err := SerializeObject(data)
	if err != nil {
		return err
	}
	err = bucket.Put(SerializeUID(prefix, uid), serialized)
	if err != nil {
		return err
	}
	return nil
}
