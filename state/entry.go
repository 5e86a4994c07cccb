package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/creativeprojects/refugeemail/mailbox"
)

// Kind of progress entry
type Kind int

const (
	// KindTransferred means the message was committed to the destination and no local copy was kept
	KindTransferred Kind = iota
	// KindArchived means the message was committed and a copy is available in the local archive
	KindArchived
	// KindSkipped means the message was fetched but had nothing worth committing
	KindSkipped
)

func (k Kind) String() string {
	switch k {
	case KindTransferred:
		return "transferred"
	case KindArchived:
		return "archived"
	case KindSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Entry is the value recorded against a source message ID once it's done
type Entry struct {
	kind Kind
	key  mailbox.MessageID
}

// Archived entry pointing at the key of the message in the local archive.
// An empty key gives a Transferred entry.
func Archived(key mailbox.MessageID) Entry {
	if key.IsZero() {
		return Transferred()
	}
	return Entry{kind: KindArchived, key: key}
}

// Transferred entry: done, no local copy
func Transferred() Entry {
	return Entry{kind: KindTransferred}
}

// Skipped entry: done, nothing was committed
func Skipped() Entry {
	return Entry{kind: KindSkipped}
}

func (e Entry) Kind() Kind {
	return e.kind
}

// Key in the local archive. It's only set for an archived entry.
func (e Entry) Key() mailbox.MessageID {
	return e.key
}

func (e Entry) String() string {
	if e.kind == KindArchived {
		return e.kind.String() + ":" + e.key.String()
	}
	return e.kind.String()
}

// MarshalJSON encodes an archived key as a number or a string, Transferred as 0 and Skipped as null
func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case KindArchived:
		return e.key.MarshalJSON()
	case KindTransferred:
		return []byte("0"), nil
	case KindSkipped:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("cannot encode entry of kind %s", e.kind)
	}
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("0")) {
		*e = Transferred()
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*e = Skipped()
		return nil
	}
	var key mailbox.MessageID
	if err := json.Unmarshal(data, &key); err != nil {
		return err
	}
	if key.IsZero() {
		return fmt.Errorf("invalid archive key %s", data)
	}
	*e = Archived(key)
	return nil
}
