package mailbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	EmptyMessageID MessageID
)

// MessageID is either a numeric UID (IMAP, bolt, mbox position) or a string key (maildir).
// It's comparable and can be used as a map key.
type MessageID struct {
	uid uint32
	key string
}

func NewMessageIDFromUint(uid uint32) MessageID {
	return MessageID{
		uid: uid,
	}
}

func NewMessageIDFromString(key string) MessageID {
	return MessageID{
		key: key,
	}
}

func (i MessageID) IsZero() bool {
	return i.uid == 0 && i.key == ""
}

func (i MessageID) IsUint() bool {
	return i.uid > 0
}

func (i MessageID) IsString() bool {
	return i.key != ""
}

func (i MessageID) AsUint() uint32 {
	return i.uid
}

func (i MessageID) AsString() string {
	return i.key
}

func (i MessageID) String() string {
	if i.IsUint() {
		return strconv.FormatUint(uint64(i.uid), 10)
	}
	return i.key
}

// MarshalJSON encodes a numeric ID as a JSON number and a string key as a JSON string.
// The zero ID is encoded as null.
func (i MessageID) MarshalJSON() ([]byte, error) {
	switch {
	case i.IsUint():
		return []byte(strconv.FormatUint(uint64(i.uid), 10)), nil
	case i.IsString():
		return json.Marshal(i.key)
	default:
		return []byte("null"), nil
	}
}

func (i *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty message ID")
	}
	if bytes.Equal(data, []byte("null")) {
		*i = EmptyMessageID
		return nil
	}
	if data[0] == '"' {
		var key string
		if err := json.Unmarshal(data, &key); err != nil {
			return err
		}
		*i = NewMessageIDFromString(key)
		return nil
	}
	uid, err := strconv.ParseUint(string(data), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid message ID %s: %w", data, err)
	}
	*i = NewMessageIDFromUint(uint32(uid))
	return nil
}
