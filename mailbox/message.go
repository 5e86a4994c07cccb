package mailbox

import (
	"fmt"
	"io"

	"github.com/creativeprojects/refugeemail/lib"
)

type Message struct {
	MessageProperties
	// The message unique identifier in the mailbox it was fetched from.
	Uid MessageID
	// The mailbox the message was fetched from.
	Mailbox string
	// The message body.
	Body io.ReadCloser
}

// ReadBody loads the whole message in memory and closes the body
func (m *Message) ReadBody() ([]byte, error) {
	if m.Body == nil {
		if m.Size > 0 {
			return nil, fmt.Errorf("%w: message %s advertised %d bytes but came without a body", lib.ErrProtocol, m.Uid, m.Size)
		}
		return nil, nil
	}
	defer m.Body.Close()
	raw, err := io.ReadAll(m.Body)
	if err != nil {
		return raw, fmt.Errorf("cannot read message %s: %w", m.Uid, err)
	}
	if m.Size > 0 && len(raw) != int(m.Size) {
		return raw, fmt.Errorf("message %s size advertised as %d bytes but read %d bytes", m.Uid, m.Size, len(raw))
	}
	return raw, nil
}
