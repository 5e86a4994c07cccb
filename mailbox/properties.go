package mailbox

import "time"

type MessageProperties struct {
	// The message flags.
	Flags []string
	// The date the message was received by the server. It's appended verbatim to the destination.
	InternalDate time.Time
	// The message size.
	Size uint32
}
