package migrate

import (
	"fmt"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
)

// DefaultBatchSize is the number of messages fetched and committed together
const DefaultBatchSize = 10

// Deduplicate returns the IDs in the same order, keeping only the first occurrence of each one
func Deduplicate(ids []mailbox.MessageID) []mailbox.MessageID {
	seen := make(map[mailbox.MessageID]struct{}, len(ids))
	output := make([]mailbox.MessageID, 0, len(ids))
	for _, id := range ids {
		if _, found := seen[id]; found {
			continue
		}
		seen[id] = struct{}{}
		output = append(output, id)
	}
	return output
}

// Batcher splits a list of IDs into contiguous batches of the same size. The last one holds the remainder.
type Batcher struct {
	ids      []mailbox.MessageID
	size     int
	position int
}

func NewBatcher(ids []mailbox.MessageID, size int) (*Batcher, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", lib.ErrInvalidBatchSize, size)
	}
	return &Batcher{
		ids:  ids,
		size: size,
	}, nil
}

// Next returns a copy of the next batch, or false when there's nothing left
func (b *Batcher) Next() ([]mailbox.MessageID, bool) {
	if b.position >= len(b.ids) {
		return nil, false
	}
	end := b.position + b.size
	if end > len(b.ids) {
		end = len(b.ids)
	}
	batch := make([]mailbox.MessageID, end-b.position)
	copy(batch, b.ids[b.position:end])
	b.position = end
	return batch, true
}

// Count returns the total number of batches
func (b *Batcher) Count() int {
	return (len(b.ids) + b.size - 1) / b.size
}
