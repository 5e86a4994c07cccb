package migrate

import (
	"fmt"
	"testing"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringIDs(keys ...string) []mailbox.MessageID {
	ids := make([]mailbox.MessageID, len(keys))
	for i, key := range keys {
		ids[i] = mailbox.NewMessageIDFromString(key)
	}
	return ids
}

func uintIDs(count int) []mailbox.MessageID {
	ids := make([]mailbox.MessageID, count)
	for i := range ids {
		ids[i] = mailbox.NewMessageIDFromUint(uint32(i + 1))
	}
	return ids
}

func TestDeduplicate(t *testing.T) {
	fixtures := []struct {
		input    []mailbox.MessageID
		expected []mailbox.MessageID
	}{
		{stringIDs("a", "b", "a", "c", "b"), stringIDs("a", "b", "c")},
		{stringIDs("a", "a", "a"), stringIDs("a")},
		{stringIDs("c", "b", "a"), stringIDs("c", "b", "a")},
		{nil, stringIDs()},
		{stringIDs(), stringIDs()},
		{
			[]mailbox.MessageID{mailbox.NewMessageIDFromUint(1), mailbox.NewMessageIDFromString("1"), mailbox.NewMessageIDFromUint(1)},
			[]mailbox.MessageID{mailbox.NewMessageIDFromUint(1), mailbox.NewMessageIDFromString("1")},
		},
	}

	for _, fixture := range fixtures {
		t.Run(fmt.Sprintf("%v", fixture.input), func(t *testing.T) {
			output := Deduplicate(fixture.input)
			assert.NotNil(t, output)
			assert.Equal(t, fixture.expected, output)
		})
	}
}

func TestBatcher(t *testing.T) {
	fixtures := []struct {
		length  int
		size    int
		batches []int
	}{
		{23, 10, []int{10, 10, 3}},
		{20, 10, []int{10, 10}},
		{3, 10, []int{3}},
		{1, 1, []int{1}},
		{5, 1, []int{1, 1, 1, 1, 1}},
		{0, 10, []int{}},
	}

	for _, fixture := range fixtures {
		t.Run(fmt.Sprintf("L=%d N=%d", fixture.length, fixture.size), func(t *testing.T) {
			ids := uintIDs(fixture.length)
			batcher, err := NewBatcher(ids, fixture.size)
			require.NoError(t, err)
			assert.Equal(t, len(fixture.batches), batcher.Count())

			lengths := make([]int, 0)
			all := make([]mailbox.MessageID, 0, fixture.length)
			for batch, ok := batcher.Next(); ok; batch, ok = batcher.Next() {
				lengths = append(lengths, len(batch))
				all = append(all, batch...)
			}
			assert.Equal(t, fixture.batches, lengths)
			assert.Equal(t, ids, all)

			// stays exhausted
			_, ok := batcher.Next()
			assert.False(t, ok)
		})
	}
}

func TestBatcherInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		batcher, err := NewBatcher(uintIDs(3), size)
		assert.ErrorIs(t, err, lib.ErrInvalidBatchSize)
		assert.Nil(t, batcher)
	}
}

func TestBatcherReturnsCopies(t *testing.T) {
	ids := uintIDs(4)
	batcher, err := NewBatcher(ids, 2)
	require.NoError(t, err)

	batch, ok := batcher.Next()
	require.True(t, ok)
	batch[0] = mailbox.NewMessageIDFromString("changed")
	assert.Equal(t, mailbox.NewMessageIDFromUint(1), ids[0])
}
