package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
)

// Store keeps track of the source messages already committed. It's owned by a single migration run
// and is not safe for concurrent use.
type Store struct {
	filename string
	entries  map[mailbox.MessageID]Entry
}

// New creates an empty store saved into filename.
// An empty filename gives a store that is never saved (dry run).
func New(filename string) *Store {
	return &Store{
		filename: filename,
		entries:  make(map[mailbox.MessageID]Entry),
	}
}

// Load reads the store from filename. A missing file is an empty store.
// A file that cannot be decoded returns an error wrapping lib.ErrCorruptState:
// starting again from scratch would send every message again.
func Load(filename string) (*Store, error) {
	store := New(filename)
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf("cannot read progress file %q: %w", filename, err)
	}
	raw := make(map[string]Entry)
	err = json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %s", lib.ErrCorruptState, filename, err)
	}
	// "null" decodes into a nil map
	if raw == nil {
		return nil, fmt.Errorf("%w: %q is not a JSON object", lib.ErrCorruptState, filename)
	}
	for key, entry := range raw {
		if key == "" {
			return nil, fmt.Errorf("%w: %q contains an empty message ID", lib.ErrCorruptState, filename)
		}
		store.entries[parseMessageID(key)] = entry
	}
	return store, nil
}

// Filename where the store is persisted
func (s *Store) Filename() string {
	return s.filename
}

func (s *Store) Contains(id mailbox.MessageID) bool {
	_, found := s.entries[id]
	return found
}

func (s *Store) Get(id mailbox.MessageID) (Entry, bool) {
	entry, found := s.entries[id]
	return entry, found
}

// Record sets the entry for the message ID in memory. Nothing is saved until Persist is called.
func (s *Store) Record(id mailbox.MessageID, entry Entry) {
	s.entries[id] = entry
}

func (s *Store) Len() int {
	return len(s.entries)
}

// IDs returns the message IDs in the store: numeric IDs in order, then string IDs in order
func (s *Store) IDs() []mailbox.MessageID {
	ids := make([]mailbox.MessageID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].IsUint() != ids[j].IsUint() {
			return ids[i].IsUint()
		}
		if ids[i].IsUint() {
			return ids[i].AsUint() < ids[j].AsUint()
		}
		return ids[i].AsString() < ids[j].AsString()
	})
	return ids
}

// Count returns the number of entries of each kind
func (s *Store) Count() map[Kind]int {
	count := make(map[Kind]int, 3)
	for _, entry := range s.entries {
		count[entry.Kind()]++
	}
	return count
}

// Persist replaces the whole file with the entries in memory.
// Only call it when every entry recorded so far is committed.
func (s *Store) Persist() error {
	if s.filename == "" {
		return nil
	}
	raw := make(map[string]Entry, len(s.entries))
	for id, entry := range s.entries {
		raw[id.String()] = entry
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	err = writeFileAtomic(s.filename, data)
	if err != nil {
		return fmt.Errorf("cannot save progress file %q: %w", s.filename, err)
	}
	return nil
}

func parseMessageID(key string) mailbox.MessageID {
	uid, err := strconv.ParseUint(key, 10, 32)
	if err == nil && uid > 0 {
		return mailbox.NewMessageIDFromUint(uint32(uid))
	}
	return mailbox.NewMessageIDFromString(key)
}
