package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creativeprojects/refugeemail/lib"
)

const maxRuns = 100

// Run is the summary of one migration run
type Run struct {
	Date        time.Time `json:"date"`
	Mode        string    `json:"mode"`
	Total       int       `json:"total"`
	Transferred int       `json:"transferred"`
	Skipped     int       `json:"skipped"`
	Cancelled   bool      `json:"cancelled,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Metadata about a source folder, saved next to its progress file
type Metadata struct {
	AccountTag  string `json:"account"`
	Folder      string `json:"folder"`
	UidValidity uint32 `json:"uidValidity,omitempty"`
	Runs        []Run  `json:"runs,omitempty"`
}

// LoadMetadata reads the metadata file. A missing file returns empty metadata.
func LoadMetadata(filename string) (*Metadata, error) {
	meta := &Metadata{}
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, nil
		}
		return nil, fmt.Errorf("cannot read metadata file %q: %w", filename, err)
	}
	err = json.Unmarshal(data, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %s", lib.ErrCorruptState, filename, err)
	}
	return meta, nil
}

// SaveMetadata replaces the metadata file atomically
func SaveMetadata(filename string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	err = writeFileAtomic(filename, data)
	if err != nil {
		return fmt.Errorf("cannot save metadata file %q: %w", filename, err)
	}
	return nil
}

// AddRun appends a run to the history, dropping the oldest ones past the limit
func (m *Metadata) AddRun(run Run) {
	m.Runs = append(m.Runs, run)
	if len(m.Runs) > maxRuns {
		m.Runs = m.Runs[len(m.Runs)-maxRuns:]
	}
}

// LastRun returns the most recent run, if any
func (m *Metadata) LastRun() (Run, bool) {
	if len(m.Runs) == 0 {
		return Run{}, false
	}
	return m.Runs[len(m.Runs)-1], true
}
