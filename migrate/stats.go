package migrate

// Statistics of a run. They're only kept in memory.
type Statistics struct {
	// Total number of distinct messages in the source folder
	Total int
	// Transferred during this run
	Transferred int
	// Skipped because they were done by a previous run
	Skipped int
	// Empty messages returned by the source, recorded but not transferred
	Empty int
	// Batches completed
	Batches int
	// Cancelled by the operator
	Cancelled bool
}

// Remaining returns the number of messages not done yet
func (s Statistics) Remaining() int {
	remaining := s.Total - s.Transferred - s.Skipped - s.Empty
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reporter receives the progress of a run
type Reporter interface {
	// Start is called once the source messages are listed
	Start(stats Statistics)
	// Update is called after each message and after each batch
	Update(stats Statistics)
	// Finish is called at the end of the run, even after an error
	Finish(stats Statistics)
}

type noReport struct{}

func (noReport) Start(Statistics)  {}
func (noReport) Update(Statistics) {}
func (noReport) Finish(Statistics) {}
