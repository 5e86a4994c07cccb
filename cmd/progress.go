package cmd

import (
	"github.com/creativeprojects/refugeemail/migrate"
	"github.com/creativeprojects/refugeemail/term"
	"github.com/pterm/pterm"
)

// progressReporter displays a progress bar of the messages done, and a line after each batch
type progressReporter struct {
	action  string
	pbar    *pterm.ProgressbarPrinter
	total   int
	done    int
	batches int
}

func newProgressReporter(action string) *progressReporter {
	return &progressReporter{
		action: action,
	}
}

func (p *progressReporter) Start(stats migrate.Statistics) {
	term.Infof("Server reports %d messages", stats.Total)
	p.total = stats.Total
	if stats.Total == 0 || term.GetLevel() > term.LevelInfo {
		return
	}
	p.startBar()
}

func (p *progressReporter) startBar() {
	p.pbar, _ = pterm.DefaultProgressbar.WithTotal(p.total).WithTitle(p.action).Start()
	if p.pbar != nil && p.done > 0 {
		p.pbar.Add(p.done)
	}
}

// Confirm asks the operator a question with the progress bar out of the way
func (p *progressReporter) Confirm(question string) bool {
	paused := p.pbar != nil
	if paused {
		_, _ = p.pbar.Stop()
		p.pbar = nil
	}
	answer := term.Confirm(question, false)
	if paused && !answer {
		p.startBar()
	}
	return answer
}

func (p *progressReporter) Update(stats migrate.Statistics) {
	done := stats.Transferred + stats.Skipped + stats.Empty
	if p.pbar != nil && done > p.done {
		p.pbar.Add(done - p.done)
	}
	p.done = done
	if stats.Batches > p.batches {
		p.batches = stats.Batches
		term.Infof("%s messages up to %d/%d, skipping %d previously done", p.action, stats.Transferred, stats.Total, stats.Skipped)
	}
}

func (p *progressReporter) Finish(stats migrate.Statistics) {
	if p.pbar != nil {
		_, _ = p.pbar.Stop()
		p.pbar = nil
	}
	if stats.Cancelled {
		term.Warnf("Cancelled: %d messages done during this run, %d remaining", stats.Transferred, stats.Remaining())
		return
	}
	if stats.Empty > 0 {
		term.Warnf("%d messages had no content and were not transferred", stats.Empty)
	}
	term.Infof("Finished: %d messages done during this run, %d skipped, %d remaining", stats.Transferred, stats.Skipped, stats.Remaining())
}
