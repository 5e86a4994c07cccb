package limitio

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// DefaultBurst is the size of the chunks read from the source when rate limiting
const DefaultBurst = 4 * 1024

// Reader implements io.Reader with a bandwidth limit shared by every reader created
// from the same Limiter.
type Reader struct {
	ctx     context.Context
	source  io.Reader
	limiter *rate.Limiter
}

// Limiter hands out readers sharing a single bandwidth budget
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a bandwidth limit in bytes per second. A zero or negative value means no limit.
func NewLimiter(bytesPerSec float64) *Limiter {
	if bytesPerSec <= 0 {
		return &Limiter{}
	}
	burst := DefaultBurst
	if float64(burst) > bytesPerSec {
		burst = int(bytesPerSec)
		if burst < 1 {
			burst = 1
		}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}
}

// Reader wraps r. It returns r untouched when there's no limit.
func (l *Limiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if l == nil || l.limiter == nil {
		return r
	}
	return &Reader{
		ctx:     ctx,
		source:  r,
		limiter: l.limiter,
	}
}

// Read never reads more than a burst at a time so it only waits for what it's about to read
func (s *Reader) Read(p []byte) (int, error) {
	if len(p) > s.limiter.Burst() {
		p = p[:s.limiter.Burst()]
	}
	n, err := s.source.Read(p)
	if n > 0 {
		if waitErr := s.limiter.WaitN(s.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
