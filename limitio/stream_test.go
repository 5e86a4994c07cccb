package limitio_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/creativeprojects/refugeemail/limitio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoLimit(t *testing.T) {
	source := bytes.NewReader([]byte("message"))
	reader := limitio.NewLimiter(0).Reader(context.Background(), source)
	assert.Same(t, source, reader)

	var limiter *limitio.Limiter
	assert.Same(t, source, limiter.Reader(context.Background(), source))
}

func TestReadEverything(t *testing.T) {
	source := bytes.Repeat([]byte{10}, 10*1024)
	reader := limitio.NewLimiter(1024*1024).Reader(context.Background(), bytes.NewReader(source))
	read, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, source, read)
}

func TestReadAtRate(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	for _, limit := range []float64{64 * 1024, 256 * 1024} {
		size := int(limit) * 2
		t.Run(fmt.Sprintf("%d bytes at %.0f/sec", size, limit), func(t *testing.T) {
			t.Parallel()
			source := bytes.NewReader(bytes.Repeat([]byte{11}, size))
			reader := limitio.NewLimiter(limit).Reader(context.Background(), source)

			start := time.Now()
			n, err := io.Copy(io.Discard, reader)
			elapsed := time.Since(start)
			require.NoError(t, err)
			assert.Equal(t, int64(size), n)

			// the first burst is free, the rest should take about 2 seconds
			assert.InDelta(t, 2.0, elapsed.Seconds(), 0.2)
		})
	}
}

func TestCancelledRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := bytes.NewReader(bytes.Repeat([]byte{12}, 64*1024))
	reader := limitio.NewLimiter(1024).Reader(ctx, source)
	_, err := io.Copy(io.Discard, reader)
	assert.ErrorIs(t, err, context.Canceled)
}
