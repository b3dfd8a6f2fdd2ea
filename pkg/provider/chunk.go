package provider

import (
	"context"
	"strings"
	"time"
)

// Default pacing for Chunk.
const (
	DefaultChunkSize  = 20
	DefaultChunkDelay = 30 * time.Millisecond
)

// Chunk splits text into fixed-size rune chunks and sends them on the
// returned channel, sleeping delay between chunks. Whitespace-only chunks
// are skipped and do not consume the delay. The channel is closed when all
// chunks are sent or ctx is cancelled.
func Chunk(ctx context.Context, text string, size int, delay time.Duration) <-chan Fragment {
	if size <= 0 {
		size = DefaultChunkSize
	}
	ch := make(chan Fragment, 1)

	go func() {
		defer close(ch)

		runes := []rune(text)
		first := true
		for start := 0; start < len(runes); start += size {
			end := min(start+size, len(runes))
			piece := string(runes[start:end])
			if strings.TrimSpace(piece) == "" {
				continue
			}

			if !first && delay > 0 {
				t := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			first = false

			select {
			case ch <- Fragment{Text: piece}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Paced returns out unchanged when it is already a stream, otherwise a
// stream produced by Chunk.
func Paced(ctx context.Context, out *Output, size int, delay time.Duration) <-chan Fragment {
	if out.IsStream() {
		return out.Stream
	}
	return Chunk(ctx, out.Text, size, delay)
}
