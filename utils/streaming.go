package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrTooLarge is returned by ReadAll when r holds more than the limit.
var ErrTooLarge = errors.New("input exceeds size limit")

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 32 * 1024

// maxPooled keeps very large buffers out of the pool.
const maxPooled = 8 << 20

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// ReadAll drains r in chunkSize reads through a pooled buffer and returns a
// copy the caller owns. A positive limit makes ReadAll fail with ErrTooLarge
// as soon as more than limit bytes arrive; inputs of exactly limit bytes pass.
// The context is checked between reads.
func ReadAll(ctx context.Context, r io.Reader, chunkSize int, limit int64) ([]byte, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		if buf.Cap() <= maxPooled {
			bufPool.Put(buf)
		}
	}()

	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			if limit > 0 && int64(buf.Len()+n) > limit {
				return nil, ErrTooLarge
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return bytes.Clone(buf.Bytes()), nil
}
