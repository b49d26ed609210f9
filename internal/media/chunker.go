package media

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var ErrChunkerClosed = errors.New("live chunker closed")

// LiveChunker accumulates capture bytes and flushes a segment file whenever the
// accumulator would cross the hard cap. Write may be called from the capture
// callback goroutine while other goroutines read Segments.
type LiveChunker struct {
	mu sync.Mutex

	dir          string
	prefix       string
	mimeType     string
	sampleRateHz int
	capBytes     int64

	buf      bytes.Buffer
	started  time.Time
	segStart time.Time
	segments []Segment
	closed   bool

	onFlush func(Segment)
	now     func() time.Time
}

type ChunkerOption func(*LiveChunker)

// WithFlushHook registers a callback invoked (outside the lock) for every
// completed segment.
func WithFlushHook(fn func(Segment)) ChunkerOption {
	return func(c *LiveChunker) { c.onFlush = fn }
}

// WithSampleRate records the capture sample rate on produced segments.
func WithSampleRate(hz int) ChunkerOption {
	return func(c *LiveChunker) { c.sampleRateHz = hz }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) ChunkerOption {
	return func(c *LiveChunker) {
		if now != nil {
			c.now = now
		}
	}
}

func NewLiveChunker(dir, prefix, mimeType string, capBytes int64, opts ...ChunkerOption) (*LiveChunker, error) {
	if capBytes <= 0 {
		return nil, fmt.Errorf("live chunker: cap must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("live chunker: ensure dir: %w", err)
	}
	if prefix == "" {
		prefix = "live"
	}
	c := &LiveChunker{
		dir:      dir,
		prefix:   prefix,
		mimeType: NormalizeMimeType(mimeType, ""),
		capBytes: capBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.started = c.now()
	c.segStart = c.started
	return c, nil
}

// Write appends one capture chunk. A chunk that would overflow the accumulator
// flushes the accumulator first, so segments end on capture boundaries; only a
// single chunk larger than the cap is split mid-chunk.
func (c *LiveChunker) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrChunkerClosed
	}

	var flushed []Segment
	written := 0
	for len(p) > 0 {
		room := c.capBytes - int64(c.buf.Len())
		if int64(len(p)) > room && c.buf.Len() > 0 {
			seg, err := c.flushLocked()
			if err != nil {
				c.mu.Unlock()
				return written, err
			}
			flushed = append(flushed, seg)
			continue
		}
		n := len(p)
		if int64(n) > room {
			n = int(room)
		}
		c.buf.Write(p[:n])
		written += n
		p = p[n:]
		if int64(c.buf.Len()) >= c.capBytes {
			seg, err := c.flushLocked()
			if err != nil {
				c.mu.Unlock()
				return written, err
			}
			flushed = append(flushed, seg)
		}
	}
	hook := c.onFlush
	c.mu.Unlock()

	if hook != nil {
		for _, seg := range flushed {
			hook(seg)
		}
	}
	return written, nil
}

// Close flushes whatever is buffered and returns every segment in order.
func (c *LiveChunker) Close() ([]Segment, error) {
	c.mu.Lock()
	if c.closed {
		out := append([]Segment(nil), c.segments...)
		c.mu.Unlock()
		return out, nil
	}
	c.closed = true

	var tail *Segment
	if c.buf.Len() > 0 {
		seg, err := c.flushLocked()
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		tail = &seg
	}
	out := append([]Segment(nil), c.segments...)
	hook := c.onFlush
	c.mu.Unlock()

	if hook != nil && tail != nil {
		hook(*tail)
	}
	return out, nil
}

// Cut flushes the buffered bytes as a segment of their own, ending it on the
// client's recorder boundary. It reports false when nothing was buffered.
func (c *LiveChunker) Cut() (Segment, bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Segment{}, false, ErrChunkerClosed
	}
	if c.buf.Len() == 0 {
		c.mu.Unlock()
		return Segment{}, false, nil
	}
	seg, err := c.flushLocked()
	hook := c.onFlush
	c.mu.Unlock()
	if err != nil {
		return Segment{}, false, err
	}
	if hook != nil {
		hook(seg)
	}
	return seg, true, nil
}

// Segments returns the segments flushed so far.
func (c *LiveChunker) Segments() []Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Segment(nil), c.segments...)
}

// Buffered reports the bytes waiting for the next flush.
func (c *LiveChunker) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

func (c *LiveChunker) flushLocked() (Segment, error) {
	index := len(c.segments)
	path := filepath.Join(c.dir, fmt.Sprintf("%s-%03d%s", c.prefix, index, extensionFor(c.mimeType)))
	if err := os.WriteFile(path, c.buf.Bytes(), 0o644); err != nil {
		return Segment{}, fmt.Errorf("live chunker: write segment %d: %w", index, err)
	}
	now := c.now()
	seg := Segment{
		Index:              index,
		StartOffsetSeconds: c.segStart.Sub(c.started).Seconds(),
		DurationSeconds:    now.Sub(c.segStart).Seconds(),
		SizeBytes:          int64(c.buf.Len()),
		LocalPath:          path,
		MimeType:           c.mimeType,
		SampleRateHz:       c.sampleRateHz,
	}
	c.segments = append(c.segments, seg)
	c.buf.Reset()
	c.segStart = now
	return seg, nil
}
