package deb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultSpillThreshold is the number of bytes a buffer keeps in memory
// before moving to a temporary file.
const DefaultSpillThreshold = 4 << 20

var (
	errBufferClosed   = errors.New("buffer is closed")
	errBufferOpen     = errors.New("buffer is still open for writing")
	errBufferConsumed = errors.New("buffer content was already copied")
)

// BufferOptions configures where archive members are materialized before
// being copied into the .deb.
type BufferOptions struct {
	// Dir is the directory for temporary files. Empty means os.TempDir().
	Dir string
	// Threshold is the in-memory limit in bytes. Zero selects
	// DefaultSpillThreshold, a negative value keeps everything in memory.
	Threshold int
}

// spillBuffer accumulates bytes in memory and continues in a temporary file
// once the threshold is crossed. After Close, its length is known and its
// content can be copied out once.
type spillBuffer struct {
	opts     BufferOptions
	mem      bytes.Buffer
	file     *os.File
	size     int64
	closed   bool
	consumed bool
}

// Write implements io.Writer.
func (b *spillBuffer) Write(p []byte) (int, error) {
	if b.closed {
		return 0, errBufferClosed
	}
	if b.file == nil && b.opts.Threshold >= 0 && b.mem.Len()+len(p) > b.opts.Threshold {
		if err := b.spill(); err != nil {
			return 0, err
		}
	}
	var n int
	var err error
	if b.file != nil {
		n, err = b.file.Write(p)
	} else {
		n, err = b.mem.Write(p)
	}
	b.size += int64(n)
	return n, err
}

func (b *spillBuffer) spill() error {
	f, err := os.CreateTemp(b.opts.Dir, "debuild-*.tmp")
	if err != nil {
		return fmt.Errorf("creating spill file: %w", err)
	}
	b.file = f
	if _, err := b.mem.WriteTo(f); err != nil {
		return fmt.Errorf("spilling to %s: %w", f.Name(), err)
	}
	b.mem = bytes.Buffer{}
	return nil
}

// Close ends the writing side.
func (b *spillBuffer) Close() error {
	b.closed = true
	return nil
}

// Len returns the number of bytes written so far.
func (b *spillBuffer) Len() int64 {
	return b.size
}

// WriteTo copies the whole content to w. It can only be called once, after Close.
func (b *spillBuffer) WriteTo(w io.Writer) (int64, error) {
	if !b.closed {
		return 0, errBufferOpen
	}
	if b.consumed {
		return 0, errBufferConsumed
	}
	b.consumed = true
	if b.file == nil {
		return b.mem.WriteTo(w)
	}
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return io.Copy(w, b.file)
}

// release frees the memory and deletes the temporary file, if any.
func (b *spillBuffer) release() error {
	b.closed = true
	b.mem = bytes.Buffer{}
	if b.file == nil {
		return nil
	}
	name := b.file.Name()
	b.file.Close()
	b.file = nil
	return os.Remove(name)
}

// bufferPool hands out spill buffers for one build and releases all of them at the end.
type bufferPool struct {
	opts    BufferOptions
	buffers []*spillBuffer
}

func newBufferPool(opts BufferOptions) *bufferPool {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultSpillThreshold
	}
	return &bufferPool{opts: opts}
}

func (p *bufferPool) get() *spillBuffer {
	b := &spillBuffer{opts: p.opts}
	p.buffers = append(p.buffers, b)
	return b
}

// release releases every buffer handed out, even after a failure.
func (p *bufferPool) release() error {
	var errs []error
	for _, b := range p.buffers {
		if err := b.release(); err != nil {
			errs = append(errs, err)
		}
	}
	p.buffers = nil
	return errors.Join(errs...)
}
