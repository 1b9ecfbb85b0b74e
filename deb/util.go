package deb

import (
	"io"
	"time"

	"github.com/blakesmith/ar"
)

// countingWriter wraps an io.Writer and counts the bytes written.
// It is typically used to calculate the size of a file or archive entry
// as it is being written.
type countingWriter struct {
	w io.Writer
	n int64
}

// Write writes p to the underlying io.Writer and increments the byte count.
func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// evenWriter forwards writes to an ar.Writer in even-sized chunks. ar.Writer
// pads after every odd-sized Write, so only the very last chunk of a member
// may be odd; flush writes it.
type evenWriter struct {
	w        io.Writer
	carry    byte
	hasCarry bool
}

func (e *evenWriter) Write(p []byte) (int, error) {
	total := len(p)
	if total == 0 {
		return 0, nil
	}
	if e.hasCarry {
		if _, err := e.w.Write([]byte{e.carry, p[0]}); err != nil {
			return 0, err
		}
		e.hasCarry = false
		p = p[1:]
	}
	if len(p)%2 == 1 {
		e.carry = p[len(p)-1]
		e.hasCarry = true
		p = p[:len(p)-1]
	}
	if len(p) > 0 {
		if _, err := e.w.Write(p); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func (e *evenWriter) flush() error {
	if !e.hasCarry {
		return nil
	}
	e.hasCarry = false
	_, err := e.w.Write([]byte{e.carry})
	return err
}

// addBufferToAr writes a named byte slice as a file entry to the AR archive.
func addBufferToAr(w *ar.Writer, name PackageFile, body []byte, modTime time.Time) error {
	header := &ar.Header{
		Name:    string(name),
		Size:    int64(len(body)),
		Mode:    0644,
		ModTime: modTime,
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// addSpillToAr writes a closed spill buffer as a file entry to the AR
// archive. The header carries the buffer length, so the content must be
// complete before this is called.
func addSpillToAr(w *ar.Writer, name PackageFile, buf *spillBuffer, modTime time.Time) error {
	header := &ar.Header{
		Name:    string(name),
		Size:    buf.Len(),
		Mode:    0644,
		ModTime: modTime,
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	ew := &evenWriter{w: w}
	if _, err := buf.WriteTo(ew); err != nil {
		return err
	}
	return ew.flush()
}
