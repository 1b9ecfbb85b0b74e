package deb

import (
	"bytes"
	"testing"
	"time"

	"github.com/blakesmith/ar"
)

func TestCountingWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := &countingWriter{w: &buf}

	data := []byte("hello")
	n, err := cw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 bytes written, got %d", n)
	}
	if cw.n != 5 {
		t.Errorf("expected count 5, got %d", cw.n)
	}
	if buf.String() != "hello" {
		t.Errorf("buffer mismatch")
	}
}

func TestAddBufferToAr(t *testing.T) {
	var buf bytes.Buffer
	arW := ar.NewWriter(&buf)
	// Write global header first as required by AR format
	if err := arW.WriteGlobalHeader(); err != nil {
		t.Fatalf("WriteGlobalHeader failed: %v", err)
	}

	content := []byte("content")
	if err := addBufferToAr(arW, "test.txt", content, time.Now()); err != nil {
		t.Fatalf("addBufferToAr failed: %v", err)
	}

	// Verify
	arR := ar.NewReader(&buf)
	hdr, err := arR.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if hdr.Name != "test.txt" {
		t.Errorf("expected name test.txt, got %s", hdr.Name)
	}
	if hdr.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), hdr.Size)
	}
}

// oddChunks splits its content into odd-sized writes, the worst case for ar padding.
type oddChunks struct{ w *evenWriter }

func (o oddChunks) write(t *testing.T, p []byte) {
	for len(p) > 0 {
		n := min(3, len(p))
		if _, err := o.w.Write(p[:n]); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		p = p[n:]
	}
}

func TestAddSpillToArOddChunks(t *testing.T) {
	for _, size := range []int{0, 1, 2, 7, 10, 33} {
		var buf bytes.Buffer
		arW := ar.NewWriter(&buf)
		arW.WriteGlobalHeader()

		first := bytes.Repeat([]byte("a"), size)
		header := &ar.Header{Name: "first", Size: int64(size), Mode: 0644}
		if err := arW.WriteHeader(header); err != nil {
			t.Fatal(err)
		}
		ew := &evenWriter{w: arW}
		oddChunks{ew}.write(t, first)
		if err := ew.flush(); err != nil {
			t.Fatal(err)
		}

		pool := newBufferPool(BufferOptions{Dir: t.TempDir(), Threshold: 4})
		second := pool.get()
		second.Write([]byte("second member"))
		second.Close()
		if err := addSpillToAr(arW, "second", second, time.Now()); err != nil {
			t.Fatalf("addSpillToAr failed: %v", err)
		}
		pool.release()

		members := readAr(t, buf.Bytes())
		if len(members) != 2 {
			t.Fatalf("size %d: expected 2 members, got %d", size, len(members))
		}
		if !bytes.Equal(members[0].body, first) {
			t.Errorf("size %d: first member corrupted: %q", size, members[0].body)
		}
		if string(members[1].body) != "second member" {
			t.Errorf("size %d: second member corrupted: %q", size, members[1].body)
		}
	}
}
