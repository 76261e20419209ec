// Package trace records stage snapshots as zstd-compressed JSON lines, one
// line per frame, and reads them back. A trace is a diagnostic log for
// inspection tools and tests; nothing loads it back into a stage.
package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/phanxgames/blockstage"
)

// Ext is the conventional file extension of a trace.
const Ext = ".jsonl.zst"

var errClosed = errors.New("trace: writer closed")

// Writer encodes frames into a zstd stream. It implements
// blockstage.FrameRecorder.
type Writer struct {
	mu     sync.Mutex
	enc    *zstd.Encoder
	buf    *bufio.Writer
	file   *os.File // set when the writer owns the destination
	frames int
}

// NewWriter writes a trace to w. Close finishes the stream but leaves w open.
func NewWriter(w io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Writer{enc: enc, buf: bufio.NewWriterSize(enc, 64*1024)}, nil
}

// Create creates (or truncates) the trace file at path, making parent
// directories as needed.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// RecordFrame appends one snapshot.
func (w *Writer) RecordFrame(snap blockstage.StageSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("trace frame %d: %w", snap.Frame, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf == nil {
		return errClosed
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	w.frames++
	return nil
}

// Frames returns the number of frames recorded so far.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close flushes and finishes the stream. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf == nil {
		return nil
	}
	err := w.buf.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
		w.file = nil
	}
	w.buf, w.enc = nil, nil
	return err
}

// Reader decodes a trace frame by frame.
type Reader struct {
	dec  *zstd.Decoder
	sc   *bufio.Scanner
	file *os.File
	line int
}

// NewReader reads a trace from r.
func NewReader(r io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Reader{dec: dec, sc: sc}, nil
}

// Open opens the trace file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (blockstage.StageSnapshot, error) {
	var snap blockstage.StageSnapshot
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return snap, err
		}
		return snap, io.EOF
	}
	r.line++
	if err := json.Unmarshal(r.sc.Bytes(), &snap); err != nil {
		return snap, fmt.Errorf("trace line %d: %w", r.line, err)
	}
	return snap, nil
}

// Close releases the decoder and any file opened by Open.
func (r *Reader) Close() error {
	r.dec.Close()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
