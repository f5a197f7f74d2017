package logging

import (
	"bytes"
	"io"
	"sync"
)

// ProgressSink receives raw progress-indicator output. Writes are forwarded a
// line at a time; carriage returns count as line ends so redrawn bars reach
// the file as they are drawn.
type ProgressSink interface {
	io.Writer
	Flush() error
}

type lineBufferedWriter struct {
	mu  sync.Mutex
	dst io.Writer
	buf []byte
}

// NewProgressSink wraps dst in a line-buffered ProgressSink.
func NewProgressSink(dst io.Writer) ProgressSink {
	if dst == nil {
		dst = io.Discard
	}
	return &lineBufferedWriter{dst: dst}
}

func (w *lineBufferedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	cut := bytes.LastIndexAny(w.buf, "\r\n")
	if cut < 0 {
		return len(p), nil
	}
	if _, err := w.dst.Write(w.buf[:cut+1]); err != nil {
		return 0, err
	}
	w.buf = append(w.buf[:0], w.buf[cut+1:]...)
	return len(p), nil
}

func (w *lineBufferedWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) == 0 {
		return nil
	}
	_, err := w.dst.Write(w.buf)
	w.buf = w.buf[:0]
	return err
}
