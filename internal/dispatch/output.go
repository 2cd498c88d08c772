package dispatch

import (
	"bytes"
	"io"
	"sync"
)

// lineWriter prefixes every complete line with the host it came from.
// Writers for different hosts share mu so lines never interleave.
type lineWriter struct {
	mu     *sync.Mutex
	w      io.Writer
	prefix []byte
	buf    []byte
}

func newLineWriter(mu *sync.Mutex, w io.Writer, host string) *lineWriter {
	return &lineWriter{mu: mu, w: w, prefix: []byte(host + " ")}
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		if err := l.emit(l.buf[:i+1]); err != nil {
			return 0, err
		}
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}

// Flush writes a trailing partial line, if any.
func (l *lineWriter) Flush() error {
	if len(l.buf) == 0 {
		return nil
	}
	line := append(l.buf, '\n')
	l.buf = nil
	return l.emit(line)
}

func (l *lineWriter) emit(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(l.prefix); err != nil {
		return err
	}
	_, err := l.w.Write(line)
	return err
}
