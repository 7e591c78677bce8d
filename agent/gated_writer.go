package agent

import (
	"io"
	"sync"
)

// GatedWriter buffers writes until Flush is called, so startup log
// lines can be held back until the CLI has printed its own startup
// banner. Adapted from
// serf's own cmd/serf/command/agent gated writer of the same name and
// behavior.
type GatedWriter struct {
	Writer io.Writer

	buf [][]byte
	mu  sync.Mutex
	on  bool
}

func (w *GatedWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.on = true
	for _, p := range w.buf {
		w.Writer.Write(p)
	}
	w.buf = nil
}

func (w *GatedWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.on {
		return w.Writer.Write(p)
	}

	cp := make([]byte, len(p))
	copy(cp, p)
	w.buf = append(w.buf, cp)
	return len(p), nil
}
