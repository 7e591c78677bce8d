package agent

import (
	"sync"

	"github.com/armon/circbuf"
)

// LogWriter keeps the most recent log output (up to a byte limit) in
// memory and fans out new
// ones to any registered handler, the way command/agent's LogWriter
// backs the "monitor" IPC command without re-reading a log file.
type LogWriter struct {
	logs    *circbuf.Buffer
	logLock sync.Mutex

	handlers     map[chan string]struct{}
	handlersLock sync.Mutex
}

// newLogWriter creates a LogWriter retaining up to limit bytes of
// recent log output.
func newLogWriter(limit int64) *LogWriter {
	buf, _ := circbuf.NewBuffer(limit)
	return &LogWriter{
		logs:     buf,
		handlers: make(map[chan string]struct{}),
	}
}

func (l *LogWriter) Write(p []byte) (n int, err error) {
	l.logLock.Lock()
	l.logs.Write(p)
	l.logLock.Unlock()

	l.handlersLock.Lock()
	defer l.handlersLock.Unlock()
	for ch := range l.handlers {
		select {
		case ch <- string(p):
		default:
		}
	}
	return len(p), nil
}

// RegisterHandler subscribes ch to future log lines.
func (l *LogWriter) RegisterHandler(ch chan string) {
	l.handlersLock.Lock()
	defer l.handlersLock.Unlock()
	l.handlers[ch] = struct{}{}
}

// DeregisterHandler unsubscribes ch.
func (l *LogWriter) DeregisterHandler(ch chan string) {
	l.handlersLock.Lock()
	defer l.handlersLock.Unlock()
	delete(l.handlers, ch)
}
