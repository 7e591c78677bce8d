package agent

import (
	"fmt"
	"io"
	"io/ioutil"

	gsyslog "github.com/hashicorp/go-syslog"
	"github.com/hashicorp/logutils"
)

// levelFilter returns a LevelFilter configured with the levels this
// agent logs at, matching command/agent/log_levels.go.
func levelFilter() *logutils.LevelFilter {
	return &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERR"},
		MinLevel: "INFO",
		Writer:   ioutil.Discard,
	}
}

// validateLevelFilter checks that min is one of filter's known
// levels before it's applied, so a typo'd -log-level falls back
// safely instead of silently filtering everything.
func validateLevelFilter(min logutils.LogLevel, filter *logutils.LevelFilter) bool {
	for _, level := range filter.Levels {
		if level == min {
			return true
		}
	}
	return false
}

// SetupLoggers wires the gate/ring-buffer/level-filter chain whose
// output is handed to Create: lines are filtered by level before they
// reach the gate, which holds them back until the CLI is ready to show
// them; every line, unfiltered, is also mirrored into the ring buffer
// for the IPC "monitor" command.
func SetupLoggers(gateWriter io.Writer, level string) (*GatedWriter, *LogWriter, io.Writer) {
	logGate := &GatedWriter{Writer: gateWriter}

	filter := levelFilter()
	filter.MinLevel = logutils.LogLevel(level)
	filter.Writer = logGate
	if !validateLevelFilter(filter.MinLevel, filter) {
		filter.MinLevel = "INFO"
	}

	writer := newLogWriter(512 * 1024)
	logOutput := io.MultiWriter(filter, writer)
	return logGate, writer, logOutput
}

// SetupSyslog opens a local syslog writer at the given facility, for
// callers that want agent output mirrored into the system log in
// addition to the gated/ring-buffered chain SetupLoggers returns.
// Mirrors command/agent/command.go's optional -syslog handling, minus
// the Windows no-op branch (gsyslog itself returns an error there).
func SetupSyslog(facility string) (io.Writer, error) {
	l, err := gsyslog.NewLogger(gsyslog.LOG_NOTICE, facility, "lobby")
	if err != nil {
		return nil, fmt.Errorf("agent: error setting up syslog: %v", err)
	}
	return &syslogFilter{l}, nil
}

// syslogFilter adapts a gsyslog.Syslogger to io.Writer, routing by the
// logutils level prefix the way command/agent/command.go's own
// SyslogWrapper does.
type syslogFilter struct {
	l gsyslog.Syslogger
}

func (s *syslogFilter) Write(p []byte) (int, error) {
	line := string(p)
	level := gsyslog.LOG_INFO
	switch {
	case len(line) > 6 && line[:6] == "[ERR] ":
		level = gsyslog.LOG_ERR
	case len(line) > 7 && line[:7] == "[WARN] ":
		level = gsyslog.LOG_WARNING
	case len(line) > 8 && line[:8] == "[DEBUG] ":
		level = gsyslog.LOG_DEBUG
	}
	if err := s.l.WriteLevel(level, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
