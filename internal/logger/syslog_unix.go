//go:build unix

package logger

import "log/syslog"

// SyslogEmitter ships lines to the local syslog daemon with the
// supervisor[source] tag convention.
type SyslogEmitter struct {
	w *syslog.Writer
}

func NewSyslogEmitter() (*SyslogEmitter, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, DaemonSource)
	if err != nil {
		return nil, err
	}
	return &SyslogEmitter{w: w}, nil
}

func (s *SyslogEmitter) Emit(line, source string) {
	_ = s.w.Info(Format(source, line))
}

func (s *SyslogEmitter) Close() error { return s.w.Close() }
