package common

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"
)

// Logger wraps the standard library logger with a verbosity gate and an
// optional stderr duplicate. cmd/nobs creates one instance and hands it
// to the engine, which uses it both for engine-level tracing (memo hits,
// store failures) and for subprocess launch lines.
type Logger struct {
	impl              *log.Logger
	fileName          string
	verbosity         int
	duplicateToStderr bool
}

func MakeLogger(logFile string, verbosity int, duplicateToStderr bool) (*Logger, error) {
	var impl *log.Logger

	if logFile != "" && logFile != "stderr" {
		out, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return nil, err
		}
		impl = log.New(out, "", 0)
	} else {
		impl = log.New(os.Stderr, "", 0)
	}

	if verbosity < -1 || verbosity > 2 {
		return nil, errors.New("incorrect verbosity passed")
	}

	return &Logger{
		impl:              impl,
		fileName:          logFile,
		verbosity:         verbosity,
		duplicateToStderr: duplicateToStderr,
	}, nil
}

func formatStr(prefix string, v ...interface{}) string {
	return fmt.Sprintf("%s %s %s", time.Now().Format("2006-01-02 15:04:05"), prefix, fmt.Sprintln(v...))
}

func (l *Logger) Info(verbosity int, v ...interface{}) {
	if l.verbosity >= verbosity && l.impl != nil {
		_ = l.impl.Output(0, formatStr("INFO", v...))
	}
}

func (l *Logger) Warn(v ...interface{}) {
	if l.impl != nil {
		_ = l.impl.Output(0, formatStr("WARN", v...))
	}
	if l.duplicateToStderr {
		_, _ = fmt.Fprint(os.Stderr, formatStr("[nobs]", v...))
	}
}

func (l *Logger) Error(v ...interface{}) {
	if l.impl != nil {
		_ = l.impl.Output(0, formatStr("ERROR", v...))
	}
	if l.duplicateToStderr {
		_, _ = fmt.Fprint(os.Stderr, formatStr("[nobs]", v...))
	}
}

func (l *Logger) RotateLogFile() error {
	if l.fileName == "" {
		return nil
	}
	out, err := os.OpenFile(l.fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	l.impl = log.New(out, "", 0)
	return nil
}
