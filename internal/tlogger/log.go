package tlogger

import (
	"io"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Log is the default logger for apps
var Log log.Logger

var (
	mu     sync.RWMutex
	hlog   log.Logger // stdout: debug and info
	herr   log.Logger // stderr: warn and error
	filter = level.AllowInfo()
)

// ApplyLogLevel applies min logging level, only the first call is honored
var ApplyLogLevel func(string)

func init() {
	setup(os.Stdout, os.Stderr, nil)

	ApplyLogLevel = func(lvl string) {
		var f level.Option
		switch lvl {
		case "debug":
			f = level.AllowDebug()
		case "warn":
			f = level.AllowWarn()
		case "error":
			f = level.AllowError()
		case "all":
			f = level.AllowAll()
		default:
			f = level.AllowInfo()
		}
		setup(os.Stdout, os.Stderr, f)
		ApplyLogLevel = func(string) {}
	}
}

// SetOutput redirects every level to w. Used by tests to capture logs.
func SetOutput(w io.Writer) {
	setup(w, w, nil)
}

// setup swaps the loggers, and the level filter when f is not nil.
func setup(out, errOut io.Writer, f level.Option) {
	mu.Lock()
	defer mu.Unlock()

	if f != nil {
		filter = f
	}

	base := log.NewLogfmtLogger(log.NewSyncWriter(out))
	Log = level.NewFilter(log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5)), filter)
	hlog = level.NewFilter(log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(6)), filter)

	errBase := log.NewLogfmtLogger(log.NewSyncWriter(errOut))
	herr = level.NewFilter(log.With(errBase, "ts", log.DefaultTimestampUTC, "caller", log.Caller(6)), filter)
}

func out() log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return hlog
}

func errs() log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return herr
}

// Debug add a log entry w/ Debug level
func Debug(keyvals ...interface{}) {
	level.Debug(out()).Log(keyvals...)
}

// Info add a log entry w/ Info level
func Info(keyvals ...interface{}) {
	level.Info(out()).Log(keyvals...)
}

// Warn add a log entry w/ Warn level
func Warn(keyvals ...interface{}) {
	level.Warn(errs()).Log(keyvals...)
}

// Error add a log entry w/ Error level
func Error(keyvals ...interface{}) {
	level.Error(errs()).Log(keyvals...)
}

// FatalIf prints a fatal Error level and exits if err != nil
func FatalIf(err error) {
	if err == nil {
		return
	}
	level.Error(errs()).Log("err", err)
	os.Exit(1)
}
