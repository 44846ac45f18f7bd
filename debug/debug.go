package debug

import (
	"os"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	enabled atomic.Bool
	sink    atomic.Pointer[sinks]
)

type sinks struct {
	logger  *zap.Logger
	printer *zap.SugaredLogger
}

func init() {
	debugEnv, exists := os.LookupEnv("STREAM_GO_DEBUG")
	if exists {
		if val, err := strconv.ParseBool(debugEnv); err == nil {
			enabled.Store(val)
		}
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	SetLogger(logger)
}

// SetLogger replaces the logger that Printf writes to. A nil logger silences output.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sink.Store(&sinks{
		logger:  logger,
		printer: logger.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	})
}

func Logger() *zap.Logger {
	return sink.Load().logger
}

// Printf logs at debug level when debugging is enabled.
func Printf(format string, v ...interface{}) {
	if enabled.Load() {
		sink.Load().printer.Debugf(format, v...)
	}
}

func Enabled() bool {
	return enabled.Load()
}

func Enable() {
	enabled.Store(true)
}

func Disable() {
	enabled.Store(false)
}
