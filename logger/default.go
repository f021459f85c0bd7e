package logger

import "sync/atomic"

// loggerHolder boxes the default Logger so implementations of different
// concrete types can be swapped atomically.
type loggerHolder struct {
	l Logger
}

var defLogger atomic.Pointer[loggerHolder]

func init() {
	defLogger.Store(&loggerHolder{l: NewSlog(InfoLevel, false)})
}

// SetLogger replaces the package default logger returned by GetLogger.
// Drivers, ports and simulators created afterwards pick it up as their
// default; existing ones keep the logger they were built with. A nil l is
// ignored.
func SetLogger(l Logger) {
	if l != nil {
		defLogger.Store(&loggerHolder{l: l})
	}
}

// GetLogger returns the package default logger. It is safe for concurrent use.
func GetLogger() Logger {
	return defLogger.Load().l
}

// With returns a child of the default logger carrying keyValues.
func With(keyValues ...any) Logger {
	return GetLogger().With(keyValues...)
}
