package types

// Logger used across the whole node. The user can provide its own
// implementation, if nothing is provided a default one will be used.
type Logger interface {
	Info(v ...interface{})

	Infof(format string, v ...interface{})

	Warn(v ...interface{})

	Warnf(format string, v ...interface{})

	Error(v ...interface{})

	Errorf(format string, v ...interface{})

	Debug(v ...interface{})

	Debugf(format string, v ...interface{})

	Fatal(v ...interface{})

	Fatalf(format string, v ...interface{})

	// Enable or disable the debug level, returning
	// the applied value.
	ToggleDebug(value bool) bool
}
