package logger

// Logger is the minimal key/value logging surface the analysis code writes
// to. Keyvals alternate key, value.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}

// New builds a logger by backend name. Unknown backends fall back to the
// null logger so a misconfigured run stays quiet instead of crashing.
func New(backend, level string) Logger {
	switch backend {
	case "phuslu":
		return NewPhusluLogger(level)
	case "slog":
		return NewSLogLogger(nil)
	}
	return NewNullLogger()
}
