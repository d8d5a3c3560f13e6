package logger

import (
	"fmt"

	phlog "github.com/oarkflow/log"
)

// PhusluLogger writes structured lines through the phuslu-style phlog
// package
type PhusluLogger struct {
	l phlog.Logger
}

func NewPhusluLogger(level string) *PhusluLogger {
	l := phlog.DefaultLogger
	if level != "" {
		l.Level = phlog.ParseLevel(level)
	}
	return &PhusluLogger{l: l}
}

func (p *PhusluLogger) Debug(msg string, keyvals ...any) {
	emit(p.l.Debug(), msg, keyvals)
}

func (p *PhusluLogger) Info(msg string, keyvals ...any) {
	emit(p.l.Info(), msg, keyvals)
}

func (p *PhusluLogger) Error(msg string, keyvals ...any) {
	emit(p.l.Error(), msg, keyvals)
}

func emit(b *phlog.Entry, msg string, keyvals []any) {
	for i := 0; i < len(keyvals)-1; i += 2 {
		k := fmt.Sprint(keyvals[i])
		switch v := keyvals[i+1].(type) {
		case string:
			b = b.Str(k, v)
		case bool:
			b = b.Bool(k, v)
		case int:
			b = b.Int(k, v)
		case int64:
			b = b.Int64(k, v)
		default:
			b = b.Any(k, v)
		}
	}
	b.Msg(msg)
}
