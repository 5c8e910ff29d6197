package zipkin

import (
	"fmt"
	"strings"

	"github.com/bellycard/zipkin-tracer/logging"
)

// jaegerLogger adapts a logging.Logger to the logger interface of the jaeger
// tracer and its reporters so that the same logging format is used.
type jaegerLogger struct {
	logger *logging.Logger
}

func newJaegerLogger(logger *logging.Logger) *jaegerLogger {
	return &jaegerLogger{logger: logger}
}

// Error logs an error message
func (l *jaegerLogger) Error(msg string) {
	l.logger.Error(fmt.Errorf("%s", msg), "Tracer reporter error")
}

// Infof logs a info message
func (l *jaegerLogger) Infof(msg string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(msg, args...)))
}

// Debugf logs a debug message
func (l *jaegerLogger) Debugf(msg string, args ...interface{}) {
	if l.logger.DebugEnabled() {
		l.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, args...)))
	}
}
