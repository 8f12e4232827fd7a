// Package logging wraps klog's logr logger in a Logger value that redacts
// sensitive keys. Components build their own Logger with New().Named(...)
// inside their constructors and keep it in a struct field; no constructor
// takes a logger parameter, and the session, login, htmlsignal and
// instrumentation packages also call klog's package-level functions directly.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"
)

// redactedKeys never appear in a log line's value position, matching
// spec.md §3's "never logged" requirement for Credentials and §4.2's
// requirement to avoid logging captcha/signature/token fields.
var redactedKeys = map[string]struct{}{
	"password":       {},
	"captcha":        {},
	"verify_code":    {},
	"token":          {},
	"signature":      {},
	"vtoken":         {},
	"challenge":      {},
	"salt":           {},
	"secret_number":  {},
}

// Logger wraps a logr.Logger (klog's own) with redaction of known-sensitive
// keys and a name for component scoping.
type Logger struct {
	base logr.Logger
	name string
}

// New returns a root logger backed by klog.
func New() Logger {
	return Logger{base: klog.Background()}
}

// Named returns a child logger scoped to a component name, mirroring the
// teacher's per-call klog.Infof prefixes but as structured values instead of
// string formatting.
func (l Logger) Named(name string) Logger {
	full := name
	if l.name != "" {
		full = l.name + "." + name
	}
	return Logger{base: l.base.WithName(name), name: full}
}

func (l Logger) redact(keysAndValues []interface{}) []interface{} {
	out := make([]interface{}, 0, len(keysAndValues))
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		val := keysAndValues[i+1]
		if _, sensitive := redactedKeys[key]; sensitive {
			val = "<redacted>"
		}
		out = append(out, key, val)
	}
	return out
}

// Info logs at the informational level.
func (l Logger) Info(msg string, keysAndValues ...interface{}) {
	l.base.Info(msg, l.redact(keysAndValues)...)
}

// Debug logs at a verbose level, gated the way klog.V(1)/klog.V(2) gate
// verbose output in the teacher.
func (l Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.base.V(1).Info(msg, l.redact(keysAndValues)...)
}

// Warn logs a recoverable problem.
func (l Logger) Warn(msg string, err error, keysAndValues ...interface{}) {
	kv := append([]interface{}{}, keysAndValues...)
	if err != nil {
		kv = append(kv, "error", err.Error())
	}
	l.base.Info("WARN: "+msg, l.redact(kv)...)
}

// Error logs a failure.
func (l Logger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.base.Error(err, msg, l.redact(keysAndValues)...)
}
