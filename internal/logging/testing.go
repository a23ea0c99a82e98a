package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger captures entries from TraceLevel up for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: logs,
	}
}

func (t *TestLogger) All() []observer.LoggedEntry { return t.observed.All() }

// FilterMessage narrows to entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}

func (t *TestLogger) Reset() { _ = t.observed.TakeAll() }

// matches counts entries at level whose message contains snippet.
func (t *TestLogger) matches(level zapcore.Level, snippet string) int {
	n := 0
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, snippet) {
			n++
		}
	}
	return n
}

func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if t.matches(level, snippet) == 0 {
		tb.Errorf("no %v entry containing %q; got %+v", level, snippet, t.observed.All())
	}
}

func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if n := t.matches(level, snippet); n > 0 {
		tb.Errorf("%d unexpected %v entries containing %q", n, level, snippet)
	}
}

// AssertField passes when some entry whose message contains msg has
// key set to want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("no entry %q with %s=%v", msg, key, want)
}
