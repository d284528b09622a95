package log

import (
	"strings"
	"testing"
	"time"
)

func TestLoggerMsgFieldsSorted(t *testing.T) {
	var got string
	out := FuncOutput(func(_ time.Time, debug bool, msg string) {
		if debug {
			t.Fatal("expected non-debug message")
		}
		got = msg
	}, nil)

	l := Logger{Out: out, Name: "keystore"}
	l.Msg("declared key", "domain", "example.org", "selector", "s1")

	if !strings.HasPrefix(got, "keystore: declared key\t") {
		t.Fatalf("unexpected message prefix: %q", got)
	}
	if !strings.Contains(got, `"domain":"example.org"`) || !strings.Contains(got, `"selector":"s1"`) {
		t.Fatalf("missing fields in: %q", got)
	}
	// domain sorts before selector
	if strings.Index(got, "domain") > strings.Index(got, "selector") {
		t.Fatalf("fields not in sorted order: %q", got)
	}
}

func TestLoggerDebugGated(t *testing.T) {
	calls := 0
	out := FuncOutput(func(time.Time, bool, string) { calls++ }, nil)

	l := Logger{Out: out}
	l.Debugf("should not appear")
	if calls != 0 {
		t.Fatalf("Debugf fired with Debug=false")
	}

	l.Debug = true
	l.Debugf("now it appears")
	if calls != 1 {
		t.Fatalf("Debugf did not fire with Debug=true")
	}
}

func TestLoggerErrorUsesErrText(t *testing.T) {
	var got string
	out := FuncOutput(func(_ time.Time, _ bool, msg string) { got = msg }, nil)

	l := Logger{Out: out}
	l.Error("key selection failed", errTest("no candidate"))

	if !strings.Contains(got, `"reason":"no candidate"`) {
		t.Fatalf("expected reason field from error text, got: %q", got)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestMultiOutputFansOut(t *testing.T) {
	var a, b int
	m := MultiOutput(
		FuncOutput(func(time.Time, bool, string) { a++ }, nil),
		FuncOutput(func(time.Time, bool, string) { b++ }, nil),
	)
	m.Write(time.Now(), false, "hello")
	if a != 1 || b != 1 {
		t.Fatalf("expected both outputs written to, got a=%d b=%d", a, b)
	}
}
