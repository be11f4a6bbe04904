package monitoring

import (
	"fmt"
	"testing"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	prev := Logf
	t.Cleanup(func() { Logf = prev })
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)
	Logf("frame %d", 3)
	if len(*lines) != 1 || (*lines)[0] != "frame 3" {
		t.Errorf("captured %q, want [frame 3]", *lines)
	}

	SetLogger(nil)
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("no-op logger forwarded a line: %q", *lines)
	}
}

func TestPrefixed(t *testing.T) {
	logf := Prefixed("[gpsd]")
	lines := capture(t)
	logf("connected to %s", "localhost:2947")
	if len(*lines) != 1 || (*lines)[0] != "[gpsd] connected to localhost:2947" {
		t.Errorf("captured %q", *lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}
