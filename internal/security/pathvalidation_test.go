package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWithinDirectory(t *testing.T) {
	tmp := t.TempDir()
	safe := filepath.Join(tmp, "safe")
	outside := filepath.Join(tmp, "outside")
	for _, d := range []string{safe, outside} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	link := filepath.Join(safe, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(safe, "track.html"), false},
		{"nested new file", filepath.Join(safe, "a", "b", "track.png"), false},
		{"the dir itself", safe, false},
		{"dot dot", filepath.Join(safe, "..", "track.html"), true},
		{"sibling", filepath.Join(outside, "track.html"), true},
		{"through symlink", filepath.Join(link, "track.html"), true},
		{"new file under symlink", filepath.Join(link, "new", "track.html"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithinDirectory(tt.path, safe)
			if (err != nil) != tt.wantErr {
				t.Fatalf("WithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrOutsideAllowed) {
				t.Errorf("error %v does not wrap ErrOutsideAllowed", err)
			}
		})
	}
}

func TestWithinAny(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	if err := WithinAny(filepath.Join(b, "x.png"), a, b); err != nil {
		t.Errorf("WithinAny() = %v, want nil", err)
	}
	if err := WithinAny(filepath.Join(b, "x.png")); !errors.Is(err, ErrOutsideAllowed) {
		t.Errorf("WithinAny() with no dirs = %v, want ErrOutsideAllowed", err)
	}
}

func TestExportPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "..", "track.html")
	got, err := ExportPath(p)
	if err != nil {
		t.Fatalf("ExportPath() error: %v", err)
	}
	if got != filepath.Clean(p) {
		t.Errorf("ExportPath() = %q, want %q", got, filepath.Clean(p))
	}
	if _, err := ExportPath(""); err == nil {
		t.Error("ExportPath(\"\") should fail")
	}
	if _, err := ExportPath("/proc/geotag/track.html"); !errors.Is(err, ErrOutsideAllowed) {
		t.Errorf("ExportPath outside = %v, want ErrOutsideAllowed", err)
	}
}
