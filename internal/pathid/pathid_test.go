package pathid

import (
	"runtime"
	"testing"
)

func TestPosix_Clean(t *testing.T) {
	r := Posix()
	tests := []struct {
		in   string
		want string
	}{
		{"/a/b/../c", "/a/c"},
		{"/a//b/", "/a/b"},
		{"a/./b", "a/b"},
		{"/", "/"},
		{"", "."},
		{"a\\b\\c", "a/b/c"}, // backslashes fold into the posix dialect
	}
	for _, tt := range tests {
		if got := r.Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPosix_JoinBaseDir(t *testing.T) {
	r := Posix()
	if got := r.Join("/srv", "data", "file.txt"); got != "/srv/data/file.txt" {
		t.Errorf("Join = %q", got)
	}
	if got := r.Base("/srv/data/file.txt"); got != "file.txt" {
		t.Errorf("Base = %q", got)
	}
	if got := r.Dir("/srv/data/file.txt"); got != "/srv/data" {
		t.Errorf("Dir = %q", got)
	}
}

func TestRel(t *testing.T) {
	r := Posix()
	tests := []struct {
		root, target string
		want         string
		ok           bool
	}{
		{"/srv/data", "/srv/data/sub/f.txt", "sub/f.txt", true},
		{"/srv/data", "/srv/data", ".", true},
		{"/srv/data", "/srv/other/f.txt", "", false},
		{"/", "/f.txt", "f.txt", true},
	}
	for _, tt := range tests {
		got, ok := r.Rel(tt.root, tt.target)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Rel(%q, %q) = (%q, %v), want (%q, %v)", tt.root, tt.target, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRebase_AcrossDialects(t *testing.T) {
	src := Posix()
	dst := Posix()

	got, ok := Rebase(src, dst, "/srv/data", "/srv/data/sub/f.txt", "/backup/data")
	if !ok || got != "/backup/data/sub/f.txt" {
		t.Errorf("Rebase = (%q, %v)", got, ok)
	}

	got, ok = Rebase(src, dst, "/srv/data", "/srv/data", "/backup/data")
	if !ok || got != "/backup/data" {
		t.Errorf("Rebase root = (%q, %v)", got, ok)
	}

	if _, ok := Rebase(src, dst, "/srv/data", "/elsewhere/f.txt", "/backup"); ok {
		t.Error("Rebase outside the root must fail")
	}
}

func TestEqual(t *testing.T) {
	r := Posix()
	if !r.Equal("/a/b/../c", "/a/c") {
		t.Error("Expected cleaned paths to compare equal")
	}
	if r.Equal("/a/c", "/a/C") {
		t.Error("Posix comparison must be case-sensitive")
	}
}

func TestForSeparator(t *testing.T) {
	if ForSeparator("/").Separator() != "/" {
		t.Error("Expected posix resolver for /")
	}
	native := ForSeparator("\\")
	if runtime.GOOS != "windows" && native.Separator() != "/" {
		// On non-Windows hosts the native separator is also a slash.
		if native.Separator() != "/" {
			t.Errorf("Unexpected native separator %q", native.Separator())
		}
	}
}

func TestSplitExt(t *testing.T) {
	tests := []struct {
		name string
		stem string
		ext  string
	}{
		{"archive.tar", "archive", ".tar"},
		{"report.final.pdf", "report.final", ".pdf"},
		{"README", "README", ""},
		{".profile", ".profile", ""},
	}
	for _, tt := range tests {
		stem, ext := SplitExt(tt.name)
		if stem != tt.stem || ext != tt.ext {
			t.Errorf("SplitExt(%q) = (%q, %q), want (%q, %q)", tt.name, stem, ext, tt.stem, tt.ext)
		}
	}
}
