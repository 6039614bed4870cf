package cli

import "testing"

func TestSplitProfileRef(t *testing.T) {
	tests := []struct {
		arg      string
		wantName string
		wantRest string
		wantOK   bool
	}{
		{"lab:/srv/data", "lab", "/srv/data", true},
		{"lab:", "lab", "", true},
		{"my-box:relative/dir", "my-box", "relative/dir", true},
		{"/local/path", "", "", false},
		{"relative/path", "", "", false},
		{`C:\data`, "", "", false},      // drive letter, not a profile
		{"a:/too-short", "", "", false}, // single-letter names stay local
		{"dir/with:colon", "", "", false},
		{"plainname", "", "", false},
	}
	for _, tt := range tests {
		name, rest, ok := splitProfileRef(tt.arg)
		if name != tt.wantName || rest != tt.wantRest || ok != tt.wantOK {
			t.Errorf("splitProfileRef(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.arg, name, rest, ok, tt.wantName, tt.wantRest, tt.wantOK)
		}
	}
}
