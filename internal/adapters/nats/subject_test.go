package natsadapter

import "testing"

func TestSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"parks", "ogcview.loads.parks"},
		{"lakes.europe", "ogcview.loads.lakes_europe"},
		{"a b*c>", "ogcview.loads.a_b_c_"},
		{"", "ogcview.loads._"},
	}
	for _, tt := range tests {
		if got := Subject(tt.in); got != tt.want {
			t.Errorf("Subject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
