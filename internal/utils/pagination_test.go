package utils

import "testing"

func TestQueryInt(t *testing.T) {
	cases := []struct {
		s      string
		def    int
		want   int
		wantOK bool
	}{
		// empty -> default
		{"", 50, 50, true},
		// valid ints
		{"10", 50, 10, true},
		{"-1", 50, -1, true},
		{"0012", 50, 12, true},
		// invalid (no trim)
		{"abc", 50, 0, false},
		{" 42", 50, 0, false},
		{"1.5", 50, 0, false},
		// overflow
		{"999999999999999999999999", 50, 0, false},
	}
	for _, tc := range cases {
		got, ok := QueryInt(tc.s, tc.def)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("QueryInt(%q, %d) = (%d, %v); want (%d, %v)", tc.s, tc.def, got, ok, tc.want, tc.wantOK)
		}
	}
}
