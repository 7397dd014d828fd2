package model

import "testing"

func TestLineCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"single line no newline", "x = 1", 1},
		{"single line with newline", "x = 1\n", 1},
		{"two lines", "a\nb", 2},
		{"two lines trailing newline", "a\nb\n", 2},
		{"blank lines count", "a\n\nb\n", 3},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := LineCount([]byte(tc.in)); got != tc.want {
				t.Errorf("LineCount(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}
