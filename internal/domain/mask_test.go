package domain

import "testing"

func TestMaskToken(t *testing.T) {
	cases := []struct {
		token string
		want  string
	}{
		{"", "****"},
		{"short", "****"},
		{"abcdefgh", "abcd****efgh"},
		{"abcdefghij", "abcd****ghij"},
	}
	for _, c := range cases {
		if got := MaskToken(c.token); got != c.want {
			t.Errorf("MaskToken(%q) = %q, want %q", c.token, got, c.want)
		}
	}
}
