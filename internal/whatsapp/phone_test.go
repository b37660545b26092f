package whatsapp

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"whatsapp:+5511999990000", "5511999990000"},
		{"+55 (11) 99999-0000", "5511999990000"},
		{"11999990000", "5511999990000"},
		{"1199990000", "551199990000"},
		{"5511999990000", "5511999990000"},
		{"", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeE164(t *testing.T) {
	if got := NormalizeE164("whatsapp:+5511999990000"); got != "+5511999990000" {
		t.Errorf("NormalizeE164 = %q", got)
	}
	if got := NormalizeE164(""); got != "" {
		t.Errorf("NormalizeE164 empty = %q", got)
	}
}
