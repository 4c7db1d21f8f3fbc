package server

import "testing"

func TestSanitizeBase(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"/", ""},
		{"api", "/api"},
		{"/api", "/api"},
		{"/api/", "/api"},
		{"  /api  ", "/api"},
		{"/api/v1/", "/api/v1"},
	}
	for _, tc := range cases {
		if got := sanitizeBase(tc.in); got != tc.want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAttachment(t *testing.T) {
	got := attachment("computers_20260314_092653.csv")
	want := `attachment; filename="computers_20260314_092653.csv"`
	if got != want {
		t.Fatalf("attachment = %q, want %q", got, want)
	}
}
