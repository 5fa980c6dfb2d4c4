package server

import "testing"

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"/":     "",
		"api":   "/api",
		"/api":  "/api",
		"/api/": "/api",
		" /v1 ": "/v1",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSafeName(t *testing.T) {
	for _, ok := range []string{"game", "my-prefix_2", "a.b"} {
		if !isSafeName(ok) {
			t.Fatalf("%q should be safe", ok)
		}
	}
	for _, bad := range []string{"", "..", "a/b", `a\b`, "пре fix", "x..y"} {
		if isSafeName(bad) {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}

func TestIsSafeAbsPath(t *testing.T) {
	if !isSafeAbsPath("") || !isSafeAbsPath("/opt/app.exe") {
		t.Fatal("empty and clean absolute paths are allowed")
	}
	for _, bad := range []string{"rel/app.exe", "/opt/../etc/passwd"} {
		if isSafeAbsPath(bad) {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}
