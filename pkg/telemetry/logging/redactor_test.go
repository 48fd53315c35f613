package logging

import (
	"log/slog"
	"testing"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "redirected journal.example.org", "redirected journal.example.org"},
		{"bearer", "Authorization: Bearer abc.def-123", "Authorization: Bearer ***"},
		{"basic", "Basic dXNlcjpwYXNz", "Basic ***"},
		{"password query", "https://login.example.edu/login?user=a&password=hunter2&x=1", "https://login.example.edu/login?user=a&password=***&x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactor_RedactHeaders(t *testing.T) {
	r := NewRedactor("x-ezproxy-user")

	in := map[string]string{
		"Cookie":         "a=b",
		"Set-Cookie":     "c=d",
		"server":         "EZproxy",
		"x-ezproxy-user": "jdoe",
	}
	out := r.RedactHeaders(in)

	if out["Cookie"] != Redacted || out["Set-Cookie"] != Redacted || out["x-ezproxy-user"] != Redacted {
		t.Errorf("sensitive headers not redacted: %v", out)
	}
	if out["server"] != "EZproxy" {
		t.Errorf("server = %q, should pass through", out["server"])
	}
	if in["Cookie"] != "a=b" {
		t.Error("RedactHeaders must not modify its input")
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor()

	group := r.RedactAttr(slog.Group("response_headers",
		slog.String("set-cookie", "session=1"),
		slog.String("location", "/login"),
	))
	attrs := group.Value.Group()
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, a := range attrs {
		switch a.Key {
		case "set-cookie":
			if a.Value.String() != Redacted {
				t.Errorf("set-cookie = %q", a.Value.String())
			}
		case "location":
			if a.Value.String() != "/login" {
				t.Errorf("location = %q", a.Value.String())
			}
		}
	}

	if got := r.RedactAttr(slog.Int("status", 302)); got.Value.Int64() != 302 {
		t.Errorf("non-string values should pass through, got %v", got.Value)
	}
}
