package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID() on empty context = %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want req-123", got)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	if FromContext(context.Background(), base) != base {
		t.Error("FromContext without fields should return the logger unchanged")
	}

	ctx := WithRequestID(context.Background(), "req-9")
	FromContext(ctx, base).Info("hello")
	if !strings.Contains(buf.String(), "request_id=req-9") {
		t.Errorf("missing request_id in %q", buf.String())
	}

	if FromContext(ctx, nil) == nil {
		t.Error("FromContext should fall back to the default logger")
	}
}
