package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]CheckFunc
		advisory map[string]CheckFunc
		want     string
	}{
		{
			name: "no checks",
			want: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"storage": func(context.Context) error { return nil },
				"engine":  func(context.Context) error { return nil },
			},
			want: StatusReady,
		},
		{
			name: "critical failing",
			checks: map[string]CheckFunc{
				"storage": func(context.Context) error { return errors.New("database is locked") },
			},
			advisory: map[string]CheckFunc{
				"engine": func(context.Context) error { return nil },
			},
			want: StatusUnavailable,
		},
		{
			name: "advisory failing",
			checks: map[string]CheckFunc{
				"storage": func(context.Context) error { return nil },
			},
			advisory: map[string]CheckFunc{
				"engine": func(context.Context) error { return errors.New("learning queue is full") },
			},
			want: StatusDegraded,
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"storage": func(ctx context.Context) error {
					<-ctx.Done()
					time.Sleep(10 * time.Millisecond)
					return nil
				},
			},
			want: StatusUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(50 * time.Millisecond)
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}
			for name, check := range tt.advisory {
				c.RegisterAdvisory(name, check)
			}

			status := c.CheckReadiness(context.Background())
			if status.Status != tt.want {
				t.Errorf("Status = %q, want %q (%+v)", status.Status, tt.want, status.Checks)
			}
			if n := len(tt.checks) + len(tt.advisory); len(status.Checks) != n {
				t.Errorf("got %d results, want %d", len(status.Checks), n)
			}
		})
	}
}

func TestListChecks(t *testing.T) {
	c := New(0)
	c.RegisterCheck("storage", func(context.Context) error { return nil })
	c.RegisterCheck("engine", func(context.Context) error { return nil })
	c.RegisterAdvisory("engine", func(context.Context) error { return nil })

	got := c.ListChecks()
	if len(got) != 2 || got[0] != "engine" || got[1] != "storage" {
		t.Errorf("ListChecks() = %v", got)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("storage", func(context.Context) error { return errors.New("unavailable") })

	mux := http.NewServeMux()
	Register(mux, c, BuildInfo{Version: "1.2.3"})

	tests := []struct {
		method string
		path   string
		code   int
		status string
	}{
		{http.MethodGet, "/health", http.StatusOK, "ok"},
		{http.MethodGet, "/ready", http.StatusServiceUnavailable, StatusUnavailable},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed, ""},
		{http.MethodHead, "/health", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d", rec.Code, tt.code)
			}
			if tt.status == "" {
				return
			}
			var body HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Status != tt.status {
				t.Errorf("status = %q, want %q", body.Status, tt.status)
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info BuildInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.3" || info.GoVersion == "" {
		t.Errorf("unexpected version info %+v", info)
	}
}
