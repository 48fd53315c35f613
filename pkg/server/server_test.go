package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/decider"
	"mercator-hq/callisto/pkg/engine"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/registry"
	"mercator-hq/callisto/pkg/telemetry/health"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	ts, reg, _ := newTestServerEngine(t)
	return ts, reg
}

func newTestServerEngine(t *testing.T) (*httptest.Server, *registry.Registry, *engine.Engine) {
	t.Helper()

	reg := registry.New(nil, nil, nil)
	p, err := model.New("https://%h.ezproxy.gmu.edu/%p", true, true, "journal.example.org")
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, prometheus.NewRegistry())
	e := engine.New(engine.Config{Transparent: true}, engine.Deps{
		Registry: reg,
		Decider:  decider.New(reg),
		Metrics:  collector,
	})
	t.Cleanup(func() { e.Close() })

	checker := health.New(time.Second)
	checker.RegisterCheck("engine", func(context.Context) error { return nil })

	srv := NewServer(&config.ServerConfig{}, Deps{
		Engine:    e,
		Registry:  reg,
		Metrics:   collector,
		Health:    checker,
		BuildInfo: health.BuildInfo{Version: "test"},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, reg, e
}

func do(t *testing.T, method, target, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, strings.TrimSpace(string(b))
}

func TestServer_Exchanges(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name     string
		stage    string
		body     string
		wantCode int
		wantBody string
	}{
		{
			name:     "redirect known host",
			stage:    "before-request",
			body:     `{"requestId":"1","url":"http://journal.example.org/a"}`,
			wantCode: http.StatusOK,
			wantBody: `{"redirectTo":"https://journal.example.org.ezproxy.gmu.edu/a"}`,
		},
		{
			name:     "redirect only once per request",
			stage:    "headers-received",
			body:     `{"requestId":"1","url":"http://journal.example.org/a","statusCode":200}`,
			wantCode: http.StatusOK,
			wantBody: `{}`,
		},
		{
			name:     "unknown host passes",
			stage:    "before-request",
			body:     `{"requestId":"2","url":"http://other.example.org/"}`,
			wantCode: http.StatusOK,
			wantBody: `{}`,
		},
		{
			name:     "completion",
			stage:    "completed",
			body:     `{"requestId":"1","url":"http://journal.example.org/a","statusCode":200}`,
			wantCode: http.StatusOK,
			wantBody: `{}`,
		},
		{
			name:     "unknown stage",
			stage:    "after-party",
			body:     `{"url":"http://journal.example.org/a"}`,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "invalid body",
			stage:    "before-request",
			body:     `{"url":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing url",
			stage:    "before-request",
			body:     `{"requestId":"3"}`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+"/v1/exchanges/"+tt.stage, tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantCode, body)
			}
			if tt.wantBody != "" && body != tt.wantBody {
				t.Errorf("body = %s, want %s", body, tt.wantBody)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}

	resp, _ := do(t, http.MethodGet, ts.URL+"/v1/exchanges/before-request", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET on exchanges = %d, want 405", resp.StatusCode)
	}
}

func TestServer_ExchangesWithoutRequestID(t *testing.T) {
	ts, _, e := newTestServerEngine(t)

	post := func(stage, body string) string {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/exchanges/"+stage, strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		// A fixed transport id must not stand in for the exchange id.
		req.Header.Set("X-Request-ID", "transport-call")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d (%s)", stage, resp.StatusCode, b)
		}
		return strings.TrimSpace(string(b))
	}

	want := `{"redirectTo":"https://journal.example.org.ezproxy.gmu.edu/a"}`
	for i := 0; i < 3; i++ {
		if got := post("before-request", `{"url":"http://journal.example.org/a"}`); got != want {
			t.Errorf("before-request %d = %s, want %s", i, got, want)
		}
		post("completed", `{"url":"http://journal.example.org/a","statusCode":200}`)
	}

	if n := e.Guarded(); n != 0 {
		t.Errorf("exchanges without an id must not be remembered, got %d entries", n)
	}
}

func TestServer_Proxies(t *testing.T) {
	ts, reg := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/v1/proxies",
		`{"template":"http://ezproxy.example.edu:2048/%p","multiHost":false,"hosts":["db.example.com"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d (%s)", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, ts.URL+"/v1/proxies",
		`{"template":"https://%h.bad.example.edu/%p","multiHost":false,"hosts":["x.example.com"]}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("malformed template status = %d, want 422 (%s)", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/v1/proxies", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list []ProxyResponse
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatalf("invalid list JSON: %v", err)
	}
	if len(list) != 2 || list[1].Index != 1 || list[1].Template != "http://ezproxy.example.edu:2048/%p" {
		t.Fatalf("unexpected list %+v", list)
	}

	tests := []struct {
		index string
		code  int
	}{
		{"abc", http.StatusBadRequest},
		{"7", http.StatusNotFound},
		{"0", http.StatusNoContent},
	}
	for _, tt := range tests {
		resp, body := do(t, http.MethodDelete, ts.URL+"/v1/proxies/"+tt.index, "")
		if resp.StatusCode != tt.code {
			t.Errorf("DELETE %s = %d, want %d (%s)", tt.index, resp.StatusCode, tt.code, body)
		}
	}

	if proxies, _ := reg.Stats(); proxies != 1 {
		t.Errorf("Stats() proxies = %d, want 1", proxies)
	}
	if reg.OwnerOf("journal.example.org") != nil {
		t.Error("removed proxy still owns its host")
	}
}

func TestServer_EditProxy(t *testing.T) {
	ts, reg := newTestServer(t)

	tests := []struct {
		name  string
		index string
		body  string
		code  int
	}{
		{
			name:  "bad index",
			index: "abc",
			body:  `{"template":"https://%h.ezproxy.gmu.edu/%p","multiHost":true}`,
			code:  http.StatusBadRequest,
		},
		{
			name:  "unknown index",
			index: "5",
			body:  `{"template":"https://%h.ezproxy.gmu.edu/%p","multiHost":true}`,
			code:  http.StatusNotFound,
		},
		{
			name:  "invalid body",
			index: "0",
			body:  `{"template":`,
			code:  http.StatusBadRequest,
		},
		{
			name:  "malformed template",
			index: "0",
			body:  `{"template":"https://%h.ezproxy.gmu.edu/%p","multiHost":false,"hosts":["journal.example.org"]}`,
			code:  http.StatusUnprocessableEntity,
		},
		{
			name:  "replaces fields",
			index: "0",
			body:  `{"template":"https://%h.proxy.gmu.edu/%p","multiHost":true,"autoAssociate":false,"hosts":["books.example.org"]}`,
			code:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPut, ts.URL+"/v1/proxies/"+tt.index, tt.body)
			if resp.StatusCode != tt.code {
				t.Fatalf("PUT %s = %d, want %d (%s)", tt.index, resp.StatusCode, tt.code, body)
			}
		})
	}

	records := reg.Records()
	if len(records) != 1 {
		t.Fatalf("expected one proxy, got %+v", records)
	}
	got := records[0]
	if got.Template != "https://%h.proxy.gmu.edu/%p" || !got.MultiHost || got.AutoAssociate {
		t.Errorf("unexpected record after edit %+v", got)
	}
	if reg.OwnerOf("journal.example.org") != nil {
		t.Error("dropped host must leave the index")
	}
	if reg.OwnerOf("books.example.org") == nil {
		t.Error("new host must be indexed")
	}
	if out, _, err := reg.ToProxied("http://books.example.org/a", true); err != nil || out != "https://books.example.org.proxy.gmu.edu/a" {
		t.Errorf("ToProxied = %q, %v", out, err)
	}
}

func TestServer_Convert(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		direction string
		url       string
		code      int
		want      string
	}{
		{"canonical", "https://journal.example.org.ezproxy.gmu.edu/a/b", http.StatusOK, "http://journal.example.org/a/b"},
		{"proxied", "http://journal.example.org/a/b?x=1", http.StatusOK, "https://journal.example.org.ezproxy.gmu.edu/a/b?x=1"},
		{"canonical", "https://unrelated.example.com/", http.StatusNotFound, ""},
		{"proxied", "http://unknown.example.com/", http.StatusNotFound, ""},
		{"sideways", "http://journal.example.org/", http.StatusBadRequest, ""},
		{"canonical", "", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.direction, tt.url), func(t *testing.T) {
			q := url.Values{"direction": {tt.direction}, "url": {tt.url}}
			resp, body := do(t, http.MethodGet, ts.URL+"/v1/convert?"+q.Encode(), "")
			if resp.StatusCode != tt.code {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.code, body)
			}
			if tt.want == "" {
				return
			}
			var out ConvertResponse
			if err := json.Unmarshal([]byte(body), &out); err != nil {
				t.Fatal(err)
			}
			if out.URL != tt.want {
				t.Errorf("url = %q, want %q", out.URL, tt.want)
			}
		})
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/health", "/ready", "/version"} {
		resp, body := do(t, http.MethodGet, ts.URL+path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s = %d (%s)", path, resp.StatusCode, body)
		}
	}

	do(t, http.MethodPost, ts.URL+"/v1/exchanges/before-request", `{"requestId":"m","url":"http://journal.example.org/"}`)
	resp, body := do(t, http.MethodGet, ts.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `callisto_engine_decisions_total{outcome="redirect"`) {
		t.Errorf("decision metric missing from scrape:\n%s", body)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	reg := registry.New(nil, nil, nil)
	e := engine.New(engine.Config{}, engine.Deps{Registry: reg, Decider: decider.New(reg)})
	defer e.Close()

	srv := NewServer(&config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}, Deps{Engine: e, Registry: reg})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !srv.IsRunning() {
		t.Error("IsRunning() = false after start")
	}

	resp, _ := do(t, http.MethodGet, "http://"+srv.Addr().String()+"/v1/proxies", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /v1/proxies = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestServer_APIKeyAuth(t *testing.T) {
	reg := registry.New(nil, nil, nil)
	e := engine.New(engine.Config{}, engine.Deps{Registry: reg, Decider: decider.New(reg)})
	t.Cleanup(func() { e.Close() })

	srv := NewServer(&config.ServerConfig{
		Auth: config.AuthConfig{
			Enabled: true,
			APIKeys: []config.APIKeyConfig{{Name: "transport", Key: "secret"}},
		},
	}, Deps{Engine: e, Registry: reg, Health: health.New(time.Second)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, _ := do(t, http.MethodGet, ts.URL+"/v1/proxies", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("GET /v1/proxies without key = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/proxies", nil)
	req.Header.Set("Authorization", "Bearer secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("GET /v1/proxies with key = %d, want 200", authed.StatusCode)
	}

	if resp, _ := do(t, http.MethodGet, ts.URL+"/health", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d, health must stay open", resp.StatusCode)
	}
}

func writeTestCert(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestServer_TLS(t *testing.T) {
	certFile, keyFile := writeTestCert(t, t.TempDir())

	reg := registry.New(nil, nil, nil)
	e := engine.New(engine.Config{}, engine.Deps{Registry: reg, Decider: decider.New(reg)})
	defer e.Close()

	srv := NewServer(&config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ShutdownTimeout: time.Second,
		TLS:             config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.2"},
	}, Deps{Engine: e, Registry: reg})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 - self-signed test certificate
	}}
	resp, err := client.Get("https://" + srv.Addr().String() + "/v1/proxies")
	if err != nil {
		t.Fatalf("HTTPS request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /v1/proxies = %d", resp.StatusCode)
	}
	if resp.TLS == nil {
		t.Error("response was not served over TLS")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_TLSMissingCert(t *testing.T) {
	reg := registry.New(nil, nil, nil)
	srv := NewServer(&config.ServerConfig{
		ListenAddress: "127.0.0.1:0",
		TLS:           config.TLSConfig{Enabled: true, CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"},
	}, Deps{Registry: reg})

	if err := srv.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "TLS") {
		t.Errorf("Start() error = %v, want TLS configuration error", err)
	}
}
