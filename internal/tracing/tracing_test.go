package tracing

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestSetupEnabled(t *testing.T) {
	// The OTLP exporter connects lazily, so Setup succeeds without a
	// collector listening. Shutdown must still return within the deadline.
	shutdown, err := Setup(Config{
		Enabled:     true,
		Endpoint:    "localhost:4318",
		ServiceName: "storyforge-test",
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestMiddlewarePassesRequestsThrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("dispatched"))
	})

	server := httptest.NewServer(Middleware()(inner))
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/agents/process")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "dispatched" {
		t.Fatalf("inner handler response lost, got %q", body)
	}
}

func TestHTTPTransport(t *testing.T) {
	if HTTPTransport(nil) == nil {
		t.Fatal("nil base should fall back to the default transport")
	}
	if HTTPTransport(http.DefaultTransport) == nil {
		t.Fatal("wrapping a custom base returned nil")
	}
}
