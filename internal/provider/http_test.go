package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *HTTPCaller) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	caller := NewHTTPCaller("test-key", srv.URL, WithHTTPClient(srv.Client()))
	return srv, caller
}

func TestCall_Success(t *testing.T) {
	_, caller := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var payload chatPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Model != "gpt-4" {
			t.Errorf("unexpected model %q", payload.Model)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello back"}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
		})
	})

	res, err := caller.Call(context.Background(), "gpt-4",
		[]Message{{Role: "user", Content: "hello"}}, 100, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "hello back" {
		t.Errorf("unexpected content %q", res.Content)
	}
	if res.Usage.TotalTokens != 20 {
		t.Errorf("unexpected usage %+v", res.Usage)
	}
}

func TestCall_StatusError(t *testing.T) {
	_, caller := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := caller.Call(context.Background(), "gpt-4", []Message{{Role: "user", Content: "x"}}, 0, 0)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if se.StatusCode() != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", se.StatusCode())
	}
}

func TestCall_EmptyChoices(t *testing.T) {
	_, caller := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := caller.Call(context.Background(), "gpt-4", []Message{{Role: "user", Content: "x"}}, 0, 0)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
