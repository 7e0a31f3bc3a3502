package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(endpoint string) *Client {
	return NewClient(Config{
		Endpoint:  endpoint,
		APIKey:    "test-key",
		ProjectID: "test-project",
		RetryConfig: &RetryConfig{
			MaxRetries:     2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	})
}

func TestCreateUserReturnsProviderID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/users" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.Header.Get("X-Project-ID"); got != "test-project" {
			t.Errorf("unexpected project header %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"user-123","email":"a@example.com"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	id, err := client.CreateUser(context.Background(), "a@example.com", "pw", "A", "B", Metadata{Role: "TEACHER"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if id != "user-123" {
		t.Fatalf("expected user-123, got %q", id)
	}
}

func TestCreateUserConflict(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.CreateUser(context.Background(), "dup@example.com", "pw", "", "", Metadata{})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// A conflict is a definitive answer; it must never be retried.
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 call, got %d", n)
	}
}

func TestDeleteUserNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL)
	if err := client.DeleteUser(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"user-9"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	id, err := client.CreateUser(context.Background(), "r@example.com", "pw", "", "", Metadata{})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if id != "user-9" {
		t.Fatalf("expected user-9, got %q", id)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestRetriesExhaustedReturnsProviderError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"overloaded","request_id":"req-1"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.CreateUser(context.Background(), "x@example.com", "pw", "", "", Metadata{})

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", provErr.StatusCode)
	}
	if provErr.RequestID != "req-1" {
		t.Fatalf("expected request id req-1, got %q", provErr.RequestID)
	}
	// Initial attempt plus MaxRetries.
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 calls, got %d", n)
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	cases := []struct {
		code      int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusConflict, false},
		{http.StatusNotFound, false},
		{http.StatusBadRequest, false},
		{http.StatusOK, false},
	}
	for _, tc := range cases {
		if got := IsRetryableStatusCode(tc.code); got != tc.retryable {
			t.Errorf("IsRetryableStatusCode(%d) = %v, want %v", tc.code, got, tc.retryable)
		}
	}
}

func TestCalculateBackoffCapped(t *testing.T) {
	config := RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
	}

	if got := CalculateBackoff(0, config); got != 100*time.Millisecond {
		t.Errorf("attempt 0: expected 100ms, got %v", got)
	}
	if got := CalculateBackoff(1, config); got != 200*time.Millisecond {
		t.Errorf("attempt 1: expected 200ms, got %v", got)
	}
	if got := CalculateBackoff(4, config); got != 300*time.Millisecond {
		t.Errorf("attempt 4: expected cap at 300ms, got %v", got)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{
		Endpoint: server.URL,
		APIKey:   "k",
		RetryConfig: &RetryConfig{
			MaxRetries:     5,
			InitialBackoff: time.Hour,
			MaxBackoff:     time.Hour,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := client.DeleteUser(ctx, "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
}
