package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unihub/realtime/internal/auth"
	"github.com/unihub/realtime/internal/model"
)

func testCredential(t *testing.T) *auth.Credential {
	t.Helper()
	cred, err := auth.NewCredential("tok-abcdef123456", model.RoleAdmin, "A1")
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	return cred
}

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com/", nil)

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with timeout option", func(t *testing.T) {
		c := NewClient("https://api.example.com", nil, WithTimeout(5*time.Second))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
	})

	t.Run("with retries option", func(t *testing.T) {
		c := NewClient("https://api.example.com", nil, WithRetries(5, 2*time.Second))
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.retryBackoff != 2*time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 2*time.Second)
		}
	})

	t.Run("with logger option", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://api.example.com", nil, WithLogger(logger))
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://api.example.com", nil, WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})
}

func TestFetchDashboard(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"counts":{"users":10}}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testCredential(t))
	data, err := c.FetchDashboard(context.Background(), model.RoleAdmin)
	if err != nil {
		t.Fatalf("FetchDashboard failed: %v", err)
	}

	if gotPath != "/admin/dashboard" {
		t.Errorf("path = %q, want /admin/dashboard", gotPath)
	}
	if gotAuth != "Bearer tok-abcdef123456" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}

	counts, ok := data["counts"].(map[string]any)
	if !ok {
		t.Fatalf("counts = %T, want object", data["counts"])
	}
	if counts["users"] != float64(10) {
		t.Errorf("users = %v, want 10", counts["users"])
	}
}

func TestFetchDashboard_Paths(t *testing.T) {
	tests := []struct {
		role model.Role
		want string
	}{
		{model.RoleStudent, "/student/dashboard"},
		{model.RoleLandlord, "/landlord/dashboard"},
		{model.RoleFoodProvider, "/food-provider/dashboard"},
		{model.RoleAdmin, "/admin/dashboard"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got, err := DashboardPath(tt.role)
			if err != nil {
				t.Fatalf("DashboardPath: %v", err)
			}
			if got != tt.want {
				t.Errorf("DashboardPath(%s) = %q, want %q", tt.role, got, tt.want)
			}
		})
	}

	if _, err := DashboardPath(model.Role("guest")); !errors.Is(err, model.ErrInvalidRole) {
		t.Errorf("DashboardPath(guest) error = %v, want ErrInvalidRole", err)
	}
}

func TestFetchDashboard_BarePayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bookings":3}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	data, err := c.FetchDashboard(context.Background(), model.RoleStudent)
	if err != nil {
		t.Fatalf("FetchDashboard failed: %v", err)
	}
	if data["bookings"] != float64(3) {
		t.Errorf("bookings = %v, want 3", data["bookings"])
	}
}

func TestFetchDashboard_Unsuccessful(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"profile incomplete"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	_, err := c.FetchDashboard(context.Background(), model.RoleLandlord)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Message != "profile incomplete" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "profile incomplete")
	}
}

func TestFetchDashboard_NullData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":null}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	data, err := c.FetchDashboard(context.Background(), model.RoleStudent)
	if err != nil {
		t.Fatalf("FetchDashboard failed: %v", err)
	}
	if data == nil || len(data) != 0 {
		t.Errorf("data = %v, want empty map", data)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{400, false},
		{401, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status, Message: http.StatusText(tt.status)}
		if got := err.IsRetryable(); got != tt.retryable {
			t.Errorf("APIError{%d}.IsRetryable() = %v, want %v", tt.status, got, tt.retryable)
		}
	}
}

func TestRetry_ServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"success":true,"data":{"ok":true}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, WithRetries(3, time.Millisecond))
	data, err := c.FetchDashboard(context.Background(), model.RoleStudent)
	if err != nil {
		t.Fatalf("FetchDashboard failed: %v", err)
	}
	if data["ok"] != true {
		t.Errorf("ok = %v, want true", data["ok"])
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"message":"token expired"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, WithRetries(3, time.Millisecond))
	_, err := c.FetchDashboard(context.Background(), model.RoleStudent)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Message != "token expired" {
		t.Errorf("Message = %q, want envelope message", apiErr.Message)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, WithRetries(2, time.Millisecond))
	_, err := c.FetchDashboard(context.Background(), model.RoleStudent)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(server.URL, nil, WithRetries(3, time.Hour))
	_, err := c.FetchDashboard(ctx, model.RoleStudent)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
