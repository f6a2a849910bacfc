package notifier_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/notifier"
)

func TestNotifier_Enabled_CallsLibraryRefresh(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/Library/Refresh" {
			t.Errorf("expected /Library/Refresh, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Emby-Token") != "testkey" {
			t.Errorf("expected X-Emby-Token: testkey, got %s", r.Header.Get("X-Emby-Token"))
		}
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := domain.MediaServerConfig{Enabled: true, URL: ts.URL, APIKey: "testkey"}
	n := notifier.New(nil)
	if err := n.NotifyMediaServer(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("server was not called")
	}
}

func TestNotifier_Disabled_DoesNotCall(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	cfg := domain.MediaServerConfig{Enabled: false, URL: ts.URL, APIKey: "key"}
	n := notifier.New(nil)
	if err := n.NotifyMediaServer(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("server should not have been called when disabled")
	}
}

func TestNotifier_EmptyURL_ReturnsNil(t *testing.T) {
	cfg := domain.MediaServerConfig{Enabled: true, URL: "", APIKey: "key"}
	n := notifier.New(nil)
	if err := n.NotifyMediaServer(context.Background(), cfg); err != nil {
		t.Fatalf("expected nil for empty URL, got %v", err)
	}
}

func TestNotifier_TestConnection_RejectsUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	cfg := domain.MediaServerConfig{Enabled: true, URL: ts.URL, APIKey: "wrong"}
	n := notifier.New(nil)
	if got := n.TestConnection(context.Background(), cfg); got != "invalid API key" {
		t.Fatalf("expected invalid API key message, got %q", got)
	}
}
