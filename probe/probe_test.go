package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetch_ChallengePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Chrome/") {
			t.Errorf("User-Agent = %q, want a Chrome UA", ua)
		}
		if got := r.Header.Get("X-Test"); got != "yes" {
			t.Errorf("custom header X-Test = %q, want yes", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html><head><title> Just a moment... </title></head><body>Checking your browser</body></html>"))
	}))
	defer srv.Close()

	res, err := NewFetcher(time.Second).Fetch(context.Background(), srv.URL, map[string]string{"X-Test": "yes"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", res.StatusCode)
	}
	if res.Title != "Just a moment..." {
		t.Errorf("Title = %q", res.Title)
	}
	if !strings.Contains(res.HTML, "Checking your browser") {
		t.Errorf("HTML missing body: %q", res.HTML)
	}
	if res.FinalURL != srv.URL {
		t.Errorf("FinalURL = %q, want %q", res.FinalURL, srv.URL)
	}
}

func TestFetch_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<title>done</title>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := NewFetcher(0).Fetch(context.Background(), srv.URL+"/start", nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.FinalURL != srv.URL+"/end" {
		t.Errorf("FinalURL = %q", res.FinalURL)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
}

func TestFetch_NonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := NewFetcher(time.Second).Fetch(context.Background(), srv.URL, nil); err == nil {
		t.Fatal("expected error for non-HTML response")
	}
}

func TestFetch_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	start := time.Now()
	if _, err := NewFetcher(50*time.Millisecond).Fetch(context.Background(), srv.URL, nil); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Fetch did not honor its timeout")
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<html><head><title>Hello</title></head></html>", "Hello"},
		{"<title>  padded  </title>", "padded"},
		{"<title></title>", ""},
		{"<p>no title</p>", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := extractTitle(tt.in); got != tt.want {
			t.Errorf("extractTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsHTMLContentType(t *testing.T) {
	for ct, want := range map[string]bool{
		"text/html":                 true,
		"TEXT/HTML; charset=utf-8":  true,
		"application/xhtml+xml":     true,
		"application/json":          false,
		"":                          false,
		"text/plain; charset=utf-8": false,
	} {
		if got := isHTMLContentType(ct); got != want {
			t.Errorf("isHTMLContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}
