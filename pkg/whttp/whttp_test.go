package whttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSendHTTPRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "text/xml" {
			t.Errorf("content-type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/xml")
		w.Write(append([]byte("echo:"), body...))
	}))
	defer srv.Close()

	client, err := NewClient(ClientOptions{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: []WHTTPHeader{{Name: "Content-Type", Value: "text/xml"}},
		Body:    []byte("<a/>"),
	}, client)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK || res.BodyString() != "echo:<a/>" {
		t.Fatalf("got %d %q", res.StatusCode, res.BodyString())
	}
	if res.HTTPTitle != "" {
		t.Fatalf("unexpected title %q for xml body", res.HTTPTitle)
	}
}

func TestSendHTTPRequestRetriesAndPassesThrough(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "<html><head><title>\n  Service\n Unavailable </title></head><body></body></html>")
	}))
	defer srv.Close()

	client, err := NewClient(ClientOptions{Retries: 1})
	if err != nil {
		t.Fatal(err)
	}
	client.RetryWaitMin = 0
	client.RetryWaitMax = 0

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{Method: http.MethodGet, URL: srv.URL}, client)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if res.HTTPTitle != "Service Unavailable" {
		t.Fatalf("title = %q", res.HTTPTitle)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestNewClientBadProxy(t *testing.T) {
	if _, err := NewClient(ClientOptions{Proxy: "://bad"}); err == nil {
		t.Fatal("expected error for invalid proxy")
	}
}
