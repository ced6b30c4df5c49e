package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOutbound_AttachesAPIKey(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	resp, err := NewOutbound("secret-key").Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp.Body.Close()
	if got != "Api-Key secret-key" {
		t.Fatalf("Authorization = %q, want %q", got, "Api-Key secret-key")
	}
}

func TestNewOutbound_EmptyKeySendsNoHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	resp, err := NewOutbound("").Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp.Body.Close()
	if got != "" {
		t.Fatalf("Authorization = %q, want empty", got)
	}
}

func TestNewOutbound_NoClientTimeout(t *testing.T) {
	if c := NewOutbound("k"); c.Timeout != 0 {
		t.Fatalf("client timeout = %s, want none", c.Timeout)
	}
}
