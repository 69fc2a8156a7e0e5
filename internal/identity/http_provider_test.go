package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProviderVerified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/identities/cust_bob" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"primaryContactVerified": true}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	verified, err := p.IsPrimaryContactVerified(context.Background(), "cust_bob")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !verified {
		t.Error("expected verified")
	}
}

func TestHTTPProviderUnknownIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	verified, err := p.IsPrimaryContactVerified(context.Background(), "cust_ghost")
	if err != nil {
		t.Fatalf("a 404 is a definitive answer, got error: %v", err)
	}
	if verified {
		t.Error("unknown identity reported verified")
	}
}

func TestHTTPProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	_, err := p.IsPrimaryContactVerified(context.Background(), "cust_bob")
	if !errors.Is(err, ErrLookupFailed) {
		t.Errorf("err = %v, want ErrLookupFailed", err)
	}
}

func TestHTTPProviderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 50*time.Millisecond)
	_, err := p.IsPrimaryContactVerified(context.Background(), "cust_bob")
	if !errors.Is(err, ErrLookupFailed) {
		t.Errorf("err = %v, want ErrLookupFailed", err)
	}
}

func TestHTTPProviderBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	_, err := p.IsPrimaryContactVerified(context.Background(), "cust_bob")
	if !errors.Is(err, ErrLookupFailed) {
		t.Errorf("err = %v, want ErrLookupFailed", err)
	}
}

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	verified, err := p.IsPrimaryContactVerified(ctx, "cust_unknown")
	if err != nil || verified {
		t.Errorf("unknown identity = (%v, %v), want (false, nil)", verified, err)
	}

	p.SetVerified("cust_bob", true)
	verified, err = p.IsPrimaryContactVerified(ctx, "cust_bob")
	if err != nil || !verified {
		t.Errorf("verified identity = (%v, %v), want (true, nil)", verified, err)
	}

	p.FailLookups(true)
	if _, err := p.IsPrimaryContactVerified(ctx, "cust_bob"); !errors.Is(err, ErrLookupFailed) {
		t.Errorf("err = %v, want ErrLookupFailed", err)
	}
}
