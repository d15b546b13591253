package trust

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"
)

// responder answers every OCSP request with status, signed by issuer
func responder(t *testing.T, issuer *keyedCert, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req, err := ocsp.ParseRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		template := ocsp.Response{
			Status:       status,
			SerialNumber: req.SerialNumber,
			ThisUpdate:   time.Now().Add(-time.Minute),
			NextUpdate:   time.Now().Add(time.Hour),
		}
		if status == ocsp.Revoked {
			template.RevokedAt = time.Now().Add(-time.Hour)
		}

		resp, err := ocsp.CreateResponse(issuer.cert, issuer.cert, template, issuer.key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(resp)
	}))
}

func TestCheckRevocation(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		notRevoked bool
		wantErr    bool
	}{
		{"good", ocsp.Good, true, false},
		{"revoked", ocsp.Revoked, false, false},
		{"unknown", ocsp.Unknown, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := createCert(t, "AC Raiz Teste", true, nil)
			leaf := createCert(t, "EMPRESA LTDA", false, root)

			var hits atomic.Int32
			srv := responder(t, root, tt.status, &hits)
			defer srv.Close()
			leaf.cert.OCSPServer = []string{srv.URL}

			store, _ := NewEmpty(WithOCSPClient(NewOCSPClient(srv.Client())))

			notRevoked, err := store.CheckRevocation(context.Background(), leaf.cert, root.cert)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got %v, wantErr %v", err, tt.wantErr)
			}
			if notRevoked != tt.notRevoked {
				t.Errorf("notRevoked: got %v, want %v", notRevoked, tt.notRevoked)
			}
			if tt.wantErr && !errors.Is(err, ErrOCSPUnknown) {
				t.Errorf("expected ErrOCSPUnknown, got %v", err)
			}
		})
	}
}

func TestCheckRevocation_Cached(t *testing.T) {
	root := createCert(t, "AC Raiz Teste", true, nil)
	leaf := createCert(t, "EMPRESA LTDA", false, root)

	var hits atomic.Int32
	srv := responder(t, root, ocsp.Good, &hits)
	defer srv.Close()
	leaf.cert.OCSPServer = []string{srv.URL}

	store, _ := NewEmpty(WithOCSPClient(NewOCSPClient(srv.Client())))

	for i := 0; i < 3; i++ {
		if ok, err := store.CheckRevocation(context.Background(), leaf.cert, root.cert); err != nil || !ok {
			t.Fatalf("check %d: ok=%v err=%v", i, ok, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("responder hits: got %d, want 1", hits.Load())
	}
}

func TestCheckRevocation_NoResponder(t *testing.T) {
	root := createCert(t, "AC Raiz Teste", true, nil)
	leaf := createCert(t, "EMPRESA LTDA", false, root)

	store, _ := NewEmpty()
	notRevoked, err := store.CheckRevocation(context.Background(), leaf.cert, root.cert)
	if err != nil || !notRevoked {
		t.Errorf("got notRevoked=%v err=%v, want true <nil>", notRevoked, err)
	}

	if _, err := store.CheckRevocation(context.Background(), leaf.cert, nil); err == nil {
		t.Error("expected error without issuer")
	}
}

func TestCheckRevocation_SoftFail(t *testing.T) {
	root := createCert(t, "AC Raiz Teste", true, nil)
	leaf := createCert(t, "EMPRESA LTDA", false, root)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	leaf.cert.OCSPServer = []string{srv.URL}

	hard, _ := NewEmpty(WithOCSPClient(NewOCSPClient(srv.Client())))
	if ok, err := hard.CheckRevocation(context.Background(), leaf.cert, root.cert); err == nil || ok {
		t.Errorf("hard fail: got ok=%v err=%v", ok, err)
	}

	soft, _ := NewEmpty(WithSoftFail(), WithOCSPClient(NewOCSPClient(srv.Client())))
	if !soft.SoftFail() {
		t.Fatal("soft-fail not enabled")
	}
	if ok, err := soft.CheckRevocation(context.Background(), leaf.cert, root.cert); err == nil || !ok {
		t.Errorf("soft fail: got ok=%v err=%v, want true with error", ok, err)
	}
}

func TestOCSPCache(t *testing.T) {
	root := createCert(t, "AC Raiz Teste", true, nil)
	leaf := createCert(t, "EMPRESA LTDA", false, root)

	cache := NewOCSPCache(time.Hour)
	if _, found := cache.Get(leaf.cert); found {
		t.Error("expected miss on empty cache")
	}

	cache.Set(leaf.cert, false)
	notRevoked, found := cache.Get(leaf.cert)
	if !found || notRevoked {
		t.Errorf("got notRevoked=%v found=%v, want false true", notRevoked, found)
	}

	other := *leaf.cert
	other.SerialNumber = new(big.Int).Add(leaf.cert.SerialNumber, big.NewInt(1))
	if _, found := cache.Get(&other); found {
		t.Error("different serial should miss")
	}

	if cache.Len() != 1 {
		t.Errorf("len: got %d, want 1", cache.Len())
	}

	if _, found := cache.Get(nil); found {
		t.Error("nil certificate should miss")
	}
}

func TestOCSPCache_Expiration(t *testing.T) {
	root := createCert(t, "AC Raiz Teste", true, nil)

	cache := NewOCSPCache(10 * time.Millisecond)
	cache.Set(root.cert, true)

	time.Sleep(20 * time.Millisecond)

	if _, found := cache.Get(root.cert); found {
		t.Error("expected miss after expiration")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry not evicted: len %d", cache.Len())
	}
}
