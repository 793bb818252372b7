package security_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tazhibayda/expired-service/internal/security"
)

func TestHMAC_RoundTrip(t *testing.T) {
	tok, err := security.MakeAccess("s3cret", "7", "alice", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	c, err := security.HMACVerifier{Secret: "s3cret"}.ParseAndVerify(context.Background(), tok)
	if err != nil {
		t.Fatal(err)
	}
	if c.UID != "7" || c.Username != "alice" {
		t.Fatalf("claims mismatch: %#v", c)
	}
	if _, err := (security.HMACVerifier{Secret: "other"}).ParseAndVerify(context.Background(), tok); err == nil {
		t.Fatal("wrong secret accepted")
	}
}

func TestHMAC_Expired(t *testing.T) {
	tok, err := security.MakeAccess("s3cret", "7", "alice", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := security.ParseAccess("s3cret", tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestFetcher_RS256(t *testing.T) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA", "kid": "kidA", "use": "sig", "alg": "RS256",
			"n": base64.RawURLEncoding.EncodeToString(k.PublicKey.N.Bytes()),
			"e": base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	claims := security.Claims{
		UID: "9", Username: "mod",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}
	tk := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tk.Header["kid"] = "kidA"
	signed, err := tk.SignedString(k)
	if err != nil {
		t.Fatal(err)
	}

	f := security.NewFetcher(srv.URL, time.Minute)
	c, err := f.ParseAndVerify(context.Background(), signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.UID != "9" || c.Username != "mod" {
		t.Fatalf("claims mismatch: %#v", c)
	}
}

func TestFetcher_UnknownKid(t *testing.T) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA", "kid": "kidA",
			"n": base64.RawURLEncoding.EncodeToString(k.PublicKey.N.Bytes()),
			"e": base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	tk := jwt.NewWithClaims(jwt.SigningMethodRS256, security.Claims{
		UID:              "9",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	tk.Header["kid"] = "rotated"
	signed, err := tk.SignedString(k)
	if err != nil {
		t.Fatal(err)
	}

	f := security.NewFetcher(srv.URL, time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := f.ParseAndVerify(context.Background(), signed); !errors.Is(err, security.ErrInvalidToken) {
			t.Fatalf("err = %v, want ErrInvalidToken", err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("jwks fetched %d times, want 1", n)
	}
}

func signRS256(t *testing.T, k *rsa.PrivateKey, kid string) string {
	t.Helper()
	tk := jwt.NewWithClaims(jwt.SigningMethodRS256, security.Claims{
		UID:              "9",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	tk.Header["kid"] = kid
	signed, err := tk.SignedString(k)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func writeJWKS(w http.ResponseWriter, k *rsa.PrivateKey, kid string) {
	_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
		"kty": "RSA", "kid": kid,
		"n": base64.RawURLEncoding.EncodeToString(k.PublicKey.N.Bytes()),
		"e": base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.PublicKey.E)).Bytes()),
	}}})
}

func TestFetcher_FailingEndpointBacksOff(t *testing.T) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	signed := signRS256(t, k, "kidA")
	f := security.NewFetcher(srv.URL, time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := f.ParseAndVerify(context.Background(), signed); err == nil {
			t.Fatal("token accepted without keys")
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("jwks fetched %d times, want 1", n)
	}
}

func TestFetcher_CancelledCallerDoesNotFailOthers(t *testing.T) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeJWKS(w, k, "kidA")
	}))
	defer srv.Close()

	signed := signRS256(t, k, "kidA")
	f := security.NewFetcher(srv.URL, time.Minute)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.ParseAndVerify(ctxA, signed)
		errA <- err
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("download did not start")
	}

	errB := make(chan error, 1)
	go func() {
		_, err := f.ParseAndVerify(context.Background(), signed)
		errB <- err
	}()

	cancelA()
	if err := <-errA; err == nil {
		t.Fatal("cancelled caller succeeded")
	}
	close(release)

	select {
	case err := <-errB:
		if err != nil {
			t.Fatalf("live caller: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("live caller did not return")
	}
}
