package security

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownKey   = errors.New("signing key not in JWKS")
	ErrInvalidToken = errors.New("invalid token")
)

// minRefresh bounds how often an unknown kid or a failing endpoint can
// force a JWKS download.
const minRefresh = 10 * time.Second

// downloadTimeout bounds a shared download, which runs detached from the
// request that started it.
const downloadTimeout = 5 * time.Second

// Fetcher verifies RS256 access tokens against the key set published by the
// auth service. Keys are cached for TTL; concurrent refreshes are collapsed.
type Fetcher struct {
	URL string
	TTL time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	failedAt  time.Time
	lastErr   error

	sf     singleflight.Group
	client *http.Client
}

func NewFetcher(jwksURL string, ttl time.Duration) *Fetcher {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Fetcher{URL: jwksURL, TTL: ttl, client: &http.Client{Timeout: 5 * time.Second}}
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jsonWebKey) rsa() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil || len(e) == 0 || len(e) > 4 {
		return nil, errors.New("bad exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}, nil
}

func (f *Fetcher) download(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: status %d", resp.StatusCode)
	}
	var doc struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if pk, err := k.rsa(); err == nil {
			keys[k.Kid] = pk
		}
	}
	return keys, nil
}

func (f *Fetcher) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	f.mu.RLock()
	pk, ok := f.keys[kid]
	age := time.Since(f.fetchedAt)
	failedAt, lastErr := f.failedAt, f.lastErr
	f.mu.RUnlock()
	if ok && age < f.TTL {
		return pk, nil
	}
	if !ok && f.keys != nil && age < minRefresh {
		return nil, ErrUnknownKey
	}
	if !failedAt.IsZero() && time.Since(failedAt) < minRefresh {
		// endpoint failing: serve a stale key rather than hammering it
		if ok {
			return pk, nil
		}
		return nil, fmt.Errorf("jwks unavailable: %w", lastErr)
	}

	ch := f.sf.DoChan("jwks", func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
		defer cancel()
		keys, err := f.download(dctx)
		f.mu.Lock()
		defer f.mu.Unlock()
		if err != nil {
			f.failedAt, f.lastErr = time.Now(), err
			return nil, err
		}
		f.keys, f.fetchedAt = keys, time.Now()
		f.failedAt, f.lastErr = time.Time{}, nil
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if pk, ok := f.keys[kid]; ok {
		return pk, nil
	}
	return nil, ErrUnknownKey
}

func (f *Fetcher) ParseAndVerify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrInvalidToken
		}
		return f.lookup(ctx, kid)
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
