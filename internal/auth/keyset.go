package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// minRefreshInterval bounds how often an unknown kid may force a refetch of a cached set.
const minRefreshInterval = 10 * time.Second

// maxJWKSBytes caps the size of a key set document.
const maxJWKSBytes = 1 << 20

// ErrKeySetUnavailable is returned when the provider's key set cannot be fetched or decoded.
var ErrKeySetUnavailable = errors.New("signing key set unavailable")

// ErrKeyNotFound is returned when no key in the set matches the token's kid.
var ErrKeyNotFound = errors.New("unable to find appropriate key")

// jwk is the subset of RFC 7517 members needed for RSA signature keys.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// defaultFetchTimeout bounds a key set fetch when no client timeout is configured.
const defaultFetchTimeout = 10 * time.Second

// KeySet resolves RSA signing keys by kid from a JWKS endpoint.
// With a zero ttl the set is fetched on every lookup. Concurrent fetches are
// coalesced into one request, and lookups never hold a lock across the network.
type KeySet struct {
	url    string
	client *http.Client
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeySet creates a KeySet for the JWKS document at url.
func NewKeySet(url string, client *http.Client, ttl time.Duration) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &KeySet{url: url, client: client, ttl: ttl, now: time.Now}
}

// Key returns the public key for kid, fetching the set when the cache is empty or stale.
// A cached set that lacks kid is refetched once so rotated keys are picked up.
// Waiting for a fetch stops as soon as ctx is done.
func (s *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	keys, fetchedAt, fresh := s.cached()
	if !fresh {
		var err error
		if keys, err = s.fetch(ctx); err != nil {
			return nil, err
		}
		if key, ok := keys[kid]; ok {
			return key, nil
		}
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	if key, ok := keys[kid]; ok {
		return key, nil
	}
	if s.now().Sub(fetchedAt) < minRefreshInterval {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	keys, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

// cached returns the current set and whether it is still within its ttl.
func (s *KeySet) cached() (map[string]*rsa.PublicKey, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fresh := s.keys != nil && s.ttl > 0 && s.now().Sub(s.fetchedAt) < s.ttl
	return s.keys, s.fetchedAt, fresh
}

// fetch downloads the set once for all concurrent callers and stores it.
// The download runs detached from any single caller, bounded by the client timeout.
func (s *KeySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	ch := s.group.DoChan("jwks", func() (interface{}, error) {
		keys, err := s.download(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.keys = keys
		s.fetchedAt = s.now()
		s.mu.Unlock()
		return keys, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrKeySetUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]*rsa.PublicKey), nil
	}
}

func (s *KeySet) download(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrKeySetUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrKeySetUnavailable, s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: unexpected status %d", ErrKeySetUnavailable, s.url, resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: decode key set: %w", ErrKeySetUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") || k.Kid == "" {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			log.Printf("auth: skipping key kid=%s: %v", k.Kid, err)
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := decodeSegment(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	e, err := decodeSegment(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	if len(n) == 0 || len(e) == 0 || len(e) > 4 {
		return nil, errors.New("malformed RSA key")
	}

	exp := 0
	for _, b := range e {
		exp = exp<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}, nil
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
