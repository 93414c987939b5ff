package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://tenant.example.com/"
	testAudience = "https://api.example.com"
)

// fakeProvider serves a JWKS document and signs tokens with its keys.
type fakeProvider struct {
	server *httptest.Server
	hits   atomic.Int32
	gate   chan struct{} // when set, responses wait until it is closed

	mu     sync.Mutex
	keys   map[string]*rsa.PrivateKey
	extra  []map[string]string
	status int
	body   string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{keys: map[string]*rsa.PrivateKey{}, status: http.StatusOK}
	p.server = httptest.NewServer(http.HandlerFunc(p.serveJWKS))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) url() string {
	return p.server.URL + "/.well-known/jwks.json"
}

func (p *fakeProvider) addKey(t *testing.T, kid string) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p.mu.Lock()
	p.keys[kid] = key
	p.mu.Unlock()
	return key
}

func (p *fakeProvider) removeKey(kid string) {
	p.mu.Lock()
	delete(p.keys, kid)
	p.mu.Unlock()
}

func (p *fakeProvider) serveJWKS(w http.ResponseWriter, _ *http.Request) {
	p.hits.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != http.StatusOK {
		w.WriteHeader(p.status)
		return
	}
	if p.body != "" {
		_, _ = w.Write([]byte(p.body))
		return
	}

	keys := make([]map[string]string, 0, len(p.keys)+len(p.extra))
	for kid, key := range p.keys {
		keys = append(keys, map[string]string{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	keys = append(keys, p.extra...)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"keys": keys})
}

func validClaims() jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   "auth0|user-1",
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{testAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}
