// Package auth verifies bearer tokens issued by an external OIDC identity provider.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized marks every token verification failure.
var ErrUnauthorized = errors.New("unauthorized")

// ErrMissingSubject is returned for tokens without a "sub" claim.
var ErrMissingSubject = errors.New("token has no subject")

// Claims are the verified claims of an access token.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier checks a bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// KeyResolver looks up a signing key by kid.
type KeyResolver interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// JWKSVerifier validates RS256 tokens against keys published by the identity provider.
type JWKSVerifier struct {
	keys   KeyResolver
	parser *jwt.Parser
}

// NewJWKSVerifier creates a verifier that requires the given issuer and audience.
func NewJWKSVerifier(keys KeyResolver, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Verify parses and validates token. All failures wrap ErrUnauthorized.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token header has no kid", ErrKeyNotFound)
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrMissingSubject)
	}
	return claims, nil
}
