package store

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWTIssuer   = "itskillhub"
	defaultJWTAudience = "itskillhub-api"
	defaultJWTKeyID    = "storefront-active"
)

var defaultJWTLeeway = 30 * time.Second

var (
	// ErrInvalidToken covers malformed, expired and badly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned for tokens revoked by logout or by a
	// user-wide cutoff.
	ErrTokenRevoked = errors.New("token revoked")
)

// JWTConfig configures a JWTSessionStore.
type JWTConfig struct {
	SigningKey *rsa.PrivateKey
	KeyID      string
	// VerifyKeys holds extra kid -> public key entries still accepted
	// during key rotation.
	VerifyKeys map[string]*rsa.PublicKey
	TTL        time.Duration
	Revoker    TokenRevoker
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

// JWTSessionStore issues and validates RS256 session tokens.
type JWTSessionStore struct {
	signer    *rsa.PrivateKey
	kid       string
	verifiers map[string]*rsa.PublicKey
	ttl       time.Duration
	revoker   TokenRevoker
	issuer    string
	audience  string
	leeway    time.Duration
}

// NewJWTSessionStore builds a session store that signs with cfg.SigningKey.
func NewJWTSessionStore(cfg JWTConfig) (*JWTSessionStore, error) {
	if cfg.SigningKey == nil {
		return nil, errors.New("jwt signing key is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	kid := strings.TrimSpace(cfg.KeyID)
	if kid == "" {
		kid = defaultJWTKeyID
	}
	verifiers := map[string]*rsa.PublicKey{kid: &cfg.SigningKey.PublicKey}
	for k, pub := range cfg.VerifyKeys {
		k = strings.TrimSpace(k)
		if k == "" || pub == nil || k == kid {
			continue
		}
		verifiers[k] = pub
	}
	s := &JWTSessionStore{
		signer:    cfg.SigningKey,
		kid:       kid,
		verifiers: verifiers,
		ttl:       cfg.TTL,
		revoker:   cfg.Revoker,
		issuer:    strings.TrimSpace(cfg.Issuer),
		audience:  strings.TrimSpace(cfg.Audience),
		leeway:    cfg.Leeway,
	}
	if s.issuer == "" {
		s.issuer = defaultJWTIssuer
	}
	if s.audience == "" {
		s.audience = defaultJWTAudience
	}
	if s.leeway <= 0 {
		s.leeway = defaultJWTLeeway
	}
	return s, nil
}

// NewSession creates a signed JWT for the user ID.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	jti, err := newTokenID()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        jti,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.signer)
}

// GetUserIDByToken validates a JWT and returns its subject.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	claims, err := s.verify(token)
	if err != nil {
		return "", false, err
	}
	if s.revoker == nil {
		return claims.Subject, true, nil
	}
	revoked, err := s.revoker.IsRevoked(claims.ID)
	if err != nil {
		return "", false, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return "", false, ErrTokenRevoked
	}
	if cutoffs, ok := s.revoker.(UserTokenRevoker); ok {
		cutoff, err := cutoffs.RevokedAfter(claims.Subject)
		if err != nil {
			return "", false, fmt.Errorf("check user cutoff: %w", err)
		}
		if !cutoff.IsZero() && !claims.IssuedAt.Time.After(cutoff) {
			return "", false, ErrTokenRevoked
		}
	}
	return claims.Subject, true, nil
}

// DeleteSession revokes the token until it expires. Invalid tokens are ignored.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.verify(token)
	if err != nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

// RevokeUserSessions invalidates every session issued to userID up to since.
func (s *JWTSessionStore) RevokeUserSessions(userID string, since time.Time) error {
	if s.revoker == nil {
		return nil
	}
	cutoffs, ok := s.revoker.(UserTokenRevoker)
	if !ok {
		return errors.New("session revoker does not support user revocation")
	}
	return cutoffs.RevokeUser(userID, since)
}

// JWKS returns the public keys accepted by this store.
func (s *JWTSessionStore) JWKS() []JWK {
	kids := make([]string, 0, len(s.verifiers))
	for kid := range s.verifiers {
		kids = append(kids, kid)
	}
	sort.Strings(kids)
	out := make([]JWK, 0, len(kids))
	for _, kid := range kids {
		pub := s.verifiers[kid]
		out = append(out, JWK{
			Kty: "RSA",
			Use: "sig",
			Kid: kid,
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	return out
}

func (s *JWTSessionStore) verify(raw string) (jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return claims, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub, ok := s.verifiers[strings.TrimSpace(kid)]
		if !ok {
			return nil, fmt.Errorf("unknown token key %q", kid)
		}
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		return claims, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" || claims.IssuedAt == nil {
		return claims, ErrInvalidToken
	}
	return claims, nil
}

func newTokenID() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
