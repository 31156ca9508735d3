// ABOUTME: Token verification for bearer authentication
// ABOUTME: Static (constant-time or bcrypt) and HS256 JWT verifiers, plus a chain

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// StaticClientID identifies callers authenticated with the shared token.
const StaticClientID = "api-key"

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (*Principal, error)
}

// StaticVerifier accepts one shared secret, given in plaintext or as a bcrypt hash.
type StaticVerifier struct {
	token  []byte
	hash   []byte
	scopes []string
}

// NewStaticVerifier creates a verifier. Exactly one of token or hash should be set.
func NewStaticVerifier(token, hash string, scopes []string) (*StaticVerifier, error) {
	if token == "" && hash == "" {
		return nil, errors.New("static verifier needs a token or a token hash")
	}
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid token hash: %w", err)
		}
	}
	return &StaticVerifier{token: []byte(token), hash: []byte(hash), scopes: scopes}, nil
}

// Verify checks tokenString against the configured secret.
func (v *StaticVerifier) Verify(tokenString string) (*Principal, error) {
	ok := false
	if len(v.token) > 0 {
		ok = subtle.ConstantTimeCompare([]byte(tokenString), v.token) == 1
	}
	if !ok && len(v.hash) > 0 {
		ok = bcrypt.CompareHashAndPassword(v.hash, []byte(tokenString)) == nil
	}
	if !ok {
		return nil, ErrInvalidToken
	}
	return &Principal{
		Subject:  StaticClientID,
		ClientID: StaticClientID,
		Scopes:   append([]string(nil), v.scopes...),
	}, nil
}

// HashToken returns a bcrypt hash suitable for the token_hash setting.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	return &JWTVerifier{secret: secret}, nil
}

// Verify validates the token and extracts the subject and scopes
func (v *JWTVerifier) Verify(tokenString string) (*Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		// Check if it's specifically an expiration error
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	p := &Principal{Subject: sub, ClientID: sub}
	if scope, ok := claims["scope"].(string); ok {
		p.Scopes = strings.Fields(scope)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		p.ExpiresAt = &t
	}
	return p, nil
}

// Generate creates a new JWT for subject with the given scopes and expiration
func (v *JWTVerifier) Generate(subject string, scopes []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if len(scopes) > 0 {
		claims["scope"] = strings.Join(scopes, " ")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ChainVerifier tries each verifier in order and returns the first success.
type ChainVerifier []TokenVerifier

// Verify implements TokenVerifier.
func (c ChainVerifier) Verify(tokenString string) (*Principal, error) {
	var lastErr error = ErrInvalidToken
	for _, v := range c {
		p, err := v.Verify(tokenString)
		if err == nil {
			return p, nil
		}
		// An expired JWT is more useful to report than a static mismatch.
		if !errors.Is(lastErr, ErrExpiredToken) {
			lastErr = err
		}
	}
	return nil, lastErr
}

// NewVerifier builds the verifier for cfg's credential sources.
func NewVerifier(cfg *Config) (TokenVerifier, error) {
	if !cfg.Enabled() {
		return nil, errors.New("auth is not enabled")
	}

	var chain ChainVerifier
	if cfg.Token != "" || cfg.TokenHash != "" {
		sv, err := NewStaticVerifier(cfg.Token, cfg.TokenHash, cfg.Scopes)
		if err != nil {
			return nil, err
		}
		chain = append(chain, sv)
	}
	if cfg.JWTSecret != "" {
		jv, err := NewJWTVerifier([]byte(cfg.JWTSecret))
		if err != nil {
			return nil, err
		}
		chain = append(chain, jv)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}
