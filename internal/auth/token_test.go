// ABOUTME: Unit tests for static, bcrypt and JWT token verification
// ABOUTME: Tests valid, invalid, expired and chained verification

package auth

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-jwt-signing!")

func TestStaticVerifier_Token(t *testing.T) {
	v, err := NewStaticVerifier("s3cret", "", []string{"weather:read"})
	if err != nil {
		t.Fatalf("NewStaticVerifier() error = %v", err)
	}

	p, err := v.Verify("s3cret")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if p.ClientID != StaticClientID {
		t.Errorf("ClientID = %q, want %q", p.ClientID, StaticClientID)
	}
	if !slices.Equal(p.Scopes, []string{"weather:read"}) {
		t.Errorf("Scopes = %v", p.Scopes)
	}

	for _, bad := range []string{"", "s3cre", "s3cret ", "S3CRET"} {
		if _, err := v.Verify(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", bad, err)
		}
	}
}

func TestStaticVerifier_Hash(t *testing.T) {
	hash, err := HashToken("hunter2")
	if err != nil {
		t.Fatalf("HashToken() error = %v", err)
	}

	v, err := NewStaticVerifier("", hash, nil)
	if err != nil {
		t.Fatalf("NewStaticVerifier() error = %v", err)
	}
	if _, err := v.Verify("hunter2"); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
	if _, err := v.Verify("hunter3"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(wrong) error = %v, want ErrInvalidToken", err)
	}
}

func TestStaticVerifier_Errors(t *testing.T) {
	if _, err := NewStaticVerifier("", "", nil); err == nil {
		t.Error("expected error with no token and no hash")
	}
	if _, err := NewStaticVerifier("", "not-a-bcrypt-hash", nil); err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	if _, err := NewJWTVerifier([]byte("short")); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}

	token, err := verifier.Generate("principal-123", []string{"weather:read", "advice"}, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	p, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if p.Subject != "principal-123" {
		t.Errorf("Subject = %q, want %q", p.Subject, "principal-123")
	}
	if !slices.Equal(p.Scopes, []string{"weather:read", "advice"}) {
		t.Errorf("Scopes = %v", p.Scopes)
	}
	if p.ExpiresAt == nil || time.Until(*p.ExpiresAt) <= 0 {
		t.Errorf("ExpiresAt = %v, want future time", p.ExpiresAt)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)
	other, _ := NewJWTVerifier([]byte("another-secret-that-is-32-bytes!"))
	foreign, _ := other.Generate("x", nil, time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{name: "wrong secret", token: foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)

	token, err := verifier.Generate("principal-123", nil, -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	_, err = verifier.Verify(signed)
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}
}

func TestJWTVerifier_RejectsOtherAlgorithms(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "x"})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestNewVerifier_Chain(t *testing.T) {
	cfg := &Config{Token: "static-token", JWTSecret: string(testSecret)}
	v, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	if _, ok := v.(ChainVerifier); !ok {
		t.Fatalf("NewVerifier() = %T, want ChainVerifier", v)
	}

	if _, err := v.Verify("static-token"); err != nil {
		t.Errorf("static token rejected: %v", err)
	}

	jv, _ := NewJWTVerifier(testSecret)
	token, _ := jv.Generate("user-9", nil, time.Hour)
	p, err := v.Verify(token)
	if err != nil {
		t.Fatalf("jwt rejected: %v", err)
	}
	if p.Subject != "user-9" {
		t.Errorf("Subject = %q, want user-9", p.Subject)
	}

	expired, _ := jv.Generate("user-9", nil, -time.Minute)
	if _, err := v.Verify(expired); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expired jwt error = %v, want ErrExpiredToken", err)
	}
	if _, err := v.Verify("nope"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("bad token error = %v, want ErrInvalidToken", err)
	}
}

func TestNewVerifier_Disabled(t *testing.T) {
	if _, err := NewVerifier(&Config{}); err == nil {
		t.Error("expected error when auth is disabled")
	}
}
