package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mustManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestDecodeVerifiedRoundTrip(t *testing.T) {
	m := mustManager(t, Config{SigningMethod: MethodHS256, Secret: []byte("s3cret")})
	if !m.Verifies() {
		t.Fatal("expected verifying manager when secret is set")
	}

	token, err := m.Issue("u1", "a@b.com", "buyer", time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := m.Decode(token)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "a@b.com" || claims.Role != "buyer" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatal("expected iat and exp")
	}
}

func TestDecodeUnverifiedAcceptsForeignSignature(t *testing.T) {
	issuer := mustManager(t, Config{Secret: []byte("server-only")})
	token, err := issuer.Issue("u2", "b@c.com", "admin", time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	client := mustManager(t, Config{})
	if client.Verifies() {
		t.Fatal("expected decode-only manager without key material")
	}
	claims, err := client.Decode(token)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.Role != "admin" {
		t.Fatalf("expected admin role, got %q", claims.Role)
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	issuer := mustManager(t, Config{Secret: []byte("one")})
	token, _ := issuer.Issue("u1", "a@b.com", "buyer", time.Hour)

	verifier := mustManager(t, Config{Secret: []byte("two")})
	if _, err := verifier.Decode(token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestDecodeRejectsExpired(t *testing.T) {
	m := mustManager(t, Config{Secret: []byte("s")})
	token, err := m.Issue("u1", "a@b.com", "buyer", -time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := m.Decode(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	decodeOnly := mustManager(t, Config{})
	if _, err := decodeOnly.Decode(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired in decode-only mode, got %v", err)
	}
}

func TestDecodeRejectsMissingClaims(t *testing.T) {
	secret := []byte("s")
	m := mustManager(t, Config{Secret: secret})

	cases := map[string]Claims{
		"no role": {RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}},
		"no sub": {Role: "buyer", RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}},
		"no exp": {Role: "buyer", RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u1",
		}},
	}

	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
			if err != nil {
				t.Fatalf("sign failed: %v", err)
			}
			if _, err := m.Decode(token); err == nil {
				t.Fatal("expected decode failure")
			}
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	m := mustManager(t, Config{})
	for _, in := range []string{"", "abc", "a.b", "a.b.c.d"} {
		if _, err := m.Decode(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
	if _, err := m.Decode("a.b"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	issuer := mustManager(t, Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	token, err := issuer.Issue("u3", "c@d.com", "buyer", time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	verifier := mustManager(t, Config{SigningMethod: MethodEd25519, PublicKey: pub})
	claims, err := verifier.Decode(token)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.Subject != "u3" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	if _, err := NewManager(Config{Leeway: time.Hour}); err == nil {
		t.Fatal("expected leeway error")
	}
	if _, err := NewManager(Config{SigningMethod: "rs512"}); err == nil {
		t.Fatal("expected unsupported method error")
	}
	if _, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: []byte("short")}); err == nil {
		t.Fatal("expected invalid public key error")
	}
}
