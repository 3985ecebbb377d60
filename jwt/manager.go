package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names the algorithm the dealer API signs access tokens with.
type SigningMethod string

const (
	// MethodHS256 is the dealer API default (shared secret).
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 verifies EdDSA-signed tokens with a public key.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrMissingClaims is returned when a token decodes but lacks sub, role or exp.
	ErrMissingClaims = errors.New("token missing required claims")
	// ErrMalformed is returned for strings that are not a JWT at all.
	ErrMalformed = errors.New("malformed token")
)

// Config controls how access tokens are decoded.
//
// When no key material is configured, tokens are decoded without signature
// verification: a browser-side client cannot hold the API secret, and the
// server re-verifies every bearer it receives. Time-based claims are still
// enforced in both modes.
type Config struct {
	SigningMethod SigningMethod
	// Secret is the HS256 shared secret (verification and issuing).
	Secret []byte
	// PrivateKey is only needed to issue Ed25519 tokens.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Leeway     time.Duration
	RequireIAT bool
	// MaxFutureIAT rejects tokens issued implausibly far in the future.
	MaxFutureIAT time.Duration
}

// Claims is the decoded payload of a dealer API access token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager decodes access tokens and, when holding signing material, issues them.
type Manager struct {
	config Config
	verify bool
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	m := &Manager{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		m.verify = len(cfg.Secret) > 0
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		m.verify = len(cfg.PublicKey) > 0
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// Verifies reports whether Decode checks signatures.
func (m *Manager) Verifies() bool {
	return m != nil && m.verify
}

// Decode parses tokenStr into Claims. It fails for malformed tokens, expired
// tokens, bad signatures (when verifying) and tokens missing sub, role or exp.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	claims := &Claims{}
	if m.verify {
		parser := jwt.NewParser(options...)
		token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != m.getMethod().Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return m.getVerifyKey()
		})
		if err != nil {
			return nil, err
		}
		if !token.Valid {
			return nil, jwt.ErrTokenInvalidClaims
		}
	} else {
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
			return nil, err
		}
		if err := jwt.NewValidator(options...).Validate(claims); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Role) == "" {
		return nil, ErrMissingClaims
	}
	if claims.IssuedAt != nil && m.config.MaxFutureIAT > 0 {
		maxAllowed := time.Now().Add(m.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}

// Issue signs a token for subject with the given email, role and lifetime.
// The dealer API issues tokens in production; Issue backs local fakes and tests.
func (m *Manager) Issue(subject, email, role string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		return "", errors.New("invalid TTL")
	}

	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	signKey, err := m.getSignKey()
	if err != nil {
		return "", err
	}

	return jwt.NewWithClaims(m.getMethod(), claims).SignedString(signKey)
}

func (m *Manager) getMethod() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (m *Manager) getSignKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		if len(m.config.PrivateKey) == 0 {
			return nil, errors.New("ed25519 issuing requires private key")
		}
		return parseEdPrivateKey(m.config.PrivateKey)
	default:
		if len(m.config.Secret) == 0 {
			return nil, errors.New("hs256 issuing requires secret")
		}
		return m.config.Secret, nil
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(m.config.PublicKey)
	default:
		return m.config.Secret, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
