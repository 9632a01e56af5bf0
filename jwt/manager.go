package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the value of the "typ" claim carried by every token issued by
// a [Manager]. It keeps access and refresh tokens from standing in for each other.
type TokenType string

const (
	// TypeAccess marks short-lived tokens presented on API calls.
	TypeAccess TokenType = "access"
	// TypeRefresh marks long-lived tokens accepted only by the refresh flow.
	TypeRefresh TokenType = "refresh"

	// MinSecretLength is the minimum HS256 secret size accepted by NewManager.
	MinSecretLength = 32

	claimType = "typ"
	claimRole = "role"
)

var (
	// ErrTokenMalformed is returned when a token cannot be decoded as a JWT.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignatureInvalid is returned when the signature does not verify
	// under the configured secret or the algorithm is not HS256.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned for a correctly signed token at or past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers verified tokens whose claims are unusable
	// (wrong issuer, audience, missing subject, wrong token type).
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenWrongType is wrapped together with ErrTokenInvalid when a token
	// of one type is presented where the other type is required.
	ErrTokenWrongType = errors.New("token type mismatch")
)

// reserved claims cannot be overridden through extra claims.
var reserved = map[string]struct{}{
	"sub": {}, "iat": {}, "exp": {}, "nbf": {}, "iss": {}, "aud": {}, "jti": {},
	claimType: {}, claimRole: {},
}

// Config holds the process-wide signing configuration. It is copied into the
// Manager at construction and never mutated afterwards.
type Config struct {
	Secret       []byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	KeyID        string

	// Now overrides the clock used for issuance and verification. Nil means time.Now.
	Now func() time.Time
}

// Manager signs and verifies HS256 access and refresh tokens.
//
// A Manager holds no mutable state and is safe for concurrent use.
type Manager struct {
	config Config
	parser *jwt.Parser
}

// Claims is the verified view of a token payload.
type Claims struct {
	Type TokenType `json:"typ"`
	Role string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Username returns the subject claim.
func (c *Claims) Username() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must be greater than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Manager{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// CreateAccess issues an access token for username with expiry now+AccessTTL.
// Extra claims are copied into the payload; reserved names are ignored.
func (m *Manager) CreateAccess(username, role string, extra map[string]any) (string, error) {
	return m.create(TypeAccess, username, role, extra, m.config.AccessTTL)
}

// CreateRefresh issues a refresh token for username with expiry now+RefreshTTL.
func (m *Manager) CreateRefresh(username, role string, extra map[string]any) (string, error) {
	return m.create(TypeRefresh, username, role, extra, m.config.RefreshTTL)
}

func (m *Manager) create(typ TokenType, username, role string, extra map[string]any, ttl time.Duration) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", errors.New("token subject required")
	}

	now := m.config.Now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		if _, ok := reserved[k]; ok {
			continue
		}
		claims[k] = v
	}
	claims["sub"] = username
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(ttl))
	claims[claimType] = string(typ)
	if role != "" {
		claims[claimRole] = role
	}
	if m.config.Issuer != "" {
		claims["iss"] = m.config.Issuer
	}
	if m.config.Audience != "" {
		claims["aud"] = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	return token.SignedString(m.config.Secret)
}

// Parse verifies the signature, then the registered claims, and returns the
// payload. Errors are one of the package sentinels, possibly wrapping the
// underlying library error.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	token, err := m.parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.IssuedAt != nil {
		maxAllowed := m.config.Now().Add(m.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrTokenInvalid)
		}
	}

	return claims, nil
}

// ParseAccess is Parse restricted to access tokens.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parseTyped(tokenStr, TypeAccess)
}

// ParseRefresh is Parse restricted to refresh tokens. A token without the
// refresh type marker is rejected even when its signature is valid.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parseTyped(tokenStr, TypeRefresh)
}

func (m *Manager) parseTyped(tokenStr string, want TokenType) (*Claims, error) {
	claims, err := m.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, ErrTokenWrongType)
	}
	return claims, nil
}

// Validate reports whether tokenStr is correctly signed and unexpired. It
// never returns an error: every failure reads as false.
func (m *Manager) Validate(tokenStr string) bool {
	if m == nil {
		return false
	}
	_, err := m.Parse(tokenStr)
	return err == nil
}

// ExtractUsername returns the verified subject of any token type.
func (m *Manager) ExtractUsername(tokenStr string) (string, error) {
	claims, err := m.Parse(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// UsernameFromRefresh returns the verified subject of a refresh token.
func (m *Manager) UsernameFromRefresh(tokenStr string) (string, error) {
	claims, err := m.ParseRefresh(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
