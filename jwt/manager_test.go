package jwt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, clock *fakeClock, mutate ...func(*Config)) *Manager {
	t.Helper()
	cfg := Config{
		Secret:     []byte(testSecret),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Issuer:     "goCred",
		Now:        clock.Now,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsUnsafeConfig(t *testing.T) {
	base := Config{Secret: []byte(testSecret), AccessTTL: time.Minute, RefreshTTL: time.Hour}

	cases := map[string]func(*Config){
		"short secret":          func(c *Config) { c.Secret = []byte("short") },
		"zero access ttl":       func(c *Config) { c.AccessTTL = 0 },
		"refresh not longer":    func(c *Config) { c.RefreshTTL = c.AccessTTL },
		"negative leeway":       func(c *Config) { c.Leeway = -time.Second },
		"excessive leeway":      func(c *Config) { c.Leeway = time.Hour },
		"negative future iat":   func(c *Config) { c.MaxFutureIAT = -time.Second },
		"excessive future iat":  func(c *Config) { c.MaxFutureIAT = 48 * time.Hour },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected config to be rejected")
			}
		})
	}
}

func TestAccessTokenValidUntilTTL(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)

	token, err := m.CreateAccess("alice", "USER", nil)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if !m.Validate(token) {
		t.Fatal("expected fresh token to validate")
	}

	clock.Advance(15*time.Minute - time.Second)
	if !m.Validate(token) {
		t.Fatal("expected token to validate just before expiry")
	}

	clock.Advance(time.Second)
	if m.Validate(token) {
		t.Fatal("expected token to be invalid at expiry")
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestExtractUsernameRoundTrip(t *testing.T) {
	m := newTestManager(t, newFakeClock())

	for _, name := range []string{"alice", "bob.smith", "user@example.com", "ünïcødé"} {
		token, err := m.CreateAccess(name, "USER", nil)
		if err != nil {
			t.Fatalf("create access for %q: %v", name, err)
		}
		got, err := m.ExtractUsername(token)
		if err != nil {
			t.Fatalf("extract username for %q: %v", name, err)
		}
		if got != name {
			t.Fatalf("expected %q, got %q", name, got)
		}
	}
}

func TestDifferentSecretFailsSignature(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestManager(t, clock)
	verifier := newTestManager(t, clock, func(c *Config) {
		c.Secret = []byte("ffffffffffffffffffffffffffffffff")
	})

	token, err := issuer.CreateAccess("alice", "USER", nil)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if verifier.Validate(token) {
		t.Fatal("expected token from another secret to fail validation")
	}
	if _, err := verifier.ExtractUsername(token); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("expected ErrTokenSignatureInvalid, got %v", err)
	}
}

func TestMalformedTokens(t *testing.T) {
	m := newTestManager(t, newFakeClock())

	for _, input := range []string{"", "abc", "a.b", "a.b.c", "###.###.###"} {
		if m.Validate(input) {
			t.Fatalf("expected %q to be invalid", input)
		}
		if _, err := m.ExtractUsername(input); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("expected ErrTokenMalformed for %q, got %v", input, err)
		}
	}
}

func TestTamperedPayloadFailsSignature(t *testing.T) {
	m := newTestManager(t, newFakeClock())

	token, err := m.CreateAccess("alice", "USER", nil)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	other, err := m.CreateAccess("mallory", "ADMIN", nil)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	if _, err := m.Parse(forged); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("expected ErrTokenSignatureInvalid, got %v", err)
	}
}

func TestRejectsOtherAlgorithms(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)

	claims := gjwt.MapClaims{
		"sub": "alice",
		"typ": "access",
		"iss": "goCred",
		"iat": gjwt.NewNumericDate(clock.Now()),
		"exp": gjwt.NewNumericDate(clock.Now().Add(time.Minute)),
	}

	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, err := m.Parse(hs512); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("expected HS512 token to be rejected as signature invalid, got %v", err)
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if m.Validate(none) {
		t.Fatal("expected alg=none token to be rejected")
	}
}

func TestRefreshTypeEnforced(t *testing.T) {
	m := newTestManager(t, newFakeClock())

	access, err := m.CreateAccess("alice", "USER", nil)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	refresh, err := m.CreateRefresh("alice", "USER", nil)
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}

	if _, err := m.UsernameFromRefresh(access); !errors.Is(err, ErrTokenInvalid) || !errors.Is(err, ErrTokenWrongType) {
		t.Fatalf("expected access token to be rejected by refresh parsing, got %v", err)
	}
	if _, err := m.ParseAccess(refresh); !errors.Is(err, ErrTokenWrongType) {
		t.Fatalf("expected refresh token to be rejected by access parsing, got %v", err)
	}

	name, err := m.UsernameFromRefresh(refresh)
	if err != nil || name != "alice" {
		t.Fatalf("expected alice from refresh token, got %q err=%v", name, err)
	}
}

func TestRefreshWithoutTypeClaimRejected(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)

	untyped := gjwt.MapClaims{
		"sub": "alice",
		"iss": "goCred",
		"iat": gjwt.NewNumericDate(clock.Now()),
		"exp": gjwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, untyped).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !m.Validate(token) {
		t.Fatal("expected untyped but well-signed token to pass generic validation")
	}
	if _, err := m.UsernameFromRefresh(token); !errors.Is(err, ErrTokenWrongType) {
		t.Fatalf("expected untyped token to be rejected as refresh credential, got %v", err)
	}
}

func TestRefreshOutlivesAccess(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)

	access, _ := m.CreateAccess("alice", "USER", nil)
	refresh, _ := m.CreateRefresh("alice", "USER", nil)

	clock.Advance(time.Hour)
	if m.Validate(access) {
		t.Fatal("expected access token to be expired after an hour")
	}
	if !m.Validate(refresh) {
		t.Fatal("expected refresh token to remain valid after an hour")
	}
}

func TestExtraClaimsCannotOverrideReserved(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)

	token, err := m.CreateAccess("alice", "USER", map[string]any{
		"sub":    "mallory",
		"typ":    "refresh",
		"role":   "ADMIN",
		"exp":    clock.Now().Add(100 * time.Hour).Unix(),
		"tenant": "t-1",
	})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != "USER" || claims.Type != TypeAccess {
		t.Fatalf("reserved claims overridden: %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt.Time)
	}

	var raw gjwt.MapClaims
	if _, _, err := gjwt.NewParser().ParseUnverified(token, &raw); err != nil {
		t.Fatalf("parse unverified: %v", err)
	}
	if raw["tenant"] != "t-1" {
		t.Fatalf("expected extra claim to be carried, got %v", raw["tenant"])
	}
}

func TestIssuerAudienceAndLeeway(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock, func(c *Config) {
		c.Audience = "api"
		c.Leeway = 30 * time.Second
	})
	other := newTestManager(t, clock, func(c *Config) {
		c.Issuer = "someone-else"
		c.Audience = "api"
	})

	token, err := m.CreateAccess("alice", "USER", nil)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := other.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected wrong issuer to be ErrTokenInvalid, got %v", err)
	}

	clock.Advance(15*time.Minute + 15*time.Second)
	if !m.Validate(token) {
		t.Fatal("expected token within leeway to validate")
	}
	clock.Advance(time.Minute)
	if m.Validate(token) {
		t.Fatal("expected token past leeway to fail")
	}
}

func TestKeyIDMismatchRejected(t *testing.T) {
	clock := newFakeClock()
	k1 := newTestManager(t, clock, func(c *Config) { c.KeyID = "k1" })
	k2 := newTestManager(t, clock, func(c *Config) { c.KeyID = "k2" })

	token, err := k1.CreateAccess("alice", "USER", nil)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if !k1.Validate(token) {
		t.Fatal("expected matching kid to validate")
	}
	if _, err := k2.Parse(token); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("expected kid mismatch to be unverifiable, got %v", err)
	}
}

func TestCreateRequiresSubject(t *testing.T) {
	m := newTestManager(t, newFakeClock())
	if _, err := m.CreateAccess("  ", "USER", nil); err == nil {
		t.Fatal("expected blank subject to be rejected")
	}
}
