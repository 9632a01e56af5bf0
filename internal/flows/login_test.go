package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errBadCreds  = errors.New("invalid credentials")
	errDuplicate = errors.New("duplicate")
	errRole      = errors.New("role")
	errReuse     = errors.New("reuse")
	errRegInput  = errors.New("registration invalid")
)

type userFixture struct {
	users    map[string]UserRecord
	dummies  int
	failures int
	rehashed []string
	issued   []string
}

func newUserFixture() *userFixture {
	return &userFixture{users: map[string]UserRecord{
		"alice": {UserID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "h:secret123", Role: "USER"},
	}}
}

func (f *userFixture) getUser(_ context.Context, name string) (UserRecord, error) {
	u, ok := f.users[name]
	if !ok {
		return UserRecord{}, errUserNotFound
	}
	return u, nil
}

func (f *userFixture) issue(username, role string) (TokenPair, error) {
	f.issued = append(f.issued, username+"/"+role)
	return TokenPair{AccessToken: "a:" + username, RefreshToken: "r:" + username}, nil
}

func verify(password, hash string) (bool, error) { return hash == "h:"+password, nil }

func (f *userFixture) authDeps() AuthenticateDeps {
	return AuthenticateDeps{
		UpgradeOnLogin:  true,
		RecordLoginFail: func(context.Context, string) error { f.failures++; return nil },
		IsUserNotFound:  func(err error) bool { return errors.Is(err, errUserNotFound) },
		GetUserByName:   f.getUser,
		VerifyPassword:  verify,
		VerifyDummy:     func(string) { f.dummies++ },
		NeedsRehash:     func(h string) bool { return h == "legacy" },
		HashPassword:    func(p string) (string, error) { return "h:" + p, nil },
		RehashPassword: func(_ context.Context, u UserRecord, hash string) error {
			f.rehashed = append(f.rehashed, u.UserID+"="+hash)
			return nil
		},
		IssueTokenPair: f.issue,
		Errors: AuthenticateErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errBadCreds,
			LoginRateLimited:   errLimited,
		},
	}
}

func TestAuthenticateUnknownAndWrongPasswordIdentical(t *testing.T) {
	f := newUserFixture()
	_, errUnknown := RunAuthenticate(context.Background(), "mallory", "secret123", f.authDeps())
	_, errWrong := RunAuthenticate(context.Background(), "alice", "wrong", f.authDeps())
	if errUnknown != errWrong || !errors.Is(errUnknown, errBadCreds) {
		t.Fatalf("expected identical errors, got %v and %v", errUnknown, errWrong)
	}
	if f.dummies != 1 {
		t.Fatalf("expected one dummy verification for the unknown user, got %d", f.dummies)
	}
	if f.failures != 2 {
		t.Fatalf("expected both failures recorded, got %d", f.failures)
	}
}

func TestAuthenticateSuccessIssuesStoredRole(t *testing.T) {
	f := newUserFixture()
	pair, err := RunAuthenticate(context.Background(), "alice", "secret123", f.authDeps())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if pair.AccessToken != "a:alice" || len(f.issued) != 1 || f.issued[0] != "alice/USER" {
		t.Fatalf("unexpected issuance: %+v %v", pair, f.issued)
	}
}

func TestAuthenticateRateLimited(t *testing.T) {
	f := newUserFixture()
	deps := f.authDeps()
	deps.CheckLoginRate = func(context.Context, string) error { return errLimited }
	if _, err := RunAuthenticate(context.Background(), "alice", "secret123", deps); !errors.Is(err, errLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if len(f.issued) != 0 {
		t.Fatal("tokens issued despite rate limit")
	}
}

func TestAuthenticateUpgradesLegacyHash(t *testing.T) {
	f := newUserFixture()
	f.users["bob"] = UserRecord{UserID: "u2", Username: "bob", PasswordHash: "legacy", Role: "ADMIN"}
	deps := f.authDeps()
	deps.VerifyPassword = func(p, h string) (bool, error) { return h == "legacy" && p == "hunter22", nil }
	if _, err := RunAuthenticate(context.Background(), "bob", "hunter22", deps); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if len(f.rehashed) != 1 || f.rehashed[0] != "u2=h:hunter22" {
		t.Fatalf("expected rehash, got %v", f.rehashed)
	}
}

func TestAuthenticateStoreErrorIsNotMasked(t *testing.T) {
	f := newUserFixture()
	deps := f.authDeps()
	deps.GetUserByName = func(context.Context, string) (UserRecord, error) { return UserRecord{}, errStoreDown }
	if _, err := RunAuthenticate(context.Background(), "alice", "secret123", deps); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestRefreshFailureKinds(t *testing.T) {
	f := newUserFixture()
	deps := RefreshDeps{
		UsernameFromRefresh: func(tok string) (string, error) {
			if tok == "bad" {
				return "", errInvalid
			}
			return tok, nil
		},
		GetUserByName:  f.getUser,
		IsUserNotFound: func(err error) bool { return errors.Is(err, errUserNotFound) },
		IssueTokenPair: f.issue,
	}

	if res := RunRefresh(context.Background(), "bad", deps); res.Failure != RefreshFailureToken {
		t.Fatalf("expected token failure, got %v", res.Failure)
	}
	if res := RunRefresh(context.Background(), "ghost", deps); res.Failure != RefreshFailureUserNotFound {
		t.Fatalf("expected user not found, got %v", res.Failure)
	}
	res := RunRefresh(context.Background(), "alice", deps)
	if res.Failure != RefreshFailureNone || res.Pair.RefreshToken != "r:alice" || res.UserID != "u1" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestValidateCountsOutcomes(t *testing.T) {
	counts := map[int]int{}
	deps := ValidateDeps{
		ParseAccess: func(tok string) error {
			if tok != "good" {
				return errInvalid
			}
			return nil
		},
		MetricInc: func(id int) { counts[id]++ },
		Metrics:   ValidateMetrics{ValidateSuccess: 1, ValidateFailure: 2},
	}
	if !RunValidate("good", deps) || RunValidate("bad", deps) || RunValidate("", deps) {
		t.Fatal("unexpected validation results")
	}
	if counts[1] != 1 || counts[2] != 2 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func (f *userFixture) changeDeps(updated map[string]string) ChangePasswordDeps {
	return ChangePasswordDeps{
		Now: func() time.Time { return time.Unix(1_700_000_000, 0) },
		UsernameFromAccess: func(tok string) (string, error) {
			if tok == "bad" {
				return "", errInvalid
			}
			return tok, nil
		},
		GetUserByName:  f.getUser,
		IsUserNotFound: func(err error) bool { return errors.Is(err, errUserNotFound) },
		VerifyPassword: verify,
		CheckPolicy: func(p string) error {
			if len(p) < 8 {
				return errPolicy
			}
			return nil
		},
		HashPassword: func(p string) (string, error) { return "h:" + p, nil },
		UpdatePasswordHash: func(_ context.Context, userID, hash string, _ time.Time) error {
			updated[userID] = hash
			return nil
		},
		Errors: ChangePasswordErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errBadCreds,
			UserNotFound:       errUserNotFound,
			PasswordReuse:      errReuse,
		},
	}
}

func TestChangePassword(t *testing.T) {
	f := newUserFixture()
	updated := map[string]string{}
	deps := f.changeDeps(updated)

	tests := []struct {
		name    string
		token   string
		current string
		next    string
		want    error
	}{
		{"bad token", "bad", "secret123", "newsecret1", errInvalid},
		{"vanished user", "ghost", "secret123", "newsecret1", errUserNotFound},
		{"wrong current", "alice", "nope", "newsecret1", errBadCreds},
		{"policy", "alice", "secret123", "short", errPolicy},
		{"reuse", "alice", "secret123", "secret123", errReuse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunChangePassword(context.Background(), tt.token, tt.current, tt.next, deps)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(updated) != 0 {
		t.Fatalf("no failure case may update the hash: %v", updated)
	}

	at, err := RunChangePassword(context.Background(), "alice", "secret123", "newsecret1", deps)
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	if !at.Equal(time.Unix(1_700_000_000, 0)) || updated["u1"] != "h:newsecret1" {
		t.Fatalf("unexpected result at=%v updated=%v", at, updated)
	}
}

func TestRegister(t *testing.T) {
	created := map[string]NewUserRecord{}
	f := newUserFixture()
	deps := RegisterDeps{
		ResolveRole: func(r string) (string, bool) {
			switch r {
			case "":
				return "USER", true
			case "USER", "ADMIN":
				return r, true
			}
			return "", false
		},
		CheckPolicy: func(p string) error {
			if len(p) < 8 {
				return errPolicy
			}
			return nil
		},
		HashPassword: func(p string) (string, error) { return "h:" + p, nil },
		CreateUser: func(_ context.Context, rec NewUserRecord) (string, error) {
			if _, ok := created[rec.Username]; ok {
				return "", errDuplicate
			}
			created[rec.Username] = rec
			return "id-" + rec.Username, nil
		},
		IsDuplicate:    func(err error) bool { return errors.Is(err, errDuplicate) },
		IssueTokenPair: f.issue,
		Errors: RegisterErrors{
			EngineNotReady:      errNotReady,
			RegistrationInvalid: errRegInput,
			RoleInvalid:         errRole,
			DuplicateUser:       errDuplicate,
		},
	}

	in := RegisterInput{Username: " alice ", Email: "alice@example.com", Password: "secret123"}
	pair, err := RunRegister(context.Background(), in, deps)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if pair.AccessToken != "a:alice" || created["alice"].Role != "USER" || created["alice"].PasswordHash != "h:secret123" {
		t.Fatalf("unexpected registration: %+v %+v", pair, created["alice"])
	}

	if _, err := RunRegister(context.Background(), in, deps); !errors.Is(err, errDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := RunRegister(context.Background(), RegisterInput{Username: "bob", Email: "b@example.com", Password: "secret123", Role: "ROOT"}, deps); !errors.Is(err, errRole) {
		t.Fatalf("expected role error, got %v", err)
	}
	if _, err := RunRegister(context.Background(), RegisterInput{Username: "bob", Password: "secret123"}, deps); !errors.Is(err, errRegInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := RunRegister(context.Background(), RegisterInput{Username: "bob", Email: "b@example.com", Password: "short"}, deps); !errors.Is(err, errPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
}
