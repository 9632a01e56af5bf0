package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RegisterInput is the flow-local registration request. Validation of field
// shape happens at the root before the flow runs.
type RegisterInput struct {
	Username       string
	Email          string
	Password       string
	Role           string
	FirstName      string
	SecondName     string
	FirstLastName  string
	SecondLastName string
}

// NewUserRecord is what the flow hands to the credential store.
type NewUserRecord struct {
	Username       string
	Email          string
	PasswordHash   string
	Role           string
	FirstName      string
	SecondName     string
	FirstLastName  string
	SecondLastName string
	CreatedAt      time.Time
}

type RegisterMetrics struct {
	RegisterSuccess   int
	RegisterFailure   int
	RegisterDuplicate int
}

type RegisterEvents struct {
	Register string
}

type RegisterErrors struct {
	EngineNotReady      error
	RegistrationInvalid error
	RoleInvalid         error
	DuplicateUser       error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Now func() time.Time

	ResolveRole    func(string) (string, bool)
	CheckPolicy    func(string) error
	HashPassword   func(string) (string, error)
	CreateUser     func(context.Context, NewUserRecord) (string, error)
	IsDuplicate    func(error) bool
	MapStoreError  func(error) error
	IssueTokenPair func(username, role string) (TokenPair, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister creates a user and issues its first token pair.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (TokenPair, error) {
	normalizeRegisterDeps(&deps)

	if deps.ResolveRole == nil || deps.CheckPolicy == nil || deps.HashPassword == nil ||
		deps.CreateUser == nil || deps.IssueTokenPair == nil {
		return TokenPair{}, deps.Errors.EngineNotReady
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	fail := func(err error, reason string) (TokenPair, error) {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.Register, false, "", username, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return TokenPair{}, err
	}

	if username == "" || email == "" || in.Password == "" {
		return fail(deps.Errors.RegistrationInvalid, "missing_field")
	}

	role, ok := deps.ResolveRole(in.Role)
	if !ok {
		return fail(deps.Errors.RoleInvalid, "role")
	}
	if err := deps.CheckPolicy(in.Password); err != nil {
		return fail(err, "policy")
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", deps.Errors.RegistrationInvalid, err), "hash")
	}

	userID, err := deps.CreateUser(ctx, NewUserRecord{
		Username:       username,
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		FirstName:      in.FirstName,
		SecondName:     in.SecondName,
		FirstLastName:  in.FirstLastName,
		SecondLastName: in.SecondLastName,
		CreatedAt:      deps.Now(),
	})
	if err != nil {
		if deps.IsDuplicate(err) || errors.Is(err, deps.Errors.DuplicateUser) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			return fail(deps.Errors.DuplicateUser, "duplicate")
		}
		return fail(deps.MapStoreError(err), "store")
	}

	pair, err := deps.IssueTokenPair(username, role)
	if err != nil {
		return fail(err, "issue")
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.Register, true, userID, username, nil, func() map[string]string {
		return map[string]string{"role": role}
	})
	return pair, nil
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IsDuplicate == nil {
		deps.IsDuplicate = func(error) bool { return false }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
