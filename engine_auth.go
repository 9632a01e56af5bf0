package goCred

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalflows "github.com/MrEthical07/goCred/internal/flows"
	"github.com/MrEthical07/goCred/internal/limiters"
	"github.com/MrEthical07/goCred/jwt"
)

// Register creates a user and returns its first token pair. An empty role
// takes Config.Account.DefaultRole; role names match case-insensitively.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrRegistrationInvalid, err)
	}
	pair, err := internalflows.RunRegister(ctx, internalflows.RegisterInput{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		Role:           string(req.Role),
		FirstName:      req.FirstName,
		SecondName:     req.SecondName,
		FirstLastName:  req.FirstLastName,
		SecondLastName: req.SecondLastName,
	}, e.flows.Register)
	if err != nil {
		return TokenPair{}, err
	}
	return toTokenPair(pair), nil
}

// Authenticate verifies username and password and returns a token pair. An
// unknown username and a wrong password both yield ErrInvalidCredentials.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	pair, err := internalflows.RunAuthenticate(ctx, username, password, e.flows.Authenticate)
	if err != nil {
		return TokenPair{}, err
	}
	return toTokenPair(pair), nil
}

// Refresh exchanges a refresh token for a new pair. Any unusable token,
// including an access token, fails with ErrTokenInvalid; the specific cause
// stays matchable with errors.Is. Refresh tokens are not single use.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	result := internalflows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	switch result.Failure {
	case internalflows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, result.UserID, result.Username, nil, nil)
		return toTokenPair(result.Pair), nil
	case internalflows.RefreshFailureToken:
		result.Err = refreshTokenError(result.Err)
	case internalflows.RefreshFailureUserNotFound:
		result.Err = ErrUserNotFound
	case internalflows.RefreshFailureStore:
		result.Err = mapStoreError(result.Err)
	}

	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, result.UserID, result.Username, result.Err, nil)
	return TokenPair{}, result.Err
}

// ValidateToken reports whether token is a currently valid access token. It
// never returns an error; use Claims to learn why a token was rejected.
func (e *Engine) ValidateToken(token string) bool {
	if e == nil {
		return false
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}
	return internalflows.RunValidate(token, e.flows.Validate)
}

// Claims verifies an access token and returns its claims.
func (e *Engine) Claims(token string) (*jwt.Claims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	return e.jwtManager.ParseAccess(token)
}

// ExtractUsername returns the subject of a verified token of either type.
func (e *Engine) ExtractUsername(token string) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	return e.jwtManager.ExtractUsername(token)
}

func (e *Engine) buildFlowDeps() internalflows.Deps {
	return internalflows.Deps{
		Register:       e.registerFlowDeps(),
		Authenticate:   e.authenticateFlowDeps(),
		Refresh:        e.refreshFlowDeps(),
		Validate:       e.validateFlowDeps(),
		ChangePassword: e.changePasswordFlowDeps(),
		Recovery:       e.recoveryFlowDeps(),
	}
}

func (e *Engine) registerFlowDeps() internalflows.RegisterDeps {
	return internalflows.RegisterDeps{
		Now: e.now,
		ResolveRole: func(role string) (string, bool) {
			if role == "" {
				return string(e.config.Account.DefaultRole), true
			}
			r, ok := e.config.canonicalRole(Role(role))
			return string(r), ok
		},
		CheckPolicy:  e.checkPolicy,
		HashPassword: e.hasher.Hash,
		CreateUser: func(ctx context.Context, rec internalflows.NewUserRecord) (string, error) {
			user := &User{
				Username:          rec.Username,
				Email:             rec.Email,
				PasswordHash:      rec.PasswordHash,
				Role:              Role(rec.Role),
				FirstName:         rec.FirstName,
				SecondName:        rec.SecondName,
				FirstLastName:     rec.FirstLastName,
				SecondLastName:    rec.SecondLastName,
				CreatedAt:         rec.CreatedAt,
				PasswordChangedAt: rec.CreatedAt,
			}
			if err := e.users.CreateUser(ctx, user); err != nil {
				return "", err
			}
			return user.ID, nil
		},
		IsDuplicate:    func(err error) bool { return errors.Is(err, ErrDuplicateUser) },
		MapStoreError:  mapStoreError,
		IssueTokenPair: e.issueTokenPair,
		MetricInc:      func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:      e.emitAudit,
		Metrics: internalflows.RegisterMetrics{
			RegisterSuccess:   int(MetricRegisterSuccess),
			RegisterFailure:   int(MetricRegisterFailure),
			RegisterDuplicate: int(MetricRegisterDuplicate),
		},
		Events: internalflows.RegisterEvents{
			Register: auditEventRegister,
		},
		Errors: internalflows.RegisterErrors{
			EngineNotReady:      ErrEngineNotReady,
			RegistrationInvalid: ErrRegistrationInvalid,
			RoleInvalid:         ErrRoleInvalid,
			DuplicateUser:       ErrDuplicateUser,
		},
	}
}

func (e *Engine) authenticateFlowDeps() internalflows.AuthenticateDeps {
	return internalflows.AuthenticateDeps{
		UpgradeOnLogin:  e.config.Password.UpgradeOnLogin,
		CheckLoginRate:  e.loginLimiter.Check,
		RecordLoginFail: e.loginLimiter.RecordFailure,
		ResetLoginRate:  e.loginLimiter.Reset,
		MapLimiterError: mapLoginLimiterError,
		IsUserNotFound:  func(err error) bool { return errors.Is(err, ErrUserNotFound) },
		MapStoreError:   mapStoreError,
		GetUserByName:   e.userByName,
		VerifyPassword:  e.hasher.Verify,
		VerifyDummy:     e.hasher.VerifyDummy,
		NeedsRehash:     e.hasher.NeedsRehash,
		HashPassword:    e.hasher.Hash,
		RehashPassword: func(ctx context.Context, user internalflows.UserRecord, hash string) error {
			// A rehash is not a password change; keep the recorded change time.
			return e.users.UpdatePasswordHash(ctx, user.UserID, hash, user.PasswordChangedAt)
		},
		IssueTokenPair: e.issueTokenPair,
		Warn:           e.warn,
		MetricInc:      func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:      e.emitAudit,
		Metrics: internalflows.AuthenticateMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			PasswordUpgraded: int(MetricPasswordUpgraded),
		},
		Events: internalflows.AuthenticateEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: internalflows.AuthenticateErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			LoginRateLimited:   ErrLoginRateLimited,
		},
	}
}

func (e *Engine) refreshFlowDeps() internalflows.RefreshDeps {
	return internalflows.RefreshDeps{
		UsernameFromRefresh: e.jwtManager.UsernameFromRefresh,
		GetUserByName:       e.userByName,
		IsUserNotFound:      func(err error) bool { return errors.Is(err, ErrUserNotFound) },
		IssueTokenPair:      e.issueTokenPair,
	}
}

func (e *Engine) validateFlowDeps() internalflows.ValidateDeps {
	return internalflows.ValidateDeps{
		ParseAccess: func(token string) error {
			_, err := e.jwtManager.ParseAccess(token)
			return err
		},
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		Metrics: internalflows.ValidateMetrics{
			ValidateSuccess: int(MetricValidateSuccess),
			ValidateFailure: int(MetricValidateFailure),
		},
	}
}

func (e *Engine) userByName(ctx context.Context, username string) (internalflows.UserRecord, error) {
	user, err := e.users.GetUserByUsername(ctx, username)
	if err != nil {
		return internalflows.UserRecord{}, err
	}
	if user == nil {
		return internalflows.UserRecord{}, ErrUserNotFound
	}
	return toUserRecord(user), nil
}

func toUserRecord(u *User) internalflows.UserRecord {
	return internalflows.UserRecord{
		UserID:            u.ID,
		Username:          u.Username,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Role:              string(u.Role),
		PasswordChangedAt: u.PasswordChangedAt,
	}
}

func mapLoginLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrLoginRateLimited):
		return ErrLoginRateLimited
	case errors.Is(err, limiters.ErrLoginRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

// mapStoreError keeps taxonomy errors from stores intact and classifies
// anything else as a backend failure.
// refreshTokenError makes every unusable refresh token match ErrTokenInvalid
// while keeping the specific cause (expired, malformed, bad signature).
func refreshTokenError(err error) error {
	if errors.Is(err, ErrTokenInvalid) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrDuplicateUser),
		errors.Is(err, ErrResetTokenInvalid):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
