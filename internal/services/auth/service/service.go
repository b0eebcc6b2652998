// Package service implements authentication and user administration
package service

import (
	"context"
	"strings"
	"time"

	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/platform/logger"
	pnet "opscreen/internal/platform/net"
	"opscreen/internal/platform/store"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/auth/domain"
	"opscreen/internal/services/auth/repo"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Config for the auth service
type Config struct {
	SigningSecret string
	TokenTTL      time.Duration

	SignupEnabled bool
	SignupDomains []string // empty allows any domain when signup is enabled

	ListLimit int
}

// Service implements domain.AuthnPort, domain.AdminPort, and the platform
// auth middleware seam. With no storage configured every operation except
// LoginRequired answers unavailable
type Service struct {
	tx    store.TxRunner
	users repokit.Binder[repo.Storage]
	rds   redis.UniversalClient
	audit auditdom.SinkPort
	cfg   Config
}

// New constructs the auth service
func New(tx store.TxRunner, rds redis.UniversalClient, audit auditdom.SinkPort, cfg Config) *Service {
	if audit == nil {
		panic("auth: audit sink is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 100
	}
	return &Service{
		tx:    tx,
		users: repo.NewPG(),
		rds:   rds,
		audit: audit,
		cfg:   cfg,
	}
}

// LoginRequired implements domain.AuthnPort: with no storage there are no
// accounts, so the UI skips the login screen entirely
func (s *Service) LoginRequired() bool { return s.tx != nil }

// Login implements domain.AuthnPort
func (s *Service) Login(ctx context.Context, in domain.LoginInput, ip string) (domain.LoginOutput, error) {
	if s.tx == nil {
		return domain.LoginOutput{}, perr.Unavailablef("login requires persistent storage")
	}
	email := normalizeEmail(in.Email)
	now := time.Now().UTC()

	if err := s.checkBackoff(ctx, email, now); err != nil {
		s.auditLogin(ctx, email, auditdom.ActionLoginFailed, "rate_limited", ip)
		return domain.LoginOutput{}, err
	}

	u, err := s.users.Bind(s.tx).GetByEmail(ctx, email)
	if err != nil {
		return domain.LoginOutput{}, err
	}
	if u == nil || !u.Active || !VerifyPassword(u.PasswordHash, in.Password) {
		s.recordAttempt(ctx, email, false, ip, now)
		s.noteFailure(ctx, email, now)
		s.auditLogin(ctx, email, auditdom.ActionLoginFailed, "invalid_credentials", ip)
		return domain.LoginOutput{}, perr.Unauthorizedf("invalid credentials")
	}

	s.recordAttempt(ctx, email, true, ip, now)
	s.clearFailures(ctx, email)
	s.auditLogin(ctx, email, auditdom.ActionLogin, "success", ip)

	return s.loginOutput(*u, now)
}

// Me implements domain.AuthnPort
func (s *Service) Me(ctx context.Context, userID string) (domain.UserView, error) {
	if s.tx == nil {
		return domain.UserView{}, perr.Unavailablef("persistent storage not configured")
	}
	u, err := s.users.Bind(s.tx).GetByID(ctx, userID)
	if err != nil {
		return domain.UserView{}, err
	}
	if u == nil {
		return domain.UserView{}, perr.NotFoundf("unknown user")
	}
	return viewOf(*u), nil
}

// ChangePassword implements domain.AuthnPort. Rotating the password
// invalidates previously issued tokens via password_changed_at
func (s *Service) ChangePassword(ctx context.Context, userID string, in domain.ChangePasswordInput) error {
	if s.tx == nil {
		return perr.Unavailablef("persistent storage not configured")
	}
	u, err := s.users.Bind(s.tx).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return perr.NotFoundf("unknown user")
	}
	if !VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return perr.WithField(perr.Unauthorizedf("current password is incorrect"), "current_password")
	}
	if err := CheckPasswordStrength(in.NewPassword); err != nil {
		return err
	}
	hash, err := HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = time.Now().UTC()
	if err := s.users.Bind(s.tx).Update(ctx, *u); err != nil {
		return err
	}
	s.audit.Emit(ctx, auditdom.Event{
		Actor:         u.ID,
		Action:        auditdom.ActionUserAdmin,
		Outcome:       "password_changed",
		CorrelationID: pnet.CorrelationID(ctx),
	})
	return nil
}

// Signup implements domain.AuthnPort: immediate password choice, optionally
// restricted to an email-domain allowlist
func (s *Service) Signup(ctx context.Context, in domain.SignupInput, ip string) (domain.LoginOutput, error) {
	if s.tx == nil {
		return domain.LoginOutput{}, perr.Unavailablef("signup requires persistent storage")
	}
	if !s.cfg.SignupEnabled {
		return domain.LoginOutput{}, perr.Forbiddenf("self signup is disabled")
	}
	email := normalizeEmail(in.Email)
	if !s.domainAllowed(email) {
		return domain.LoginOutput{}, perr.WithField(
			perr.Forbiddenf("email domain is not allowed to sign up"), "email")
	}
	if err := CheckPasswordStrength(in.Password); err != nil {
		return domain.LoginOutput{}, err
	}

	now := time.Now().UTC()
	hash, err := HashPassword(in.Password)
	if err != nil {
		return domain.LoginOutput{}, err
	}
	u := domain.User{
		ID:                uuid.NewString(),
		Email:             email,
		DisplayName:       strings.TrimSpace(in.DisplayName),
		Role:              domain.RoleUser,
		Active:            true,
		PasswordHash:      hash,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.users.Bind(s.tx).Insert(ctx, u); err != nil {
		if perr.IsCode(err, perr.ErrorCodeDuplicateKey) {
			return domain.LoginOutput{}, perr.WithField(
				perr.Conflictf("an account with this email already exists"), "email")
		}
		return domain.LoginOutput{}, err
	}

	s.audit.Emit(ctx, auditdom.Event{
		Actor:         u.ID,
		Action:        auditdom.ActionUserAdmin,
		Outcome:       "signup",
		CorrelationID: pnet.CorrelationID(ctx),
		Detail:        map[string]any{"email": email, "ip": ip},
	})
	return s.loginOutput(u, now)
}

// ListUsers implements domain.AdminPort
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]domain.UserView, error) {
	if s.tx == nil {
		return nil, perr.Unavailablef("persistent storage not configured")
	}
	if limit <= 0 || limit > s.cfg.ListLimit {
		limit = s.cfg.ListLimit
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.Bind(s.tx).List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserView, 0, len(users))
	for _, u := range users {
		out = append(out, viewOf(u))
	}
	return out, nil
}

// CreateUser implements domain.AdminPort
func (s *Service) CreateUser(ctx context.Context, actor string, in domain.CreateUserInput) (domain.UserView, error) {
	if s.tx == nil {
		return domain.UserView{}, perr.Unavailablef("persistent storage not configured")
	}
	u, err := s.buildUser(in)
	if err != nil {
		return domain.UserView{}, err
	}
	if err := s.users.Bind(s.tx).Insert(ctx, u); err != nil {
		if perr.IsCode(err, perr.ErrorCodeDuplicateKey) {
			return domain.UserView{}, perr.WithField(
				perr.Conflictf("an account with this email already exists"), "email")
		}
		return domain.UserView{}, err
	}
	s.auditAdmin(ctx, actor, "user_created", u.Email)
	return viewOf(u), nil
}

// UpdateUser implements domain.AdminPort; nil fields stay untouched
func (s *Service) UpdateUser(ctx context.Context, actor, id string, in domain.UpdateUserInput) (domain.UserView, error) {
	if s.tx == nil {
		return domain.UserView{}, perr.Unavailablef("persistent storage not configured")
	}
	u, err := s.users.Bind(s.tx).GetByID(ctx, id)
	if err != nil {
		return domain.UserView{}, err
	}
	if u == nil {
		return domain.UserView{}, perr.NotFoundf("unknown user id")
	}
	wasActiveAdmin := u.Role == domain.RoleAdmin && u.Active

	if in.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	if in.Password != nil {
		if err := CheckPasswordStrength(*in.Password); err != nil {
			return domain.UserView{}, err
		}
		hash, err := HashPassword(*in.Password)
		if err != nil {
			return domain.UserView{}, err
		}
		u.PasswordHash = hash
		u.PasswordChangedAt = time.Now().UTC()
	}

	// demoting or disabling the last active admin would lock everyone out
	if wasActiveAdmin && (u.Role != domain.RoleAdmin || !u.Active) {
		admins, err := s.users.Bind(s.tx).CountAdmins(ctx)
		if err != nil {
			return domain.UserView{}, err
		}
		if admins <= 1 {
			return domain.UserView{}, perr.Conflictf("cannot demote or disable the last active admin")
		}
	}

	if err := s.users.Bind(s.tx).Update(ctx, *u); err != nil {
		return domain.UserView{}, err
	}
	s.auditAdmin(ctx, actor, "user_updated", u.Email)
	return viewOf(*u), nil
}

// ImportUsers implements domain.AdminPort with per-item outcomes
func (s *Service) ImportUsers(ctx context.Context, actor string, items []domain.CreateUserInput) ([]domain.ImportItemOutcome, error) {
	if s.tx == nil {
		return nil, perr.Unavailablef("persistent storage not configured")
	}
	out := make([]domain.ImportItemOutcome, 0, len(items))
	created := 0
	for _, in := range items {
		email := normalizeEmail(in.Email)
		u, err := s.buildUser(in)
		if err == nil {
			err = s.users.Bind(s.tx).Insert(ctx, u)
			if perr.IsCode(err, perr.ErrorCodeDuplicateKey) {
				err = perr.Conflictf("email already exists")
			}
		}
		if err != nil {
			out = append(out, domain.ImportItemOutcome{Email: email, Status: "error", Error: err.Error()})
			continue
		}
		created++
		out = append(out, domain.ImportItemOutcome{Email: email, Status: "created"})
	}
	logger.C(ctx).Info().Int("items", len(items)).Int("created", created).Msg("user import finished")
	s.auditAdmin(ctx, actor, "user_import", "")
	return out, nil
}

// EnsureSeedAdmin creates the bootstrap admin when the table has none
func (s *Service) EnsureSeedAdmin(ctx context.Context, email, password string) error {
	if s.tx == nil || email == "" || password == "" {
		return nil
	}
	admins, err := s.users.Bind(s.tx).CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins > 0 {
		return nil
	}
	_, err = s.CreateUser(ctx, auditdom.SystemActor, domain.CreateUserInput{
		Email:       email,
		DisplayName: "Administrator",
		Password:    password,
		Role:        domain.RoleAdmin,
	})
	if err != nil && !perr.IsCode(err, perr.ErrorCodeConflict) {
		return err
	}
	logger.Named("auth").Info().Str("email", normalizeEmail(email)).Msg("seed admin ensured")
	return nil
}

func (s *Service) buildUser(in domain.CreateUserInput) (domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, perr.WithField(perr.InvalidArgf("a valid email is required"), "email")
	}
	if err := CheckPasswordStrength(in.Password); err != nil {
		return domain.User{}, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.ValidRole(role) {
		return domain.User{}, perr.WithField(perr.InvalidArgf("role must be admin or user"), "role")
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	now := time.Now().UTC()
	return domain.User{
		ID:                uuid.NewString(),
		Email:             email,
		DisplayName:       strings.TrimSpace(in.DisplayName),
		Role:              role,
		Active:            active,
		PasswordHash:      hash,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (s *Service) loginOutput(u domain.User, now time.Time) (domain.LoginOutput, error) {
	token, expires, err := s.signToken(u, now)
	if err != nil {
		return domain.LoginOutput{}, err
	}
	return domain.LoginOutput{
		Token:     token,
		ExpiresAt: expires.Format(time.RFC3339),
		User:      viewOf(u),
	}, nil
}

func (s *Service) domainAllowed(email string) bool {
	if len(s.cfg.SignupDomains) == 0 {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	dom := email[at+1:]
	for _, d := range s.cfg.SignupDomains {
		if strings.EqualFold(dom, strings.TrimSpace(d)) {
			return true
		}
	}
	return false
}

func (s *Service) recordAttempt(ctx context.Context, email string, ok bool, ip string, at time.Time) {
	err := s.users.Bind(s.tx).RecordLoginAttempt(ctx, domain.LoginAttempt{
		Email: email, Success: ok, IP: ip, At: at,
	})
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("login attempt not recorded")
	}
}

func (s *Service) auditLogin(ctx context.Context, email, action, outcome, ip string) {
	s.audit.Emit(ctx, auditdom.Event{
		Actor:         email,
		Action:        action,
		Outcome:       outcome,
		CorrelationID: pnet.CorrelationID(ctx),
		Detail:        map[string]any{"ip": ip},
	})
}

func (s *Service) auditAdmin(ctx context.Context, actor, outcome, subject string) {
	ev := auditdom.Event{
		Actor:         actor,
		Action:        auditdom.ActionUserAdmin,
		Outcome:       outcome,
		CorrelationID: pnet.CorrelationID(ctx),
	}
	if subject != "" {
		ev.Detail = map[string]any{"email": subject}
	}
	s.audit.Emit(ctx, ev)
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func viewOf(u domain.User) domain.UserView {
	return domain.UserView{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
