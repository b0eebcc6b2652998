package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/auth/domain"
	"opscreen/internal/services/auth/repo"

	"github.com/stretchr/testify/require"
)

//
// fakes
//

type fakeTag struct{}

func (fakeTag) String() string      { return "" }
func (fakeTag) RowsAffected() int64 { return 0 }

type fakeTx struct{}

func (fakeTx) Exec(context.Context, string, ...any) (repokit.CommandTag, error) {
	return fakeTag{}, nil
}

func (fakeTx) Query(context.Context, string, ...any) (repokit.Rows, error) {
	return nil, errors.New("unexpected direct query")
}

func (fakeTx) QueryRow(context.Context, string, ...any) repokit.Row { return nil }

func (f fakeTx) Tx(_ context.Context, fn func(q repokit.Queryer) error) error { return fn(f) }

type usersFake struct {
	mu       sync.Mutex
	byID     map[string]*domain.User
	attempts []domain.LoginAttempt
}

func newUsersFake() *usersFake { return &usersFake{byID: map[string]*domain.User{}} }

func (f *usersFake) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *usersFake) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *usersFake) Insert(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.byID {
		if ex.Email == u.Email {
			return perr.Newf(perr.ErrorCodeDuplicateKey, "email exists")
		}
	}
	cp := u
	f.byID[u.ID] = &cp
	return nil
}

func (f *usersFake) Update(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[u.ID]; !ok {
		return perr.NotFoundf("unknown user id")
	}
	cp := u
	f.byID[u.ID] = &cp
	return nil
}

func (f *usersFake) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *usersFake) CountAdmins(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.byID {
		if u.Role == domain.RoleAdmin && u.Active {
			n++
		}
	}
	return n, nil
}

func (f *usersFake) RecordLoginAttempt(_ context.Context, a domain.LoginAttempt) error {
	f.mu.Lock()
	f.attempts = append(f.attempts, a)
	f.mu.Unlock()
	return nil
}

func (f *usersFake) FailedAttemptsSince(_ context.Context, email string, since time.Time) (int, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	var last *time.Time
	for i := range f.attempts {
		a := f.attempts[i]
		if a.Email == email && !a.Success && a.At.After(since) {
			n++
			if last == nil || a.At.After(*last) {
				t := a.At
				last = &t
			}
		}
	}
	return n, last, nil
}

func (f *usersFake) PurgeAttemptsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.attempts[:0]
	var n int64
	for _, a := range f.attempts {
		if a.At.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	f.attempts = kept
	return n, nil
}

type bindUsers struct{ s repo.Storage }

func (b bindUsers) Bind(repokit.Queryer) repo.Storage { return b.s }

type sinkFake struct {
	mu     sync.Mutex
	events []auditdom.Event
}

func (s *sinkFake) Emit(_ context.Context, ev auditdom.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

//
// fixture
//

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	svc   *Service
	users *usersFake
	sink  *sinkFake
}

func newFixture(cfg Config) *fixture {
	if cfg.SigningSecret == "" {
		cfg.SigningSecret = testSecret
	}
	f := &fixture{users: newUsersFake(), sink: &sinkFake{}}
	f.svc = New(fakeTx{}, nil, f.sink, cfg)
	f.svc.users = bindUsers{f.users}
	return f
}

func (f *fixture) seedUser(t *testing.T, email, password, role string, active bool) domain.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	now := time.Now().UTC()
	u := domain.User{
		ID:                email, // deterministic ids keep assertions simple
		Email:             email,
		Role:              role,
		Active:            active,
		PasswordHash:      hash,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.users.Insert(context.Background(), u))
	return u
}

//
// login
//

func TestLoginSuccess(t *testing.T) {
	f := newFixture(Config{})
	f.seedUser(t, "analyst@example.com", "sensible9", domain.RoleUser, true)

	out, err := f.svc.Login(context.Background(),
		domain.LoginInput{Email: "Analyst@Example.com", Password: "sensible9"}, "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)
	require.Equal(t, "analyst@example.com", out.User.Email)

	// the issued token resolves back to the same account
	c, err := f.svc.parseToken(out.Token)
	require.NoError(t, err)
	require.Equal(t, "analyst@example.com", c.Subject)
	require.Equal(t, domain.RoleUser, c.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(Config{})
	f.seedUser(t, "analyst@example.com", "sensible9", domain.RoleUser, true)

	for _, in := range []domain.LoginInput{
		{Email: "analyst@example.com", Password: "wrong pass 1"},
		{Email: "nobody@example.com", Password: "sensible9"},
	} {
		_, err := f.svc.Login(context.Background(), in, "")
		require.True(t, perr.IsCode(err, perr.ErrorCodeUnauthorized))
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	f := newFixture(Config{})
	f.seedUser(t, "analyst@example.com", "sensible9", domain.RoleUser, false)

	_, err := f.svc.Login(context.Background(),
		domain.LoginInput{Email: "analyst@example.com", Password: "sensible9"}, "")
	require.True(t, perr.IsCode(err, perr.ErrorCodeUnauthorized))
}

func TestLoginUnavailableWithoutStorage(t *testing.T) {
	svc := New(nil, nil, &sinkFake{}, Config{SigningSecret: testSecret})
	_, err := svc.Login(context.Background(),
		domain.LoginInput{Email: "a@b.c", Password: "x"}, "")
	require.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	require.False(t, svc.LoginRequired())
}

//
// backoff
//

func TestBackoffDelayTiers(t *testing.T) {
	require.Equal(t, time.Duration(0), backoffDelay(0))
	require.Equal(t, time.Duration(0), backoffDelay(4))
	require.Equal(t, 30*time.Second, backoffDelay(5))
	require.Equal(t, 30*time.Second, backoffDelay(7))
	require.Equal(t, 2*time.Minute, backoffDelay(8))
	require.Equal(t, 2*time.Minute, backoffDelay(9))
	require.Equal(t, 10*time.Minute, backoffDelay(10))
	require.Equal(t, 10*time.Minute, backoffDelay(50))
}

func TestLoginBackoffAfterRepeatedFailures(t *testing.T) {
	f := newFixture(Config{})
	f.seedUser(t, "analyst@example.com", "sensible9", domain.RoleUser, true)

	bad := domain.LoginInput{Email: "analyst@example.com", Password: "wrong pass 1"}
	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(context.Background(), bad, "")
		require.True(t, perr.IsCode(err, perr.ErrorCodeUnauthorized))
	}

	// even the correct password is deferred during the backoff period
	_, err := f.svc.Login(context.Background(),
		domain.LoginInput{Email: "analyst@example.com", Password: "sensible9"}, "")
	require.True(t, perr.IsCode(err, perr.ErrorCodeTooManyRequests))
}

func TestBackoffExpiresAfterDelay(t *testing.T) {
	f := newFixture(Config{})
	f.seedUser(t, "analyst@example.com", "sensible9", domain.RoleUser, true)

	old := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.users.RecordLoginAttempt(context.Background(), domain.LoginAttempt{
			Email: "analyst@example.com", Success: false, At: old,
		}))
	}

	// five failures a minute ago: the 30s tier has already elapsed
	out, err := f.svc.Login(context.Background(),
		domain.LoginInput{Email: "analyst@example.com", Password: "sensible9"}, "")
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)
}

//
// tokens
//

func newAuthedRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestParseRejectsWrongSecret(t *testing.T) {
	f := newFixture(Config{})
	u := f.seedUser(t, "analyst@example.com", "sensible9", domain.RoleUser, true)

	token, _, err := f.svc.signToken(u, time.Now().UTC())
	require.NoError(t, err)

	other := newFixture(Config{SigningSecret: "ffffffffffffffffffffffffffffffff"})
	_, err = other.svc.parseToken(token)
	require.True(t, perr.IsCode(err, perr.ErrorCodeUnauthorized))
}

func TestParseRejectsExpiredToken(t *testing.T) {
	f := newFixture(Config{TokenTTL: time.Minute})
	u := f.seedUser(t, "analyst@example.com", "sensible9", domain.RoleUser, true)

	token, _, err := f.svc.signToken(u, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	_, err = f.svc.parseToken(token)
	require.True(t, perr.IsCode(err, perr.ErrorCodeUnauthorized))
}

func TestPasswordChangeInvalidatesOldTokens(t *testing.T) {
	f := newFixture(Config{})
	u := f.seedUser(t, "analyst@example.com", "sensible9", domain.RoleUser, true)

	out, err := f.svc.Login(context.Background(),
		domain.LoginInput{Email: u.Email, Password: "sensible9"}, "")
	require.NoError(t, err)

	// rotate well after the token was issued
	time.Sleep(10 * time.Millisecond)
	stored := f.users.byID[u.ID]
	stored.PasswordChangedAt = time.Now().UTC().Add(2 * time.Second)

	req := newAuthedRequest(t, out.Token)
	_, _, err = f.svc.Parse(req)
	require.True(t, perr.IsCode(err, perr.ErrorCodeUnauthorized))
}

//
// admin
//

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(Config{})

	_, err := f.svc.CreateUser(context.Background(), "admin", domain.CreateUserInput{
		Email: "not-an-email", Password: "sensible9",
	})
	require.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))

	_, err = f.svc.CreateUser(context.Background(), "admin", domain.CreateUserInput{
		Email: "a@example.com", Password: "weak",
	})
	require.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))

	v, err := f.svc.CreateUser(context.Background(), "admin", domain.CreateUserInput{
		Email: "A@Example.com", Password: "sensible9",
	})
	require.NoError(t, err)
	require.Equal(t, "a@example.com", v.Email)
	require.Equal(t, domain.RoleUser, v.Role, "role defaults to user")
	require.True(t, v.Active)

	_, err = f.svc.CreateUser(context.Background(), "admin", domain.CreateUserInput{
		Email: "a@example.com", Password: "sensible9",
	})
	require.True(t, perr.IsCode(err, perr.ErrorCodeConflict))
}

func TestUpdateUserGuardsLastAdmin(t *testing.T) {
	f := newFixture(Config{})
	admin := f.seedUser(t, "root@example.com", "sensible9", domain.RoleAdmin, true)

	role := domain.RoleUser
	_, err := f.svc.UpdateUser(context.Background(), "root", admin.ID, domain.UpdateUserInput{Role: &role})
	require.True(t, perr.IsCode(err, perr.ErrorCodeConflict))

	off := false
	_, err = f.svc.UpdateUser(context.Background(), "root", admin.ID, domain.UpdateUserInput{Active: &off})
	require.True(t, perr.IsCode(err, perr.ErrorCodeConflict))

	// with a second active admin the demotion goes through
	f.seedUser(t, "root2@example.com", "sensible9", domain.RoleAdmin, true)
	v, err := f.svc.UpdateUser(context.Background(), "root", admin.ID, domain.UpdateUserInput{Role: &role})
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, v.Role)
}

func TestImportUsersPerItemOutcomes(t *testing.T) {
	f := newFixture(Config{})
	f.seedUser(t, "dup@example.com", "sensible9", domain.RoleUser, true)

	out, err := f.svc.ImportUsers(context.Background(), "admin", []domain.CreateUserInput{
		{Email: "new@example.com", Password: "sensible9"},
		{Email: "dup@example.com", Password: "sensible9"},
		{Email: "bad", Password: "sensible9"},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "created", out[0].Status)
	require.Equal(t, "error", out[1].Status)
	require.Equal(t, "error", out[2].Status)
}

func TestEnsureSeedAdmin(t *testing.T) {
	f := newFixture(Config{})

	require.NoError(t, f.svc.EnsureSeedAdmin(context.Background(), "root@example.com", "sensible9"))
	n, err := f.users.CountAdmins(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// second call is a no-op once an admin exists
	require.NoError(t, f.svc.EnsureSeedAdmin(context.Background(), "other@example.com", "sensible9"))
	n, err = f.users.CountAdmins(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

//
// signup
//

func TestSignupDisabledByDefault(t *testing.T) {
	f := newFixture(Config{})
	_, err := f.svc.Signup(context.Background(), domain.SignupInput{
		Email: "a@example.com", Password: "sensible9",
	}, "")
	require.True(t, perr.IsCode(err, perr.ErrorCodeForbidden))
}

func TestSignupDomainAllowlist(t *testing.T) {
	f := newFixture(Config{SignupEnabled: true, SignupDomains: []string{"example.com"}})

	_, err := f.svc.Signup(context.Background(), domain.SignupInput{
		Email: "a@elsewhere.net", Password: "sensible9",
	}, "")
	require.True(t, perr.IsCode(err, perr.ErrorCodeForbidden))

	out, err := f.svc.Signup(context.Background(), domain.SignupInput{
		Email: "a@Example.COM", Password: "sensible9", DisplayName: "A",
	}, "")
	require.NoError(t, err)
	require.Equal(t, "a@example.com", out.User.Email)
	require.Equal(t, domain.RoleUser, out.User.Role)
}
