package services

import (
	"context"
	"errors"
	"testing"

	"github.com/isdelr/account-service/internal/auth"
	"github.com/isdelr/account-service/internal/database"
	"github.com/isdelr/account-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	svc    *AccountService
	users  *database.UserStore
	events *database.EventStore
	hasher *auth.Hasher
	tokens *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	env := &testEnv{
		users:  database.NewUserStore(db),
		events: database.NewEventStore(db),
		hasher: auth.NewHasher(bcrypt.MinCost),
		tokens: auth.NewTokenIssuer("user-secret", "admin-secret", 0),
	}
	env.svc = NewAccountService(env.users, env.hasher, env.tokens, NewEventService(env.events, nil))
	return env
}

func (e *testEnv) register(t *testing.T, name, email, password string) models.User {
	t.Helper()
	require.NoError(t, e.svc.Register(context.Background(), name, email, password))
	u, err := e.users.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	tok, err := e.tokens.Issue("Root", "root@example.com", auth.AudienceAdmin)
	require.NoError(t, err)
	return tok
}

func strPtr(s string) *string { return &s }

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), "error: %v", err)
}

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.svc.Register(ctx, "Ada", "ada@example.com", "s3cret"))

	stored, err := env.users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", stored.PasswordHash)
	assert.True(t, env.hasher.Verify("s3cret", stored.PasswordHash))

	tok, err := env.svc.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)

	claims, err := env.tokens.Verify(tok, auth.AudienceUser)
	require.NoError(t, err)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.svc.Register(ctx, "Ada", "ada@example.com", "pw"))
	err := env.svc.Register(ctx, "Imposter", "ada@example.com", "other")
	assertKind(t, err, KindConflict)

	all, err := env.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Ada", all[0].Name)
}

func TestRegister_RequiresNameAndEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	assertKind(t, env.svc.Register(ctx, "", "ada@example.com", "pw"), KindInvalidInput)
	assertKind(t, env.svc.Register(ctx, "Ada", "", "pw"), KindInvalidInput)

	all, err := env.users.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLogin_Failures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "Ada", "ada@example.com", "pw")

	tok, err := env.svc.Login(ctx, "ada@example.com", "wrong")
	assertKind(t, err, KindInvalidCredentials)
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Empty(t, tok)

	tok, err = env.svc.Login(ctx, "nobody@example.com", "pw")
	assertKind(t, err, KindInvalidCredentials)
	assert.ErrorIs(t, err, ErrUnknownEmail)
	assert.Empty(t, tok)
}

func TestListAll_RequiresAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "Ada", "ada@example.com", "pw")
	env.register(t, "Bob", "bob@example.com", "pw")

	_, err := env.svc.ListAll(ctx, "")
	assertKind(t, err, KindUnauthenticated)

	userTok, err := env.svc.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	_, err = env.svc.ListAll(ctx, userTok)
	assertKind(t, err, KindForbidden)

	_, err = env.svc.ListAll(ctx, "garbage")
	assertKind(t, err, KindUnauthenticated)

	users, err := env.svc.ListAll(ctx, env.adminToken(t))
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ada@example.com", users[0].Email)
	assert.Equal(t, "bob@example.com", users[1].Email)
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ada := env.register(t, "Ada", "ada@example.com", "pw")
	bob := env.register(t, "Bob", "bob@example.com", "pw")

	tok, err := env.svc.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	got, err := env.svc.GetByID(ctx, tok, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	// Reads are not ownership checked.
	other, err := env.svc.GetByID(ctx, tok, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", other.Name)

	_, err = env.svc.GetByID(ctx, tok, "missing")
	assertKind(t, err, KindNotFound)

	_, err = env.svc.GetByID(ctx, env.adminToken(t), ada.ID)
	assertKind(t, err, KindForbidden)

	_, err = env.svc.GetByID(ctx, "", ada.ID)
	assertKind(t, err, KindUnauthenticated)
}

func TestUpdate_OwnershipFollowsPayloadEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ada := env.register(t, "Ada", "ada@example.com", "pw")

	tok, err := env.svc.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, tok, ada.ID, models.UserUpdate{Name: strPtr("Eve"), Email: strPtr("eve@example.com")})
	assertKind(t, err, KindForbidden)

	_, err = env.svc.Update(ctx, tok, ada.ID, models.UserUpdate{Name: strPtr("No email")})
	assertKind(t, err, KindForbidden)

	got, err := env.svc.Update(ctx, tok, ada.ID, models.UserUpdate{Name: strPtr("Ada L."), Email: strPtr("ada@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
	assert.Equal(t, "ada@example.com", got.Email)
}

func TestUpdate_RehashesPassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ada := env.register(t, "Ada", "ada@example.com", "old-pw")

	tok, err := env.svc.Login(ctx, "ada@example.com", "old-pw")
	require.NoError(t, err)

	got, err := env.svc.Update(ctx, tok, ada.ID, models.UserUpdate{Email: strPtr("ada@example.com"), Password: strPtr("new-pw")})
	require.NoError(t, err)
	assert.NotEqual(t, "new-pw", got.PasswordHash)
	assert.True(t, env.hasher.Verify("new-pw", got.PasswordHash))
	assert.False(t, env.hasher.Verify("old-pw", got.PasswordHash))

	_, err = env.svc.Login(ctx, "ada@example.com", "old-pw")
	assertKind(t, err, KindInvalidCredentials)
	_, err = env.svc.Login(ctx, "ada@example.com", "new-pw")
	assert.NoError(t, err)
}

func TestUpdate_NotFoundAndConflict(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "Ada", "ada@example.com", "pw")
	bob := env.register(t, "Bob", "bob@example.com", "pw")

	tok, err := env.svc.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, tok, "missing", models.UserUpdate{Email: strPtr("ada@example.com")})
	assertKind(t, err, KindNotFound)

	// Ownership is checked against the payload, so Ada may target Bob's record,
	// but the directory refuses a second account with her email.
	_, err = env.svc.Update(ctx, tok, bob.ID, models.UserUpdate{Email: strPtr("ada@example.com")})
	assertKind(t, err, KindConflict)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ada := env.register(t, "Ada", "ada@example.com", "pw")
	env.register(t, "Bob", "bob@example.com", "pw")

	tok, err := env.svc.Login(ctx, "bob@example.com", "pw")
	require.NoError(t, err)

	_, err = env.svc.Delete(ctx, tok, "missing")
	assertKind(t, err, KindNotFound)
	all, err := env.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	removed, err := env.svc.Delete(ctx, tok, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada.ID, removed.ID)
	assert.Equal(t, "Ada", removed.Name)

	all, err = env.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bob@example.com", all[0].Email)

	_, err = env.svc.Delete(ctx, "", ada.ID)
	assertKind(t, err, KindUnauthenticated)
}

func TestAccountActionsAreRecorded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "Ada", "ada@example.com", "pw")
	_, _ = env.svc.Login(ctx, "ada@example.com", "bad")
	_, err := env.svc.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	events, err := env.events.Recent(ctx, 10)
	require.NoError(t, err)

	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.ElementsMatch(t, []string{"user.register", "user.login.fail", "user.login"}, types)
}

type failingDirectory struct{ err error }

func (f failingDirectory) Create(context.Context, *models.User) error { return f.err }
func (f failingDirectory) FindByID(context.Context, string) (models.User, error) {
	return models.User{}, f.err
}
func (f failingDirectory) FindByEmail(context.Context, string) (models.User, error) {
	return models.User{}, f.err
}
func (f failingDirectory) List(context.Context) ([]models.User, error) { return nil, f.err }
func (f failingDirectory) Update(context.Context, string, models.UserUpdate) (models.User, error) {
	return models.User{}, f.err
}
func (f failingDirectory) Delete(context.Context, string) (models.User, error) {
	return models.User{}, f.err
}
func (f failingDirectory) Ping(context.Context) error { return f.err }

func TestDirectoryFailuresAreInternal(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	tokens := auth.NewTokenIssuer("user-secret", "admin-secret", 0)
	svc := NewAccountService(failingDirectory{err: boom}, auth.NewHasher(bcrypt.MinCost), tokens, nil)

	userTok, err := tokens.Issue("Ada", "ada@example.com", auth.AudienceUser)
	require.NoError(t, err)
	adminTok, err := tokens.Issue("Root", "root@example.com", auth.AudienceAdmin)
	require.NoError(t, err)

	err = svc.Register(ctx, "Ada", "ada@example.com", "pw")
	assertKind(t, err, KindInternal)
	assert.ErrorIs(t, err, boom)

	_, err = svc.Login(ctx, "ada@example.com", "pw")
	assertKind(t, err, KindInternal)

	_, err = svc.ListAll(ctx, adminTok)
	assertKind(t, err, KindInternal)

	_, err = svc.GetByID(ctx, userTok, "x")
	assertKind(t, err, KindInternal)

	_, err = svc.Update(ctx, userTok, "x", models.UserUpdate{Email: strPtr("ada@example.com")})
	assertKind(t, err, KindInternal)

	_, err = svc.Delete(ctx, userTok, "x")
	assertKind(t, err, KindInternal)

	assert.ErrorIs(t, svc.Ping(ctx), boom)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindNotFound, KindOf(newError(KindNotFound, "x", nil)))
	assert.Equal(t, "invalid_credentials", KindInvalidCredentials.String())
}
