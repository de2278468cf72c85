package identity

import (
	"chatcore/internal/apperr"
	"chatcore/internal/credential"
	"chatcore/internal/database"
	"chatcore/internal/jwt"
	"chatcore/internal/keyValue"
	"chatcore/internal/models"
	"chatcore/internal/testutil"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

func newTestDirectory(t *testing.T) (*Directory, *database.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	kv := keyValue.Setup(testutil.Logger(), nil, true)
	return NewDirectory(db, credential.New(bcrypt.MinCost), jwt.New("test-secret", false), kv, testutil.Logger()), db
}

func stubRandom(t *testing.T, values ...int) {
	t.Helper()
	saved := randomDiscriminator
	i := 0
	randomDiscriminator = func() int {
		v := values[min(i, len(values)-1)]
		i++
		return v
	}
	t.Cleanup(func() { randomDiscriminator = saved })
}

func TestRegisterAllocatesHandles(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	first, err := d.Register(ctx, "nova@example.com", "nova", "pw")
	require.NoError(t, err)
	assert.Equal(t, "nova#0001", first.Handle)
	assert.Equal(t, "0001", first.Discriminator)
	assert.Equal(t, models.StatusOffline, first.Status)
	assert.Equal(t, "dark", first.Theme)
	assert.Equal(t, "en", first.Locale)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := d.Register(ctx, "nova2@example.com", "nova", "pw")
	require.NoError(t, err)
	assert.Equal(t, "nova#0002", second.Handle)
	assert.NotEqual(t, first.ID, second.ID)

	// usernames are matched exactly
	upper, err := d.Register(ctx, "nova3@example.com", "Nova", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Nova#0001", upper.Handle)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	user, err := d.Register(ctx, "  Nova@Example.COM ", "nova", "pw")
	require.NoError(t, err)
	assert.Equal(t, "nova@example.com", user.Email)

	_, err = d.Register(ctx, "nova@example.com", "other", "pw")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
	assert.Equal(t, "email is already registered", appErr.Message)
}

func TestRegisterValidation(t *testing.T) {
	d, db := newTestDirectory(t)

	tests := []struct {
		name     string
		email    string
		username string
		password string
	}{
		{name: "Error: Empty email", email: "", username: "nova", password: "pw"},
		{name: "Error: Empty username", email: "a@example.com", username: "", password: "pw"},
		{name: "Error: Empty password", email: "a@example.com", username: "nova", password: ""},
		{name: "Error: Short username", email: "a@example.com", username: "no", password: "pw"},
		{name: "Error: Long username", email: "a@example.com", username: strings.Repeat("n", 21), password: "pw"},
		{name: "Error: Username with symbols", email: "a@example.com", username: "no-va", password: "pw"},
		{name: "Error: Bad email", email: "not-an-email", username: "nova", password: "pw"},
		{name: "Error: Long password", email: "a@example.com", username: "nova", password: strings.Repeat("p", 73)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Register(context.Background(), tc.email, tc.username, tc.password)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Zero(t, count)
}

func TestRegisterConcurrentSameUsername(t *testing.T) {
	d, _ := newTestDirectory(t)
	const n = 8

	var wg sync.WaitGroup
	handles := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := d.Register(context.Background(), fmt.Sprintf("user%d@example.com", i), "nova", "pw")
			handles[i], errs[i] = user.Handle, err
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := range n {
		if errs[i] != nil {
			// a loser may only ever see a conflict
			assert.True(t, apperr.Is(errs[i], apperr.KindConflict), "got %v", errs[i])
			continue
		}
		assert.False(t, seen[handles[i]], "duplicate handle %s", handles[i])
		seen[handles[i]] = true
	}
	assert.NotEmpty(t, seen)
}

func TestAllocate(t *testing.T) {
	_, db := newTestDirectory(t)
	ctx := context.Background()

	discriminator, err := Allocate(ctx, db, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 1, discriminator)

	_, err = db.Exec("INSERT INTO users (id, email, username, discriminator, credential) VALUES ('u1', 'a@x.io', 'ghost', 41, 'x')")
	require.NoError(t, err)
	discriminator, err = Allocate(ctx, db, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 42, discriminator)

	_, err = db.Exec("INSERT INTO users (id, email, username, discriminator, credential) VALUES ('u2', 'b@x.io', 'ghost', 9999, 'x')")
	require.NoError(t, err)
	stubRandom(t, 1234)
	discriminator, err = Allocate(ctx, db, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 1234, discriminator)
}

func TestRandomDiscriminatorRange(t *testing.T) {
	for range 1000 {
		v := randomDiscriminator()
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, MaxDiscriminator)
	}
}

func TestRegisterRetriesOnFallbackCollision(t *testing.T) {
	d, db := newTestDirectory(t)

	_, err := db.Exec("INSERT INTO users (id, email, username, discriminator, credential) VALUES ('u1', 'a@x.io', 'full', 9999, 'x')")
	require.NoError(t, err)

	// first random pick collides with the existing 9999
	stubRandom(t, 9999, 7)
	user, err := d.Register(context.Background(), "b@x.io", "full", "pw")
	require.NoError(t, err)
	assert.Equal(t, "full#0007", user.Handle)
}

func TestRegisterGivesUpAfterRetries(t *testing.T) {
	d, db := newTestDirectory(t)

	_, err := db.Exec("INSERT INTO users (id, email, username, discriminator, credential) VALUES ('u1', 'a@x.io', 'full', 9999, 'x')")
	require.NoError(t, err)

	stubRandom(t, 9999)
	_, err = d.Register(context.Background(), "b@x.io", "full", "pw")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM user_settings").Scan(&count))
	assert.Zero(t, count)
}

func TestFormatHandle(t *testing.T) {
	assert.Equal(t, "nova#0001", FormatHandle("nova", 1))
	assert.Equal(t, "nova#0420", FormatHandle("nova", 420))
	assert.Equal(t, "nova#9999", FormatHandle("nova", 9999))
}

func TestLogin(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	registered, err := d.Register(ctx, "nova@example.com", "nova", "pw")
	require.NoError(t, err)

	user, session, err := d.Login(ctx, " NOVA@example.com", "pw", false)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, models.StatusOnline, user.Status)
	assert.NotEmpty(t, session.Token)
	assert.WithinDuration(t, time.Now().Add(jwt.ShortLifeTime), session.ExpiresAt, time.Minute)

	verified, err := d.Verify(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, verified.ID)
	assert.Equal(t, models.StatusOnline, verified.Status)

	_, remembered, err := d.Login(ctx, "nova@example.com", "pw", true)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(jwt.RememberLifeTime), remembered.ExpiresAt, time.Minute)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.Register(ctx, "nova@example.com", "nova", "pw")
	require.NoError(t, err)

	_, _, wrongPassword := d.Login(ctx, "nova@example.com", "nope", false)
	_, _, unknownEmail := d.Login(ctx, "ghost@example.com", "pw", false)
	_, _, empty := d.Login(ctx, "", "", false)

	for _, err := range []error{wrongPassword, unknownEmail, empty} {
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindAuth))
		assert.Equal(t, wrongPassword.Error(), err.Error())
	}
}

func TestLoginDoesNotLogEmail(t *testing.T) {
	d, _ := newTestDirectory(t)
	core, logs := observer.New(zapcore.DebugLevel)
	d.sugar = zap.New(core).Sugar()
	ctx := context.Background()

	_, err := d.Register(ctx, "nova@example.com", "nova", "pw")
	require.NoError(t, err)

	_, _, err = d.Login(ctx, "ghost@example.com", "pw", false)
	require.True(t, apperr.Is(err, apperr.KindAuth))
	_, _, err = d.Login(ctx, "nova@example.com", "nope", false)
	require.True(t, apperr.Is(err, apperr.KindAuth))

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, "@example.com")
		for _, field := range entry.Context {
			assert.NotContains(t, field.String, "@example.com")
		}
	}
}

func TestLoginMigratesLegacyCredential(t *testing.T) {
	d, db := newTestDirectory(t)
	ctx := context.Background()

	user, err := d.Register(ctx, "old@example.com", "oldtimer", "hunter2")
	require.NoError(t, err)
	_, err = db.Exec("UPDATE users SET credential = ? WHERE id = ?", credential.LegacyHash("hunter2"), user.ID)
	require.NoError(t, err)

	storedCredential := func() string {
		var c string
		require.NoError(t, db.QueryRow("SELECT credential FROM users WHERE id = ?", user.ID).Scan(&c))
		return c
	}

	// a failed login leaves the legacy credential alone
	_, _, err = d.Login(ctx, "old@example.com", "wrong", false)
	require.Error(t, err)
	assert.True(t, credential.IsLegacy(storedCredential()))

	_, _, err = d.Login(ctx, "old@example.com", "hunter2", false)
	require.NoError(t, err)
	migrated := storedCredential()
	assert.False(t, credential.IsLegacy(migrated))
	assert.True(t, strings.HasPrefix(migrated, "$2"))

	_, _, err = d.Login(ctx, "old@example.com", "hunter2", false)
	require.NoError(t, err)
	assert.Equal(t, migrated, storedCredential())
}

func TestVerifyRejects(t *testing.T) {
	d, db := newTestDirectory(t)
	ctx := context.Background()

	user, err := d.Register(ctx, "nova@example.com", "nova", "pw")
	require.NoError(t, err)
	_, session, err := d.Login(ctx, "nova@example.com", "pw", false)
	require.NoError(t, err)

	_, err = d.Verify(ctx, "garbage")
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	foreign, _, err := jwt.New("other-secret", false).CreateToken(false, user.ID)
	require.NoError(t, err)
	_, err = d.Verify(ctx, foreign)
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	_, err = db.Exec("DELETE FROM users WHERE id = ?", user.ID)
	require.NoError(t, err)
	_, err = d.Verify(ctx, session.Token)
	assert.True(t, apperr.Is(err, apperr.KindAuth), "got %v", err)
}

func TestLogout(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	user, err := d.Register(ctx, "nova@example.com", "nova", "pw")
	require.NoError(t, err)
	_, session, err := d.Login(ctx, "nova@example.com", "pw", false)
	require.NoError(t, err)
	_, other, err := d.Login(ctx, "nova@example.com", "pw", false)
	require.NoError(t, err)

	require.NoError(t, d.Logout(ctx, session.Token))

	_, err = d.Verify(ctx, session.Token)
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	// other sessions stay valid
	current, err := d.Verify(ctx, other.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, current.ID)
	assert.Equal(t, models.StatusOffline, current.Status)

	assert.True(t, apperr.Is(d.Logout(ctx, session.Token), apperr.KindAuth))
}

func TestUpdateProfile(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	user, err := d.Register(ctx, "nova@example.com", "nova", "pw")
	require.NoError(t, err)

	bio := "stargazer"
	theme := "light"
	updated, err := d.UpdateProfile(ctx, user.ID, ProfileUpdate{Bio: &bio, Theme: &theme})
	require.NoError(t, err)
	assert.Equal(t, "stargazer", updated.Bio)
	assert.Equal(t, "light", updated.Theme)
	assert.Equal(t, "en", updated.Locale)
	assert.Equal(t, "", updated.Avatar)

	avatar := "https://cdn.example.com/nova.png"
	updated, err = d.UpdateProfile(ctx, user.ID, ProfileUpdate{Avatar: &avatar})
	require.NoError(t, err)
	assert.Equal(t, avatar, updated.Avatar)
	assert.Equal(t, "stargazer", updated.Bio)

	_, err = d.UpdateProfile(ctx, "missing", ProfileUpdate{Bio: &bio})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateProfileValidation(t *testing.T) {
	d, _ := newTestDirectory(t)

	user, err := d.Register(context.Background(), "nova@example.com", "nova", "pw")
	require.NoError(t, err)

	ptr := func(s string) *string { return &s }
	tests := []struct {
		name   string
		update ProfileUpdate
	}{
		{name: "Error: Long bio", update: ProfileUpdate{Bio: ptr(strings.Repeat("b", 191))}},
		{name: "Error: Long avatar", update: ProfileUpdate{Avatar: ptr(strings.Repeat("a", 513))}},
		{name: "Error: Long banner", update: ProfileUpdate{Banner: ptr(strings.Repeat("a", 513))}},
		{name: "Error: Unknown theme", update: ProfileUpdate{Theme: ptr("neon")}},
		{name: "Error: Empty theme", update: ProfileUpdate{Theme: ptr("")}},
		{name: "Error: Bad locale", update: ProfileUpdate{Locale: ptr("en_US")}},
		{name: "Error: Short locale", update: ProfileUpdate{Locale: ptr("e")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.UpdateProfile(context.Background(), user.ID, tc.update)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestSetStatusAndGetUser(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	user, err := d.Register(ctx, "nova@example.com", "nova", "pw")
	require.NoError(t, err)

	updated, err := d.SetStatus(ctx, user.ID, models.StatusDnd)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDnd, updated.Status)

	_, err = d.SetStatus(ctx, user.ID, "busy")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	public, err := d.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "nova#0001", public.Handle)
	assert.Equal(t, models.StatusDnd, public.Status)

	_, err = d.GetUser(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
