package auth_test

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/assistant-console/internal/api"
	"gwi.com/assistant-console/internal/api/apitest"
	"gwi.com/assistant-console/internal/auth"
	"gwi.com/assistant-console/internal/store"
)

type fixture struct {
	backend *apitest.Backend
	cache   *store.SQLiteStore
	client  *api.Client
	state   *auth.State
	resets  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{backend: apitest.NewBackend()}
	srv, base := apitest.NewServer(f.backend)
	t.Cleanup(srv.Close)

	cache, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	f.cache = cache

	baseURL, err := url.Parse(base)
	require.NoError(t, err)
	jar, err := store.NewPersistentJar(cache, baseURL)
	require.NoError(t, err)

	f.client = api.NewClient(base,
		api.WithCookieJar(jar),
		api.WithTokenSource(auth.CachedToken(cache, time.Now)),
	)
	f.state = auth.NewState(f.client, cache, api.NewLocalPictureStore(cache),
		auth.WithCredentialReset(func() error {
			f.resets++
			return jar.Reset()
		}),
	)
	return f
}

func TestCheckSessionSignedOut(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.state.CheckSession(context.Background()))
	assert.False(t, f.state.IsAuthenticated())
	assert.Nil(t, f.state.User())
}

func TestLoginCachesTokenAndRestoresSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.AddUser("ana@example.com", "ana", "secret", "EU")

	require.NoError(t, f.state.Login(ctx, " ana@example.com ", "secret"))
	require.True(t, f.state.IsAuthenticated())
	assert.Equal(t, "ana", f.state.User().Username)

	token, ok, err := f.cache.GetSetting(store.SettingBearerToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, token, f.state.TokenSource()())

	// A fresh holder over the same cache picks the session back up.
	again := auth.NewState(f.client, f.cache, api.NewLocalPictureStore(f.cache))
	assert.True(t, again.CheckSession(ctx))
	assert.Equal(t, "ana@example.com", again.User().Email)
}

func TestLoginFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser("ana@example.com", "ana", "secret", "EU")

	err := f.state.Login(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", err.Error())
	assert.False(t, f.state.IsAuthenticated())

	err = f.state.Login(context.Background(), "   ", "secret")
	assert.True(t, api.IsValidation(err))
	assert.Equal(t, 1, f.backend.Calls("POST /api/auth/login"))
}

func TestRegisterSignsIn(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.state.Register(context.Background(), "bo@example.com", "bo", "pw", "US"))
	assert.Equal(t, "US", f.state.User().Region)
	assert.True(t, f.state.CheckSession(context.Background()))

	err := f.state.Register(context.Background(), "bo@example.com", "", "pw", "US")
	assert.True(t, api.IsValidation(err))
}

func TestCachedPreferencesWinOverServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.backend.AddUser("ana@example.com", "ana", "secret", "EU")
	require.NoError(t, f.cache.SaveThemePreference(u.ID, store.ThemeDark))
	require.NoError(t, f.cache.SaveProfilePicture(u.ID, "data:image/png;base64,AAAA"))

	require.NoError(t, f.state.Login(ctx, "ana@example.com", "secret"))
	user := f.state.User()
	assert.Equal(t, store.ThemeDark, user.ThemePreference)
	assert.Equal(t, "data:image/png;base64,AAAA", user.ProfilePictureURL)
	assert.Equal(t, store.ThemeDark, f.state.Theme())
}

func TestLogoutIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.backend.AddUser("ana@example.com", "ana", "secret", "EU")
	require.NoError(t, f.state.Login(ctx, "ana@example.com", "secret"))
	require.NoError(t, f.state.UpdateThemePreference(store.ThemeDark))

	f.backend.FailNext("POST /api/auth/logout", http.StatusInternalServerError)
	f.state.Logout(ctx)

	assert.False(t, f.state.IsAuthenticated())
	assert.Equal(t, 1, f.resets)
	_, ok, err := f.cache.GetSetting(store.SettingBearerToken)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.state.CheckSession(ctx))

	prefs, err := f.cache.GetPreferences(u.ID)
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.Equal(t, store.ThemeDark, prefs.ThemePreference)
}

func TestThemeFallback(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, store.ThemeLight, f.state.Theme())

	require.NoError(t, f.state.UpdateThemePreference(store.ThemeDark))
	assert.Equal(t, store.ThemeDark, f.state.Theme())

	assert.True(t, api.IsValidation(f.state.UpdateThemePreference("sepia")))
}

func TestUpdateProfilePicture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.state.UpdateProfilePicture(ctx, bytes.NewReader([]byte("x")))
	assert.True(t, api.IsValidation(err))

	f.backend.AddUser("ana@example.com", "ana", "secret", "EU")
	require.NoError(t, f.state.Login(ctx, "ana@example.com", "secret"))

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pic, err := f.state.UpdateProfilePicture(ctx, bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, pic, f.state.User().ProfilePictureURL)

	_, err = f.state.UpdateProfilePicture(ctx, bytes.NewReader([]byte("plain text, not an image")))
	require.Error(t, err)
	assert.Equal(t, pic, f.state.User().ProfilePictureURL)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.AddUser("bo@example.com", "bo", "pw", "US")
	f.backend.AddUser("ana@example.com", "ana", "secret", "EU")
	require.NoError(t, f.state.Login(ctx, "ana@example.com", "secret"))

	require.NoError(t, f.state.UpdateProfile(ctx, api.ProfileUpdate{Region: "APAC"}))
	assert.Equal(t, "APAC", f.state.User().Region)

	err := f.state.UpdateProfile(ctx, api.ProfileUpdate{Username: "bo"})
	require.Error(t, err)
	assert.Equal(t, "Username already taken", err.Error())
	assert.Equal(t, "ana", f.state.User().Username)
}

func TestUserReturnsCopy(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser("ana@example.com", "ana", "secret", "EU")
	require.NoError(t, f.state.Login(context.Background(), "ana@example.com", "secret"))

	u := f.state.User()
	u.Username = "mallory"
	assert.Equal(t, "ana", f.state.User().Username)
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, auth.TokenExpired(sign(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), now))
	assert.True(t, auth.TokenExpired(sign(t, jwt.MapClaims{"exp": now.Add(-time.Second).Unix()}), now))
	assert.False(t, auth.TokenExpired(sign(t, jwt.MapClaims{"sub": "u1"}), now))
	assert.True(t, auth.TokenExpired("not-a-token", now))

	assert.Equal(t, "u1", auth.TokenSubject(sign(t, jwt.MapClaims{"sub": "u1"})))
	assert.Empty(t, auth.TokenSubject("garbage"))
}

func TestExpiredTokenIsNotSent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.SetSetting(store.SettingBearerToken, sign(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})))
	assert.Empty(t, f.state.TokenSource()())
}

func TestCheckSessionDropsTokenOfAnotherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.backend.AddUser("ana@example.com", "ana", "secret", "EU")
	bo := f.backend.AddUser("bo@example.com", "bo", "pw", "US")
	require.NoError(t, f.state.Login(ctx, "ana@example.com", "secret"))

	own, ok, err := f.cache.GetSetting(store.SettingBearerToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ana.ID, auth.TokenSubject(own))
	require.True(t, f.state.CheckSession(ctx))
	_, ok, err = f.cache.GetSetting(store.SettingBearerToken)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.cache.SetSetting(store.SettingBearerToken, f.backend.IssueToken(bo.ID, time.Hour)))
	require.True(t, f.state.CheckSession(ctx))
	assert.Equal(t, "ana", f.state.User().Username)
	_, ok, err = f.cache.GetSetting(store.SettingBearerToken)
	require.NoError(t, err)
	assert.False(t, ok)
}
