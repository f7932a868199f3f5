package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gwi.com/assistant-console/internal/api"
	"gwi.com/assistant-console/internal/observability"
	"gwi.com/assistant-console/internal/store"
)

// Remote is the subset of the backend used for identity.
type Remote interface {
	Me(ctx context.Context) (*store.User, error)
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
	Register(ctx context.Context, req api.RegisterRequest) (*store.User, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*store.User, error)
}

// Cache is the durable local storage the state reads and writes.
type Cache interface {
	GetPreferences(userID string) (*store.Preferences, error)
	SaveThemePreference(userID string, theme store.Theme) error
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

// State is the application-scoped holder of the signed-in user. Create it
// once at start-up, call CheckSession before rendering protected views, and
// Logout to tear it down.
type State struct {
	mu       sync.RWMutex
	user     *store.User
	remote   Remote
	cache    Cache
	uploader api.PictureUploader
	reset    func() error
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*State)

// WithCredentialReset registers a hook run on logout to drop local
// credentials (e.g. cookies) even when the backend can't be reached.
func WithCredentialReset(fn func() error) Option {
	return func(s *State) { s.reset = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

func NewState(remote Remote, cache Cache, uploader api.PictureUploader, opts ...Option) *State {
	s := &State{
		remote:   remote,
		cache:    cache,
		uploader: uploader,
		now:      time.Now,
		log:      observability.WithFields("component", "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// User returns a copy of the signed-in user, or nil.
func (s *State) User() *store.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// UserID returns the signed-in user's id, or "".
func (s *State) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Theme resolves the active theme: the user's preference, then the
// machine-wide default, then light.
func (s *State) Theme() store.Theme {
	if u := s.User(); u != nil && u.ThemePreference.Valid() {
		return u.ThemePreference
	}
	if v, ok, err := s.cache.GetSetting(store.SettingTheme); err == nil && ok && store.Theme(v).Valid() {
		return store.Theme(v)
	}
	return store.ThemeLight
}

// TokenSource yields the cached bearer token while it is unexpired.
func (s *State) TokenSource() api.TokenSource {
	return CachedToken(s.cache, s.now)
}

// CachedToken reads the bearer token straight from cache. It exists so the
// API client can be built before the State that wraps it.
func CachedToken(cache Cache, now func() time.Time) api.TokenSource {
	return func() string {
		token, ok, err := cache.GetSetting(store.SettingBearerToken)
		if err != nil || !ok || token == "" {
			return ""
		}
		if TokenExpired(token, now()) {
			return ""
		}
		return token
	}
}

// CheckSession asks the backend who is signed in. Any failure leaves the
// state signed out.
func (s *State) CheckSession(ctx context.Context) bool {
	u, err := s.remote.Me(ctx)
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			s.log.Error("Error checking auth status", "error", err)
		}
		s.setUser(nil)
		return false
	}
	s.dropForeignToken(u.ID)
	s.setUser(s.withCached(u))
	return true
}

// dropForeignToken forgets a cached bearer token issued to someone other
// than userID, so it is never sent on that user's behalf.
func (s *State) dropForeignToken(userID string) {
	token, ok, err := s.cache.GetSetting(store.SettingBearerToken)
	if err != nil || !ok || token == "" {
		return
	}
	if sub := TokenSubject(token); sub == "" || sub == userID {
		return
	}
	s.log.Warn("Dropping cached token issued to another user", "user_id", userID)
	if err := s.cache.DeleteSetting(store.SettingBearerToken); err != nil {
		s.log.Warn("Failed to delete cached token", "error", err)
	}
}

func (s *State) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return &api.ValidationError{Field: "credentials", Message: "Email and password are required"}
	}
	res, err := s.remote.Login(ctx, email, password)
	if err != nil {
		s.log.Error("Login error", "error", err)
		s.setUser(nil)
		return err
	}
	if res.AccessToken != "" {
		if err := s.cache.SetSetting(store.SettingBearerToken, res.AccessToken); err != nil {
			s.log.Warn("Failed to cache access token", "error", err)
		}
	}
	s.setUser(s.withCached(res.User))
	return nil
}

func (s *State) Register(ctx context.Context, email, username, password, region string) error {
	req := api.RegisterRequest{
		Email:    strings.TrimSpace(email),
		Username: strings.TrimSpace(username),
		Password: password,
		Region:   strings.TrimSpace(region),
	}
	if req.Email == "" || req.Username == "" || req.Password == "" || req.Region == "" {
		return &api.ValidationError{Field: "registration", Message: "Email, username, password and region are required"}
	}
	u, err := s.remote.Register(ctx, req)
	if err != nil {
		s.log.Error("Registration error", "error", err)
		s.setUser(nil)
		return err
	}
	s.setUser(s.withCached(u))
	return nil
}

// Logout is best effort: local state is cleared whatever the backend says.
// Cached pictures and themes are kept for the next sign-in.
func (s *State) Logout(ctx context.Context) {
	if err := s.remote.Logout(ctx); err != nil {
		s.log.Error("Logout error", "error", err)
	}
	if err := s.cache.DeleteSetting(store.SettingBearerToken); err != nil {
		s.log.Warn("Failed to drop cached access token", "error", err)
	}
	if s.reset != nil {
		if err := s.reset(); err != nil {
			s.log.Warn("Failed to reset credentials", "error", err)
		}
	}
	s.setUser(nil)
}

// UpdateProfilePicture uploads file for the signed-in user. On failure the
// previous picture is kept.
func (s *State) UpdateProfilePicture(ctx context.Context, file io.Reader) (string, error) {
	id := s.UserID()
	if id == "" {
		return "", &api.ValidationError{Field: "user", Message: "Not authenticated"}
	}
	pictureURL, err := s.uploader.UploadProfilePicture(ctx, file, id)
	if err != nil {
		s.log.Error("Profile picture update error", "error", err)
		return "", err
	}
	s.mu.Lock()
	if s.user != nil && s.user.ID == id {
		s.user.ProfilePictureURL = pictureURL
	}
	s.mu.Unlock()
	return pictureURL, nil
}

// UpdateThemePreference is local only. Without a signed-in user it sets the
// machine-wide default.
func (s *State) UpdateThemePreference(theme store.Theme) error {
	if !theme.Valid() {
		return &api.ValidationError{Field: "theme", Message: "Theme must be light or dark"}
	}
	id := s.UserID()
	if id == "" {
		return s.cache.SetSetting(store.SettingTheme, string(theme))
	}
	if err := s.cache.SaveThemePreference(id, theme); err != nil {
		return err
	}
	if err := s.cache.SetSetting(store.SettingTheme, string(theme)); err != nil {
		s.log.Warn("Failed to save default theme", "error", err)
	}
	s.mu.Lock()
	if s.user != nil && s.user.ID == id {
		s.user.ThemePreference = theme
	}
	s.mu.Unlock()
	return nil
}

// UpdateProfile sends a partial profile update and merges the result.
func (s *State) UpdateProfile(ctx context.Context, update api.ProfileUpdate) error {
	if !s.IsAuthenticated() {
		return &api.ValidationError{Field: "user", Message: "Not authenticated"}
	}
	u, err := s.remote.UpdateProfile(ctx, update)
	if err != nil {
		s.log.Error("Profile update error", "error", err)
		return err
	}
	s.setUser(s.withCached(u))
	return nil
}

// withCached overlays locally cached picture and theme on u. Cached values
// win over whatever the backend sent.
func (s *State) withCached(u *store.User) *store.User {
	if u == nil || u.ID == "" {
		return u
	}
	prefs, err := s.cache.GetPreferences(u.ID)
	if err != nil {
		s.log.Warn("Failed to read cached preferences", "user_id", u.ID, "error", err)
		return u
	}
	if prefs == nil {
		return u
	}
	merged := *u
	if prefs.ProfilePictureURL != "" {
		merged.ProfilePictureURL = prefs.ProfilePictureURL
	}
	if prefs.ThemePreference.Valid() {
		merged.ThemePreference = prefs.ThemePreference
	}
	return &merged
}

func (s *State) setUser(u *store.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}
