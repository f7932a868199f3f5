package store

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Setting keys shared across users of this machine.
const (
	SettingBearerToken = "token"
	SettingTheme       = "theme_preference"
)

// SQLiteStore is the durable local cache: per-user preferences, app-wide
// settings and the backend's cookies.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS preferences (
        user_id TEXT PRIMARY KEY,
        profile_picture_url TEXT NOT NULL DEFAULT '',
        theme_preference TEXT NOT NULL DEFAULT '',
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS settings (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS cookies (
        host TEXT NOT NULL,
        name TEXT NOT NULL,
        value TEXT NOT NULL,
        path TEXT NOT NULL DEFAULT '/',
        expires DATETIME,
        secure BOOLEAN DEFAULT FALSE,
        http_only BOOLEAN DEFAULT FALSE,
        PRIMARY KEY (host, name, path)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Preference methods

// GetPreferences returns nil when nothing is cached for the user.
func (s *SQLiteStore) GetPreferences(userID string) (*Preferences, error) {
	var p Preferences
	var theme string
	err := s.db.QueryRow("SELECT user_id, profile_picture_url, theme_preference, updated_at FROM preferences WHERE user_id = ?", userID).
		Scan(&p.UserID, &p.ProfilePictureURL, &theme, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	p.ThemePreference = Theme(theme)
	if !p.ThemePreference.Valid() {
		p.ThemePreference = ""
	}
	return &p, nil
}

func (s *SQLiteStore) SaveProfilePicture(userID, pictureURL string) error {
	_, err := s.db.Exec(`
        INSERT INTO preferences (user_id, profile_picture_url, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET profile_picture_url = excluded.profile_picture_url, updated_at = excluded.updated_at`,
		userID, pictureURL, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save profile picture: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveThemePreference(userID string, theme Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("invalid theme %q", theme)
	}
	_, err := s.db.Exec(`
        INSERT INTO preferences (user_id, theme_preference, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET theme_preference = excluded.theme_preference, updated_at = excluded.updated_at`,
		userID, string(theme), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save theme preference: %w", err)
	}
	return nil
}

// Setting methods

func (s *SQLiteStore) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetSetting(key, value string) error {
	_, err := s.db.Exec("INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSetting(key string) error {
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// Cookie methods

// SaveCookies upserts cookies for host. Cookies that are already expired,
// or carry a negative MaxAge, are removed instead.
func (s *SQLiteStore) SaveCookies(host string, cookies []*http.Cookie) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cookie transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || (!expires.IsZero() && expires.Before(now)) {
			if _, err := tx.Exec("DELETE FROM cookies WHERE host = ? AND name = ? AND path = ?", host, c.Name, path); err != nil {
				return fmt.Errorf("failed to delete cookie %s: %w", c.Name, err)
			}
			continue
		}
		var exp any
		if !expires.IsZero() {
			exp = expires
		}
		_, err := tx.Exec(`
            INSERT INTO cookies (host, name, value, path, expires, secure, http_only) VALUES (?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(host, name, path) DO UPDATE SET value = excluded.value, expires = excluded.expires,
                secure = excluded.secure, http_only = excluded.http_only`,
			host, c.Name, c.Value, path, exp, c.Secure, c.HttpOnly)
		if err != nil {
			return fmt.Errorf("failed to save cookie %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// LoadCookies returns the unexpired cookies stored for host.
func (s *SQLiteStore) LoadCookies(host string) ([]*http.Cookie, error) {
	rows, err := s.db.Query("SELECT name, value, path, expires, secure, http_only FROM cookies WHERE host = ?", host)
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var cookies []*http.Cookie
	for rows.Next() {
		var c http.Cookie
		var expires sql.NullTime
		if err := rows.Scan(&c.Name, &c.Value, &c.Path, &expires, &c.Secure, &c.HttpOnly); err != nil {
			return nil, fmt.Errorf("failed to scan cookie row: %w", err)
		}
		if expires.Valid {
			if expires.Time.Before(now) {
				continue
			}
			c.Expires = expires.Time
		}
		cookies = append(cookies, &c)
	}
	return cookies, rows.Err()
}

func (s *SQLiteStore) ClearCookies(host string) error {
	if _, err := s.db.Exec("DELETE FROM cookies WHERE host = ?", host); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}
