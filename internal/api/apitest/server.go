// Package apitest is an in-memory stand-in for the assistant backend's REST
// surface, for tests of the client and the chat managers.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	CookieName = "access_token"
	// The backend answers timestamps without a zone.
	timeLayout = "2006-01-02T15:04:05.000000"
)

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Region       string `json:"region"`
	PasswordHash string `json:"-"`
}

type Session struct {
	ID          string
	Title       string
	UserID      string
	LastMessage string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Source struct {
	PageNumber int    `json:"page_number"`
	Section    string `json:"section"`
	Content    string `json:"content"`
}

type Metadata struct {
	Confidence   float64  `json:"confidence"`
	ResponseType string   `json:"response_type"`
	Sources      []Source `json:"sources"`
}

type Message struct {
	ID            string
	Content       string
	Sender        string
	Timestamp     time.Time
	ChatSessionID string
}

// Responder produces the assistant's answer to a user message.
type Responder func(query string) (string, Metadata)

// EchoResponder answers "Echo: <query>" with one fixed source.
func EchoResponder(query string) (string, Metadata) {
	return "Echo: " + query, Metadata{
		Confidence:   0.9,
		ResponseType: "answer",
		Sources:      []Source{{PageNumber: 3, Section: "Overview", Content: "Reference passage"}},
	}
}

// Backend holds users, sessions and messages in memory.
type Backend struct {
	mu       sync.Mutex
	secret   []byte
	users    map[string]*User // by id
	sessions map[string]*Session
	messages []*Message
	calls    map[string]int
	failures map[string]int

	// Responder answers user messages; nil means no embedded reply, like the
	// older backend contract.
	Responder Responder
	// MessageGate, when set, holds every POST /messages until it receives.
	MessageGate chan struct{}
	Now         func() time.Time
}

func NewBackend() *Backend {
	return &Backend{
		secret:    []byte(uuid.NewString()),
		users:     make(map[string]*User),
		sessions:  make(map[string]*Session),
		calls:     make(map[string]int),
		failures:  make(map[string]int),
		Responder: EchoResponder,
		Now:       time.Now,
	}
}

// NewServer starts an httptest server serving b under /api and returns it
// together with the base URL the client should use.
func NewServer(b *Backend) (*httptest.Server, string) {
	srv := httptest.NewServer(b.Router())
	return srv, srv.URL + "/api"
}

func (b *Backend) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(b.countCalls)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", b.RegisterHandler)
		r.Post("/auth/login", b.LoginHandler)
		r.Post("/auth/logout", b.LogoutHandler)

		r.Group(func(r chi.Router) {
			r.Use(b.AuthMiddleware)

			r.Get("/auth/me", b.MeHandler)
			r.Patch("/users/profile", b.UpdateProfileHandler)

			r.Get("/chat-sessions", b.ListSessionsHandler)
			r.Post("/chat-sessions", b.CreateSessionHandler)
			r.Patch("/chat-sessions/{sessionID}", b.UpdateSessionHandler)
			r.Delete("/chat-sessions/{sessionID}", b.DeleteSessionHandler)

			r.Get("/messages", b.ListMessagesHandler)
			r.Post("/messages", b.CreateMessageHandler)

			r.Post("/rag-query", b.RAGQueryHandler)
		})
	})
	return r
}

// Calls reports how many requests hit "METHOD /path", e.g.
// "PATCH /api/chat-sessions/42". Query strings are not part of the key.
func (b *Backend) Calls(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

// FailNext makes the next request to key answer with status.
func (b *Backend) FailNext(key string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[key] = status
}

// AddUser registers a user directly and returns it.
func (b *Backend) AddUser(email, username, password, region string) *User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	u := &User{ID: uuid.NewString(), Email: email, Username: username, Region: region, PasswordHash: string(hash)}
	b.mu.Lock()
	b.users[u.ID] = u
	b.mu.Unlock()
	return u
}

// AddSession seeds a session owned by userID.
func (b *Backend) AddSession(userID, id, title string, updatedAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[id] = &Session{ID: id, Title: title, UserID: userID, CreatedAt: updatedAt, UpdatedAt: updatedAt}
}

func (b *Backend) Session(id string) (Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (b *Backend) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Messages returns the stored messages of a session in timestamp order.
func (b *Backend) Messages(sessionID string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messagesLocked(sessionID)
}

func (b *Backend) messagesLocked(sessionID string) []Message {
	var out []Message
	for _, m := range b.messages {
		if m.ChatSessionID == sessionID {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// IssueToken signs an access token for userID.
func (b *Backend) IssueToken(userID string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": b.Now().Unix(),
		"exp": b.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return token
}

func (b *Backend) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("invalid token")
	}
	return sub, nil
}

func (b *Backend) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[callKey(r)]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func callKey(r *http.Request) string {
	return r.Method + " " + strings.TrimRight(r.URL.Path, "/")
}

// injectedFailure consumes a pending FailNext for the current route.
func (b *Backend) injectedFailure(r *http.Request) int {
	key := callKey(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	status, ok := b.failures[key]
	if !ok {
		return 0
	}
	delete(b.failures, key)
	return status
}

type ctxKey string

const userKey ctxKey = "user"

func (b *Backend) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""
		if c, err := r.Cookie(CookieName); err == nil {
			tokenString = c.Value
		} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tokenString = strings.TrimPrefix(h, "Bearer ")
		}
		if tokenString == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		userID, err := b.validateToken(tokenString)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		b.mu.Lock()
		user, ok := b.users[userID]
		b.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}
		if status := b.injectedFailure(r); status != 0 {
			writeDetail(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func currentUser(r *http.Request) *User {
	return r.Context().Value(userKey).(*User)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (b *Backend) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   24 * 60 * 60,
		SameSite: http.SameSiteLaxMode,
	})
}

func userJSON(u *User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"username":  u.Username,
		"region":    u.Region,
		"is_active": true,
	}
}

func sessionJSON(s *Session) map[string]any {
	return map[string]any{
		"id":          s.ID,
		"title":       s.Title,
		"userId":      s.UserID,
		"lastMessage": s.LastMessage,
		"createdAt":   s.CreatedAt.UTC().Format(timeLayout),
		"updatedAt":   s.UpdatedAt.UTC().Format(timeLayout),
	}
}

func messageJSON(m *Message) map[string]any {
	return map[string]any{
		"id":            m.ID,
		"content":       m.Content,
		"sender":        m.Sender,
		"timestamp":     m.Timestamp.UTC().Format(timeLayout),
		"chatSessionId": m.ChatSessionID,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Region   string `json:"region"`
}

func (b *Backend) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email, username and password are required")
		return
	}
	b.mu.Lock()
	for _, u := range b.users {
		if strings.EqualFold(u.Email, req.Email) {
			b.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
		if u.Username == req.Username {
			b.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Username already taken")
			return
		}
	}
	b.mu.Unlock()

	u := b.AddUser(req.Email, req.Username, req.Password, req.Region)
	b.setAuthCookie(w, b.IssueToken(u.ID, 24*time.Hour))
	writeJSON(w, http.StatusOK, userJSON(u))
}

func (b *Backend) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form body")
		return
	}
	email, password := r.PostForm.Get("username"), r.PostForm.Get("password")

	var user *User
	b.mu.Lock()
	for _, u := range b.users {
		if strings.EqualFold(u.Email, email) {
			user = u
			break
		}
	}
	b.mu.Unlock()

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	token := b.IssueToken(user.ID, 24*time.Hour)
	b.setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         userJSON(user),
	})
}

func (b *Backend) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if status := b.injectedFailure(r); status != 0 {
		writeDetail(w, status, "injected failure")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (b *Backend) MeHandler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	resp := userJSON(currentUser(r))
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	user := currentUser(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if v := req["username"]; v != "" {
		for _, u := range b.users {
			if u.ID != user.ID && u.Username == v {
				writeDetail(w, http.StatusBadRequest, "Username already taken")
				return
			}
		}
		user.Username = v
	}
	if v := req["email"]; v != "" {
		user.Email = v
	}
	if v := req["region"]; v != "" {
		user.Region = v
	}
	writeJSON(w, http.StatusOK, userJSON(user))
}

func (b *Backend) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	b.mu.Lock()
	var sessions []*Session
	for _, s := range b.sessions {
		if s.UserID == user.ID {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt) })
	out := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionJSON(s))
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

type sessionDraft struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	UserID      string `json:"userId"`
	LastMessage string `json:"lastMessage"`
}

func (b *Backend) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionDraft
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	user := currentUser(r)
	if req.UserID != user.ID {
		writeDetail(w, http.StatusForbidden, "Cannot create chat session for another user")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := b.Now()
	s := &Session{ID: req.ID, Title: req.Title, UserID: user.ID, LastMessage: req.LastMessage, CreatedAt: now, UpdatedAt: now}
	b.mu.Lock()
	if _, exists := b.sessions[s.ID]; exists {
		b.mu.Unlock()
		writeDetail(w, http.StatusConflict, "Chat session already exists")
		return
	}
	b.sessions[s.ID] = s
	resp := sessionJSON(s)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// ownedSession must be called with b.mu held.
func (b *Backend) ownedSession(id string, user *User) *Session {
	s, ok := b.sessions[id]
	if !ok || s.UserID != user.ID {
		return nil
	}
	return s
}

func (b *Backend) UpdateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.ownedSession(chi.URLParam(r, "sessionID"), currentUser(r))
	if s == nil {
		writeDetail(w, http.StatusNotFound, "Chat session not found")
		return
	}
	s.Title = req["title"]
	s.UpdatedAt = b.Now()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := chi.URLParam(r, "sessionID")
	if b.ownedSession(id, currentUser(r)) == nil {
		writeDetail(w, http.StatusNotFound, "Chat session not found")
		return
	}
	delete(b.sessions, id)
	kept := b.messages[:0]
	for _, m := range b.messages {
		if m.ChatSessionID != id {
			kept = append(kept, m)
		}
	}
	b.messages = kept
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("chat_session_id")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ownedSession(id, currentUser(r)) == nil {
		writeDetail(w, http.StatusNotFound, "Chat session not found")
		return
	}
	msgs := b.messagesLocked(id)
	out := make([]map[string]any, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageJSON(&msgs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type messageRequest struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Sender        string    `json:"sender"`
	Timestamp     time.Time `json:"timestamp"`
	ChatSessionID string    `json:"chatSessionId"`
}

func (b *Backend) CreateMessageHandler(w http.ResponseWriter, r *http.Request) {
	if b.MessageGate != nil {
		<-b.MessageGate
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	user := currentUser(r)

	b.mu.Lock()
	s := b.ownedSession(req.ChatSessionID, user)
	if s == nil {
		b.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Chat session not found")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	msg := &Message{ID: req.ID, Content: req.Content, Sender: req.Sender, Timestamp: req.Timestamp, ChatSessionID: s.ID}
	b.messages = append(b.messages, msg)
	s.LastMessage = req.Content
	s.UpdatedAt = b.Now()
	resp := messageJSON(msg)
	responder := b.Responder

	if req.Sender == "user" && responder != nil {
		content, meta := responder(req.Content)
		reply := &Message{ID: uuid.NewString(), Content: content, Sender: "assistant", Timestamp: b.Now(), ChatSessionID: s.ID}
		if !reply.Timestamp.After(msg.Timestamp) {
			reply.Timestamp = msg.Timestamp.Add(time.Millisecond)
		}
		b.messages = append(b.messages, reply)
		s.LastMessage = content
		s.UpdatedAt = b.Now()
		ai := messageJSON(reply)
		ai["metadata"] = meta
		resp["aiResponse"] = ai
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

type ragRequest struct {
	Query         string `json:"query"`
	ChatSessionID string `json:"chatSessionId"`
}

func (b *Backend) RAGQueryHandler(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.ChatSessionID != "" {
		b.mu.Lock()
		s := b.ownedSession(req.ChatSessionID, currentUser(r))
		b.mu.Unlock()
		if s == nil {
			writeDetail(w, http.StatusNotFound, "Chat session not found")
			return
		}
	}
	responder := b.Responder
	if responder == nil {
		responder = EchoResponder
	}
	content, meta := responder(req.Query)
	writeJSON(w, http.StatusOK, map[string]any{
		"response": content,
		"metadata": map[string]any{
			"originalQuery": req.Query,
			"refinedQuery":  strings.ToLower(strings.TrimSpace(req.Query)),
			"confidence":    meta.Confidence,
			"responseType":  meta.ResponseType,
			"sources":       meta.Sources,
		},
	})
}
