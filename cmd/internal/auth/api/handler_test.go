package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"vidra/cmd/identity"
	"vidra/cmd/internal/auth/session"
	"vidra/cmd/internal/media"
)

// ---- fakes ----

// fakeIdentityStore is an in-memory identity.Store.
type fakeIdentityStore struct {
	mu       sync.Mutex
	accounts map[string]*identity.AccountAuth
	nextID   int

	channels map[string]identity.ChannelProfile
	history  map[string][]identity.WatchEntry
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{
		accounts: make(map[string]*identity.AccountAuth),
		channels: make(map[string]identity.ChannelProfile),
		history:  make(map[string][]identity.WatchEntry),
	}
}

func (s *fakeIdentityStore) CreateAccount(_ context.Context, in identity.CreateAccountInput) (identity.Account, error) {
	const op = "identity.CreateAccount"

	s.mu.Lock()
	defer s.mu.Unlock()

	un := identity.NormalizeUsername(in.Username)
	en := identity.NormalizeEmail(in.Email)
	for _, a := range s.accounts {
		if a.Account.UsernameNorm == un {
			return identity.Account{}, identity.ConflictError{Op: op, Field: "username"}
		}
		if a.Account.EmailNorm == en {
			return identity.Account{}, identity.ConflictError{Op: op, Field: "email"}
		}
	}

	hash, err := identity.HashPassword(in.Password)
	if err != nil {
		return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: err.Error()}
	}

	s.nextID++
	acct := identity.Account{
		ID:           fmt.Sprintf("01FAKEACCOUNT%013d", s.nextID),
		Username:     in.Username,
		UsernameNorm: un,
		Email:        in.Email,
		EmailNorm:    en,
		DisplayName:  in.DisplayName,
		AvatarURL:    in.AvatarURL,
		AvatarKey:    in.AvatarKey,
		CoverURL:     in.CoverURL,
		CoverKey:     in.CoverKey,
		CreatedAt:    in.Now,
		UpdatedAt:    in.Now,
	}
	s.accounts[acct.ID] = &identity.AccountAuth{Account: acct, PasswordHash: hash}
	return acct, nil
}

func (s *fakeIdentityStore) GetByID(_ context.Context, id string) (identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return identity.Account{}, identity.NotFoundError{Op: "identity.GetByID", Resource: "user"}
	}
	return a.Account, nil
}

func (s *fakeIdentityStore) GetAuthByLogin(_ context.Context, key string) (identity.AccountAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	norm := identity.NormalizeUsername(key)
	for _, a := range s.accounts {
		if a.Account.UsernameNorm == norm || a.Account.EmailNorm == norm {
			return *a, nil
		}
	}
	return identity.AccountAuth{}, identity.NotFoundError{Op: "identity.GetAuthByLogin", Resource: "user"}
}

func (s *fakeIdentityStore) GetAuthByID(_ context.Context, id string) (identity.AccountAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return identity.AccountAuth{}, identity.NotFoundError{Op: "identity.GetAuthByID", Resource: "user"}
	}
	return *a, nil
}

func (s *fakeIdentityStore) UpdateProfile(_ context.Context, id string, in identity.UpdateProfileInput) (identity.Account, error) {
	const op = "identity.UpdateProfile"

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return identity.Account{}, identity.NotFoundError{Op: op, Resource: "user"}
	}
	if in.DisplayName == nil && in.Email == nil {
		return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "nothing to update"}
	}
	if in.Email != nil {
		en := identity.NormalizeEmail(*in.Email)
		for oid, other := range s.accounts {
			if oid != id && other.Account.EmailNorm == en {
				return identity.Account{}, identity.ConflictError{Op: op, Field: "email"}
			}
		}
		a.Account.Email = *in.Email
		a.Account.EmailNorm = en
	}
	if in.DisplayName != nil {
		a.Account.DisplayName = *in.DisplayName
	}
	a.Account.UpdatedAt = in.Now
	return a.Account, nil
}

func (s *fakeIdentityStore) UpdateImage(_ context.Context, id string, kind identity.ImageKind, url, key string, now time.Time) (identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return identity.Account{}, identity.NotFoundError{Op: "identity.UpdateImage", Resource: "user"}
	}
	switch kind {
	case identity.ImageAvatar:
		a.Account.AvatarURL, a.Account.AvatarKey = url, key
	case identity.ImageCover:
		a.Account.CoverURL, a.Account.CoverKey = url, key
	}
	a.Account.UpdatedAt = now
	return a.Account, nil
}

func (s *fakeIdentityStore) SetPasswordHash(_ context.Context, id string, hash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return identity.NotFoundError{Op: "identity.SetPasswordHash", Resource: "user"}
	}
	a.PasswordHash = hash
	a.Account.UpdatedAt = now
	return nil
}

func (s *fakeIdentityStore) ChannelProfile(_ context.Context, username string, _ string) (identity.ChannelProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.channels[identity.NormalizeUsername(username)]
	if !ok {
		return identity.ChannelProfile{}, identity.NotFoundError{Op: "identity.ChannelProfile", Resource: "channel"}
	}
	return p, nil
}

func (s *fakeIdentityStore) WatchHistory(_ context.Context, accountID string) ([]identity.WatchEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[accountID], nil
}

// fakeSessionStore mirrors the Postgres CAS semantics against the fake accounts.
type fakeSessionStore struct {
	ids *fakeIdentityStore

	mu     sync.Mutex
	hashes map[string]string
}

func newFakeSessionStore(ids *fakeIdentityStore) *fakeSessionStore {
	return &fakeSessionStore{ids: ids, hashes: make(map[string]string)}
}

func (s *fakeSessionStore) SetRefreshHash(_ context.Context, _ time.Time, accountID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[accountID] = hash
	return nil
}

func (s *fakeSessionStore) SwapRefreshHash(_ context.Context, _ time.Time, accountID, oldHash, newHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[accountID] != oldHash {
		return false, nil
	}
	s.hashes[accountID] = newHash
	return true, nil
}

func (s *fakeSessionStore) ClearRefreshHash(_ context.Context, _ time.Time, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, accountID)
	return nil
}

func (s *fakeSessionStore) HasAccount(ctx context.Context, accountID string) (bool, error) {
	_, err := s.ids.GetByID(ctx, accountID)
	if err != nil {
		if identity.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// fakeMedia records uploads and deletions.
type fakeMedia struct {
	mu      sync.Mutex
	uploads int
	deleted []string
}

func (m *fakeMedia) Upload(_ context.Context, r io.Reader, _ string, _ int64) (media.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _ = io.Copy(io.Discard, r)
	m.uploads++
	key := fmt.Sprintf("images/test/%d", m.uploads)
	return media.Asset{URL: "https://media.example.com/" + key, Key: key}, nil
}

func (m *fakeMedia) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *fakeMedia) deletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// ---- harness ----

type testEnv struct {
	mux   *http.ServeMux
	ids   *fakeIdentityStore
	media *fakeMedia
	sess  *session.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ids := newFakeIdentityStore()
	sessStore := newFakeSessionStore(ids)

	sessCfg := session.DefaultConfig()
	sessCfg.AccessSecret = strings.Repeat("a", 32)
	sessCfg.RefreshSecret = strings.Repeat("r", 32)

	tokens, err := session.NewHS256Manager(sessCfg)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	sess := session.NewService(sessCfg, sessStore, tokens, nil)

	m := &fakeMedia{}

	cfg := LoadConfigFromEnv()
	cfg.CookieSecure = true

	h, err := NewHandler(nil, cfg, ids, sess, m)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{mux: mux, ids: ids, media: m, sess: sess}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	if env.Status != rec.Code {
		t.Fatalf("envelope status %d != http status %d", env.Status, rec.Code)
	}
	return env
}

func multipartRegisterBody(t *testing.T, fields map[string]string, withAvatar, withCover bool) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	writeImagePart := func(field, name string) {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
		hdr.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte("fake-png-bytes")); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if withAvatar {
		writeImagePart("avatar", "avatar.png")
	}
	if withCover {
		writeImagePart("cover", "cover.png")
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func registerTestUser(t *testing.T, e *testEnv, username, email, password string) {
	t.Helper()

	body, ct := multipartRegisterBody(t, map[string]string{
		"username":    username,
		"displayName": username,
		"email":       email,
		"password":    password,
	}, true, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", ct)
	rec := e.do(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %q: status %d body %s", username, rec.Code, rec.Body.String())
	}
}

func loginTestUser(t *testing.T, e *testEnv, username, password string) (accessToken, refreshToken string, cookies []*http.Cookie) {
	t.Helper()

	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %q: status %d body %s", username, rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var resp loginResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	return resp.AccessToken, resp.RefreshToken, rec.Result().Cookies()
}

// ---- tests ----

func TestRegister_Success(t *testing.T) {
	e := newTestEnv(t)

	body, ct := multipartRegisterBody(t, map[string]string{
		"username":    "navid",
		"displayName": "Navid",
		"email":       "navid@example.com",
		"password":    "correct horse battery",
	}, true, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", ct)
	rec := e.do(req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "user registered successfully" {
		t.Fatalf("message = %q", env.Message)
	}

	raw := string(env.Data)
	if strings.Contains(raw, "password") || strings.Contains(raw, "refresh") {
		t.Fatalf("response leaks credentials: %s", raw)
	}

	var acct accountResponse
	if err := json.Unmarshal(env.Data, &acct); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if acct.Username != "navid" || acct.AvatarURL == "" || acct.CoverURL == "" {
		t.Fatalf("unexpected account payload: %+v", acct)
	}
}

func TestRegister_ValidationOrder(t *testing.T) {
	e := newTestEnv(t)

	cases := []struct {
		name    string
		fields  map[string]string
		avatar  bool
		status  int
		message string
	}{
		{
			name:    "missing username",
			fields:  map[string]string{"displayName": "X", "email": "x@example.com", "password": "long-enough-pass"},
			avatar:  true,
			status:  http.StatusBadRequest,
			message: "username is required",
		},
		{
			name:    "bad email",
			fields:  map[string]string{"username": "x", "displayName": "X", "email": "not-an-email", "password": "long-enough-pass"},
			avatar:  true,
			status:  http.StatusBadRequest,
			message: "email is invalid",
		},
		{
			name:    "missing avatar",
			fields:  map[string]string{"username": "x", "displayName": "X", "email": "x@example.com", "password": "long-enough-pass"},
			avatar:  false,
			status:  http.StatusBadRequest,
			message: "avatar file is required",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body, ct := multipartRegisterBody(t, c.fields, c.avatar, false)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
			req.Header.Set("Content-Type", ct)
			rec := e.do(req)

			if rec.Code != c.status {
				t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec); env.Message != c.message {
				t.Fatalf("message = %q, want %q", env.Message, c.message)
			}
		})
	}
}

func TestRegister_DuplicateConflict(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")

	body, ct := multipartRegisterBody(t, map[string]string{
		"username":    "NAVID",
		"displayName": "Other",
		"email":       "other@example.com",
		"password":    "long-enough-pass",
	}, true, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", ct)
	rec := e.do(req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.Message != "user with email or username already exists" {
		t.Fatalf("message = %q", env.Message)
	}

	// The orphaned upload from the failed attempt must be deleted.
	if len(e.media.deletedKeys()) == 0 {
		t.Fatalf("orphaned upload was not cleaned up")
	}
}

func TestLogin_SetsCookiesAndReturnsPair(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")

	access, refresh, cookies := loginTestUser(t, e, "navid", "long-enough-pass")
	if access == "" || refresh == "" {
		t.Fatalf("empty tokens")
	}

	var gotAccess, gotRefresh bool
	for _, c := range cookies {
		switch c.Name {
		case "access_token":
			gotAccess = true
		case "refresh_token":
			gotRefresh = true
		default:
			continue
		}
		if !c.HttpOnly || !c.Secure {
			t.Fatalf("cookie %s must be httpOnly+secure", c.Name)
		}
	}
	if !gotAccess || !gotRefresh {
		t.Fatalf("missing auth cookies: %+v", cookies)
	}
}

func TestLogin_ByEmail(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")

	body, _ := json.Marshal(loginRequest{Email: "NAVID@example.com", Password: "long-enough-pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestLogin_Failures(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")

	cases := []struct {
		name    string
		req     loginRequest
		status  int
		message string
	}{
		{
			name:    "unknown user",
			req:     loginRequest{Username: "ghost", Password: "whatever-pass"},
			status:  http.StatusNotFound,
			message: "user does not exist",
		},
		{
			name:    "wrong password",
			req:     loginRequest{Username: "navid", Password: "wrong-password"},
			status:  http.StatusUnauthorized,
			message: "invalid user credentials",
		},
		{
			name:    "missing identifier",
			req:     loginRequest{Password: "whatever-pass"},
			status:  http.StatusBadRequest,
			message: "username or email is required",
		},
		{
			name:    "missing password",
			req:     loginRequest{Username: "navid"},
			status:  http.StatusBadRequest,
			message: "password is required",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body, _ := json.Marshal(c.req)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
			rec := e.do(req)
			if rec.Code != c.status {
				t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec); env.Message != c.message {
				t.Fatalf("message = %q, want %q", env.Message, c.message)
			}
		})
	}
}

func TestRefresh_FromCookieAndBody(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")
	_, refresh, _ := loginTestUser(t, e, "navid", "long-enough-pass")

	// From body.
	body, _ := json.Marshal(refreshRequest{RefreshToken: refresh})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(body))
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("body refresh: status = %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var resp refreshResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RefreshToken == "" || resp.RefreshToken == refresh {
		t.Fatalf("rotation did not mint a new token")
	}

	// From cookie, with the rotated token.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: resp.RefreshToken})
	rec = e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie refresh: status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRefresh_ReplayRejected(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")
	_, refresh, _ := loginTestUser(t, e, "navid", "long-enough-pass")

	body, _ := json.Marshal(refreshRequest{RefreshToken: refresh})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(body))
	if rec := e.do(req); rec.Code != http.StatusOK {
		t.Fatalf("first refresh: %d", rec.Code)
	}

	// Same token again.
	body, _ = json.Marshal(refreshRequest{RefreshToken: refresh})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(body))
	rec := e.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay: status = %d body %s", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.Message != "refresh token is expired or used" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestRefresh_MissingAndGarbage(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", nil)
	rec := e.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "unauthorized request" {
		t.Fatalf("message = %q", env.Message)
	}

	body, _ := json.Marshal(refreshRequest{RefreshToken: "garbage"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(body))
	rec = e.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "invalid refresh token" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestLogout_RevokesAndClearsCookies(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")
	access, refresh, _ := loginTestUser(t, e, "navid", "long-enough-pass")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status = %d body %s", rec.Code, rec.Body.String())
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == "access_token" || c.Name == "refresh_token" {
			if c.MaxAge >= 0 && c.Value != "" {
				t.Fatalf("cookie %s not cleared", c.Name)
			}
		}
	}

	// The refresh token from before logout is dead.
	body, _ := json.Marshal(refreshRequest{RefreshToken: refresh})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(body))
	rec = e.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status = %d", rec.Code)
	}

	// Logout again is fine (idempotent revocation).
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	if rec := e.do(req); rec.Code != http.StatusOK {
		t.Fatalf("second logout: status = %d", rec.Code)
	}
}

func TestChangePassword_Flow(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "old-password-123")
	access, _, _ := loginTestUser(t, e, "navid", "old-password-123")

	// Wrong old password.
	body, _ := json.Marshal(changePasswordRequest{OldPassword: "nope-nope-nope", NewPassword: "new-password-456"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access)
	rec := e.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password: status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "invalid old password" {
		t.Fatalf("message = %q", env.Message)
	}

	// Correct change.
	body, _ = json.Marshal(changePasswordRequest{OldPassword: "old-password-123", NewPassword: "new-password-456"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access)
	rec = e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("change: status = %d body %s", rec.Code, rec.Body.String())
	}

	// Old password no longer logs in; new one does.
	lbody, _ := json.Marshal(loginRequest{Username: "navid", Password: "old-password-123"})
	lreq := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(lbody))
	if rec := e.do(lreq); rec.Code != http.StatusUnauthorized {
		t.Fatalf("old password still accepted: %d", rec.Code)
	}
	loginTestUser(t, e, "navid", "new-password-456")

	// The pre-change refresh token was displaced by the re-login above, but
	// a password change alone does not clear the stored session: verify by
	// changing again without re-login and rotating the fresh token.
	access2, refresh2, _ := loginTestUser(t, e, "navid", "new-password-456")
	body, _ = json.Marshal(changePasswordRequest{OldPassword: "new-password-456", NewPassword: "third-password-789"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access2)
	if rec := e.do(req); rec.Code != http.StatusOK {
		t.Fatalf("second change: status = %d", rec.Code)
	}

	rbody, _ := json.Marshal(refreshRequest{RefreshToken: refresh2})
	rreq := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(rbody))
	if rec := e.do(rreq); rec.Code != http.StatusOK {
		t.Fatalf("refresh after password change must still work: %d", rec.Code)
	}
}

func TestMe_And_UpdateProfile(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")
	registerTestUser(t, e, "other", "other@example.com", "long-enough-pass")
	access, _, _ := loginTestUser(t, e, "navid", "long-enough-pass")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status = %d", rec.Code)
	}

	name := "Navid Prime"
	body, _ := json.Marshal(updateProfileRequest{DisplayName: &name})
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/users/profile", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access)
	rec = e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile update: status = %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var acct accountResponse
	if err := json.Unmarshal(env.Data, &acct); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if acct.DisplayName != name {
		t.Fatalf("display name = %q", acct.DisplayName)
	}

	// Taking another user's email conflicts.
	taken := "other@example.com"
	body, _ = json.Marshal(updateProfileRequest{Email: &taken})
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/users/profile", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access)
	rec = e.do(req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("email conflict: status = %d", rec.Code)
	}

	// Empty update is a 400.
	body, _ = json.Marshal(updateProfileRequest{})
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/users/profile", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access)
	if rec := e.do(req); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty update: status = %d", rec.Code)
	}
}

func TestUpdateAvatar_DeletesOldObject(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")
	access, _, _ := loginTestUser(t, e, "navid", "long-enough-pass")

	body, ct := multipartRegisterBody(t, nil, true, false)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/avatar", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("avatar update: status = %d body %s", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.Message != "avatar image updated successfully" {
		t.Fatalf("message = %q", env.Message)
	}

	// The registration avatar (first upload) must have been deleted.
	deleted := e.media.deletedKeys()
	if len(deleted) != 1 || deleted[0] != "images/test/1" {
		t.Fatalf("old avatar not deleted: %v", deleted)
	}
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	e := newTestEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/users/logout"},
		{http.MethodPost, "/api/v1/users/change-password"},
		{http.MethodGet, "/api/v1/users/me"},
		{http.MethodPatch, "/api/v1/users/profile"},
		{http.MethodPatch, "/api/v1/users/avatar"},
		{http.MethodPatch, "/api/v1/users/cover"},
		{http.MethodGet, "/api/v1/channels/someone"},
		{http.MethodGet, "/api/v1/users/history"},
	}

	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		rec := e.do(req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status = %d, want 401", rt.method, rt.path, rec.Code)
		}
	}

	// Tampered bearer token is also a 401.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	if rec := e.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered token: status = %d", rec.Code)
	}
}

func TestChannelProfile(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")
	access, _, _ := loginTestUser(t, e, "navid", "long-enough-pass")

	e.ids.mu.Lock()
	e.ids.channels["creator"] = identity.ChannelProfile{
		Account: identity.Account{
			ID:          "01FAKECHANNEL0000000000001",
			Username:    "creator",
			DisplayName: "Creator",
			Email:       "creator@example.com",
			AvatarURL:   "https://media.example.com/c.png",
		},
		SubscriberCount:   42,
		SubscribedToCount: 7,
		IsSubscribed:      true,
	}
	e.ids.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels/Creator", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("channel: status = %d body %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var ch channelResponse
	if err := json.Unmarshal(env.Data, &ch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ch.SubscriberCount != 42 || ch.SubscribedToCount != 7 || !ch.IsSubscribed {
		t.Fatalf("unexpected channel payload: %+v", ch)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/channels/ghost", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = e.do(req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown channel: status = %d", rec.Code)
	}
}

func TestWatchHistory(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")
	access, _, _ := loginTestUser(t, e, "navid", "long-enough-pass")

	var accountID string
	e.ids.mu.Lock()
	for id := range e.ids.accounts {
		accountID = id
	}
	now := time.Now().UTC()
	e.ids.history[accountID] = []identity.WatchEntry{
		{
			VideoID:         "01FAKEVIDEO00000000000002",
			Title:           "Second video",
			Views:           42,
			DurationSeconds: 300,
			PublishedAt:     now.Add(-time.Hour),
			WatchedAt:       now.Add(-5 * time.Minute),
			Owner: identity.PublicProfile{
				ID:       "01FAKECHANNEL0000000000001",
				Username: "creator",
			},
		},
		{
			VideoID:         "01FAKEVIDEO00000000000001",
			Title:           "First video",
			Views:           10,
			DurationSeconds: 120,
			PublishedAt:     now.Add(-2 * time.Hour),
			WatchedAt:       now.Add(-30 * time.Minute),
			Owner: identity.PublicProfile{
				ID:       "01FAKECHANNEL0000000000001",
				Username: "creator",
			},
		},
	}
	e.ids.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/history", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: status = %d body %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var entries []watchEntryResponse
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].VideoID != "01FAKEVIDEO00000000000002" {
		t.Fatalf("order not preserved: %+v", entries[0])
	}
	if entries[0].Owner.Username != "creator" {
		t.Fatalf("owner missing: %+v", entries[0])
	}
}

func TestWatchHistory_Empty(t *testing.T) {
	e := newTestEnv(t)
	registerTestUser(t, e, "navid", "navid@example.com", "long-enough-pass")
	access, _, _ := loginTestUser(t, e, "navid", "long-enough-pass")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/history", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if strings.TrimSpace(string(env.Data)) == "null" {
		t.Fatalf("empty history must encode as [], got null")
	}
}
