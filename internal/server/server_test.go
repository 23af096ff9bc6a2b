package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/acme-skills/internal/config"
	"github.com/sakif/acme-skills/internal/model"
)

// =========================================================================
// HELPERS
// =========================================================================

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "server.db")
	cfg.Auth.JWTSecret = "server-test-secret-0123456789"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// signUp registers username and returns an authenticated client plus the
// user's id.
func signUp(t *testing.T, ts *httptest.Server, username, password string) (*client, string) {
	t.Helper()
	c := &client{t: t, base: ts.URL}

	resp := c.do(http.MethodPost, "/auth/register", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c.token = decode[map[string]string](t, resp)["token"]
	require.NotEmpty(t, c.token)

	resp = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[model.User](t, resp)
	return c, me.ID
}

func skillID(t *testing.T, c *client, name string) string {
	t.Helper()
	resp := c.do(http.MethodGet, "/skills", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, s := range decode[[]model.Skill](t, resp) {
		if s.Name == name {
			return s.ID
		}
	}
	t.Fatalf("skill %q not in catalog", name)
	return ""
}

// =========================================================================
// END-TO-END
// =========================================================================

func TestEndToEnd_FavoritesFlow(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	anon := &client{t: t, base: ts.URL}

	// register → 201 with token
	alice, aliceID := signUp(t, ts, "alice", "pw1")

	// login → 200 with token
	resp := anon.do(http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[map[string]string](t, resp)["token"])

	// GET /skills includes the seeded skills
	resp = anon.do(http.MethodGet, "/skills", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	names := map[string]bool{}
	for _, s := range decode[[]model.Skill](t, resp) {
		names[s.Name] = true
	}
	for _, want := range []string{"foo", "bar", "bazz", "quq", "fip"} {
		assert.True(t, names[want], "catalog is missing %q", want)
	}

	fooID := skillID(t, alice, "foo")
	favPath := "/users/" + aliceID + "/favorites"

	// first favorite → 201
	resp = alice.do(http.MethodPost, favPath, map[string]string{"skill_id": fooID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	fav := decode[model.Favorite](t, resp)
	assert.Equal(t, aliceID, fav.UserID)
	assert.Equal(t, fooID, fav.SkillID)

	// same favorite again → 409
	resp = alice.do(http.MethodPost, favPath, map[string]string{"skill_id": fooID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// list shows exactly one
	resp = alice.do(http.MethodGet, favPath, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Favorite](t, resp), 1)

	// delete → 204
	resp = alice.do(http.MethodDelete, favPath+"/"+fav.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// list is empty, and an empty JSON array rather than null
	resp = alice.do(http.MethodGet, favPath, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestRegister_Duplicate(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	signUp(t, ts, "moe", "m_pw")

	anon := &client{t: t, base: ts.URL}
	resp := anon.do(http.MethodPost, "/auth/register", map[string]string{"username": "moe", "password": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.Equal(t, "conflict", body["code"])
	assert.NotEmpty(t, body["error"])
}

func TestLogin_Failures(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	signUp(t, ts, "moe", "m_pw")
	anon := &client{t: t, base: ts.URL}

	resp := anon.do(http.MethodPost, "/auth/login", map[string]string{"username": "moe", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = anon.do(http.MethodPost, "/auth/login", map[string]string{"username": "nobody", "password": "m_pw"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = anon.do(http.MethodPost, "/auth/login", map[string]string{"username": "moe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =========================================================================
// GUARDS
// =========================================================================

func TestFavorites_RequireToken(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	_, moeID := signUp(t, ts, "moe", "m_pw")

	anon := &client{t: t, base: ts.URL}
	resp := anon.do(http.MethodGet, "/users/"+moeID+"/favorites", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bad := &client{t: t, base: ts.URL, token: "not.a.jwt"}
	resp = bad.do(http.MethodGet, "/users/"+moeID+"/favorites", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = anon.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFavorites_OtherUsersAreForbidden(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	moe, moeID := signUp(t, ts, "moe", "m_pw")
	lucy, _ := signUp(t, ts, "lucy", "l_pw")

	fooID := skillID(t, moe, "foo")
	resp := moe.do(http.MethodPost, "/users/"+moeID+"/favorites", map[string]string{"skill_id": fooID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	fav := decode[model.Favorite](t, resp)

	moePath := "/users/" + moeID + "/favorites"

	resp = lucy.do(http.MethodGet, moePath, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = lucy.do(http.MethodPost, moePath, map[string]string{"skill_id": fooID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = lucy.do(http.MethodDelete, moePath+"/"+fav.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// A nonexistent target id is still 403, not 404.
	resp = lucy.do(http.MethodGet, "/users/no-such-user/favorites", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// moe's favorite survived
	resp = moe.do(http.MethodGet, moePath, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Favorite](t, resp), 1)
}

func TestFavorites_DeleteIsIdempotent(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	moe, moeID := signUp(t, ts, "moe", "m_pw")

	resp := moe.do(http.MethodDelete, "/users/"+moeID+"/favorites/does-not-exist", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = moe.do(http.MethodDelete, "/users/"+moeID+"/favorites/does-not-exist", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestFavorites_BadInput(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	moe, moeID := signUp(t, ts, "moe", "m_pw")
	path := "/users/" + moeID + "/favorites"

	resp := moe.do(http.MethodPost, path, map[string]string{"skill_id": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = moe.do(http.MethodPost, path, map[string]string{"skill_id": "unknown-skill"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFavorites_ConcurrentDuplicates(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	moe, moeID := signUp(t, ts, "moe", "m_pw")
	fooID := skillID(t, moe, "foo")
	path := "/users/" + moeID + "/favorites"

	const workers = 10
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf, _ := json.Marshal(map[string]string{"skill_id": fooID})
			req, _ := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(buf))
			req.Header.Set("Authorization", "Bearer "+moe.token)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	var created, conflicts int
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)

	resp := moe.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Favorite](t, resp), 1)
}

// =========================================================================
// MISC ROUTES
// =========================================================================

func TestTokenWithoutBearerPrefix(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	moe, _ := signUp(t, ts, "moe", "m_pw")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", moe.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUsersList_HidesSecrets(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	signUp(t, ts, "moe", "m_pw")
	signUp(t, ts, "lucy", "l_pw")

	anon := &client{t: t, base: ts.URL}
	resp := anon.do(http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	users := decode[[]map[string]any](t, resp)
	require.Len(t, users, 2)
	assert.Equal(t, "lucy", users[0]["username"])
	for _, u := range users {
		assert.NotContains(t, u, "password_hash")
		assert.NotContains(t, u, "PasswordHash")
		assert.Len(t, u, 2, "only id and username are exposed")
	}
}

func TestDemoSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Seed.DemoUsers = true
	ts := newTestServer(t, cfg)

	anon := &client{t: t, base: ts.URL}
	resp := anon.do(http.MethodPost, "/auth/login", map[string]string{"username": "moe", "password": "m_pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moe := &client{t: t, base: ts.URL, token: decode[map[string]string](t, resp)["token"]}

	resp = moe.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[model.User](t, resp)

	resp = moe.do(http.MethodGet, "/users/"+me.ID+"/favorites", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Favorite](t, resp), 1)
}

func TestGitHubRoutesDisabledByDefault(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := noRedirect.Get(ts.URL + "/auth/github/login")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGitHubLoginRedirects(t *testing.T) {
	cfg := testConfig(t)
	cfg.GitHub = config.GitHubConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "http://localhost/auth/github/callback",
	}
	ts := newTestServer(t, cfg)

	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := noRedirect.Get(ts.URL + "/auth/github/login")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "github.com/login/oauth/authorize")
	assert.Contains(t, resp.Header.Get("Location"), "client_id=client-id")
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestFavorites_TokenForMissingUser(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(context.Background(), testConfig(t), logger)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})

	// Signed with the server's own secret, for a user id with no row, as
	// after a database reset that kept JWT_SECRET.
	token, err := s.tokens.Issue("vanished-user")
	require.NoError(t, err)
	ghost := &client{t: t, base: ts.URL, token: token}

	fooID := skillID(t, ghost, "foo")
	resp := ghost.do(http.MethodPost, "/users/vanished-user/favorites", map[string]string{"skill_id": fooID})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.NotContains(t, body["error"], fooID)
}
