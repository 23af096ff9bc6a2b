package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/auth"
	"github.com/sakif/acme-skills/internal/service"
)

const stateCookieName = "oauth_state"

var errGitHubDisabled = &apperror.AppError{
	Err:     apperror.ErrNotFound,
	Message: "GitHub sign-in is not configured",
}

// GitHubExchanger is the part of *auth.GitHubProvider the handler uses.
type GitHubExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler serves registration, login, the current-user endpoint and the
// optional GitHub sign-in flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account, return a token
//   - HandleLogin          → check credentials, return a token
//   - HandleMe             → the authenticated caller's profile
//   - HandleGitHubLogin    → redirect the browser to GitHub
//   - HandleGitHubCallback → exchange the code, return a token
type AuthHandler struct {
	accounts *service.AuthService
	github   GitHubExchanger // nil when GitHub sign-in is not configured
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. Pass a nil github to disable the
// GitHub routes (they answer 404).
func NewAuthHandler(accounts *service.AuthService, github GitHubExchanger, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		github:   github,
		logger:   logger,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"username": "moe", "password": "m_pw"}
// RESPONSE: 201 {"token": "..."}; 400 invalid input; 409 username taken
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{Token: res.Token})
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /auth/login
// RESPONSE: 200 {"token": "..."}; 400 missing fields; 401 bad credentials
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: res.Token})
}

// HandleMe returns the authenticated caller's profile.
//
// HTTP: GET /auth/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	withCaller(h.me)(w, r)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	user, err := h.accounts.GetUserByID(r.Context(), caller.UserID)
	if err != nil {
		// A valid token for a user that no longer resolves.
		h.logger.Warn("me: user lookup failed",
			slog.String("userID", caller.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and sent to
// GitHub, which echoes it back on the callback. A callback whose state does
// not match the cookie was not started by this browser and is rejected.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, errGitHubDisabled)
		return
	}

	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Find or create the local user
//  4. Respond with a token, same shape as /auth/login
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, errGitHubDisabled)
		return
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	query := r.URL.Query()
	if query.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		writeError(w, apperror.ValidationFailed("code", "authorization was denied"))
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	// --- Step 3 + 4 ---
	res, err := h.accounts.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: res.Token})
}
