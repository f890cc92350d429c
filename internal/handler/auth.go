package handler

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/config"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "oauth_state"

type AuthHandler struct {
	authService       *service.AuthService
	userService       *service.UserService
	googleOAuthConfig *oauth2.Config
	redirectEnabled   bool
	frontendURL       string
	isProduction      bool
}

func NewAuthHandler(authService *service.AuthService, userService *service.UserService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		googleOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.AppURL + "/api/auth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		redirectEnabled: cfg.GoogleRedirectEnabled(),
		frontendURL:     cfg.FrontendURL,
		isProduction:    cfg.IsProduction(),
	}
}

type googleSignInRequest struct {
	IDToken     string `json:"id_token"`
	AllowCreate *bool  `json:"allow_create"`
}

// GoogleSignIn exchanges a Google ID token from the client for a session cookie
func (h *AuthHandler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req googleSignInRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	allowCreate := true
	if req.AllowCreate != nil {
		allowCreate = *req.AllowCreate
	}

	user, err := h.authService.Authenticate(r.Context(), req.IDToken, allowCreate)
	if err != nil {
		respondError(w, r, err)
		return
	}

	err = h.startSession(w, user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.respondUser(w, r, user.ID)
}

// Me returns the signed-in user's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	h.respondUser(w, r, userID(r))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GoogleStart redirects the browser to the Google consent screen
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if !h.redirectEnabled {
		respondError(w, r, apperr.InvalidState("google redirect sign-in is not configured"))
		return
	}

	state := generateOAuthState()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction, // Secure flag based on APP_ENV (safer than r.TLS behind load balancers)
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	http.Redirect(w, r, h.googleOAuthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback exchanges the code, signs in with the returned ID token and
// sends the browser back to the frontend
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.redirectEnabled {
		respondError(w, r, apperr.InvalidState("google redirect sign-in is not configured"))
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value != state || state == "" {
		slog.Warn("google oauth state validation failed", "error", err)
		h.redirectFrontend(w, r, "invalid_state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("google oauth callback missing code")
		h.redirectFrontend(w, r, "missing_code")
		return
	}

	token, err := h.googleOAuthConfig.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("google oauth token exchange failed", "error", err)
		h.redirectFrontend(w, r, "exchange_failed")
		return
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		slog.Error("google oauth response missing id_token")
		h.redirectFrontend(w, r, "missing_id_token")
		return
	}

	user, err := h.authService.Authenticate(r.Context(), idToken, true)
	if err != nil {
		slog.Warn("google redirect sign-in failed", "error", err)
		h.redirectFrontend(w, r, apperr.KindOf(err).String())
		return
	}

	err = h.startSession(w, user)
	if err != nil {
		slog.Error("failed to start session", "error", err, "user_id", user.ID)
		h.redirectFrontend(w, r, "session_failed")
		return
	}

	h.redirectFrontend(w, r, "")
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user *model.User) error {
	token, expiry, err := h.authService.GenerateSession(user)
	if err != nil {
		return apperr.Internal("failed to create session", err)
	}
	h.authService.SetSessionCookie(w, token, expiry)
	return nil
}

func (h *AuthHandler) respondUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.userService.ByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) redirectFrontend(w http.ResponseWriter, r *http.Request, authError string) {
	target := h.frontendURL
	if authError != "" {
		target += "?auth_error=" + url.QueryEscape(authError)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func generateOAuthState() string {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		panic("failed to generate oauth state: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
