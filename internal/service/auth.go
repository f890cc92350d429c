package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
	"google.golang.org/api/idtoken"
)

const SessionCookieName = "auth_token"

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleIdentity holds the verified claims of a Google ID token
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// TokenVerifier checks an ID token and returns its identity. Implementations
// return apperr errors: Unauthorized for bad tokens, Upstream when the
// provider's keys cannot be fetched.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error)
}

type googleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) TokenVerifier {
	return &googleVerifier{clientID: clientID}
}

func (v *googleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error) {
	payload, err := idtoken.Validate(ctx, rawToken, v.clientID)
	if err != nil {
		if isTransportError(err) {
			return nil, apperr.Upstream("could not reach Google to verify the token", err)
		}
		slog.Debug("google id token rejected", "error", err)
		return nil, apperr.Unauthorized("invalid Google ID token")
	}

	if !googleIssuers[payload.Issuer] {
		return nil, apperr.Unauthorized("invalid Google ID token issuer")
	}

	identity := &GoogleIdentity{
		Subject: payload.Subject,
		Email:   claimString(payload.Claims, "email"),
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
	}
	return identity, nil
}

func claimString(claims map[string]any, key string) string {
	v, _ := claims[key].(string)
	return v
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

type sessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

type AuthService struct {
	userRepository repository.UserRepository
	verifier       TokenVerifier
	emailService   *EmailService
	sessionSecret  string
	sessionExpiry  time.Duration
	isProduction   bool
	now            func() time.Time
}

func NewAuthService(
	userRepository repository.UserRepository,
	verifier TokenVerifier,
	emailService *EmailService,
	sessionSecret string,
	sessionExpiry time.Duration,
	isProduction bool,
) *AuthService {
	return &AuthService{
		userRepository: userRepository,
		verifier:       verifier,
		emailService:   emailService,
		sessionSecret:  sessionSecret,
		sessionExpiry:  sessionExpiry,
		isProduction:   isProduction,
		now:            time.Now,
	}
}

// Authenticate verifies a Google ID token and resolves the local user, linking
// an existing account by email or creating one when allowCreate is set.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string, allowCreate bool) (*model.User, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, apperr.BadRequest("id_token is required")
	}

	identity, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if identity.Subject == "" || identity.Email == "" {
		return nil, apperr.Unauthorized("Google ID token is missing subject or email")
	}
	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))

	user, err := s.resolveUser(ctx, identity, allowCreate)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// a concurrent first sign-in created the row
		user, err = s.resolveUser(ctx, identity, false)
	}
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.Internal("failed to sign in", err)
	}

	slog.Info("user authenticated via google", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) resolveUser(ctx context.Context, identity *GoogleIdentity, allowCreate bool) (*model.User, error) {
	user, err := s.userRepository.ByGoogleSub(ctx, identity.Subject)
	if err == nil {
		return s.refreshProfile(ctx, user, identity)
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to lookup user by subject: %w", err)
	}

	user, err = s.userRepository.ByEmail(ctx, identity.Email)
	if err == nil {
		if user.GoogleSub != nil && *user.GoogleSub != identity.Subject {
			return nil, apperr.Conflict("email is linked to a different Google account")
		}
		sub := identity.Subject
		user.GoogleSub = &sub
		slog.Info("linking existing account to google", "user_id", user.ID)
		return s.refreshProfile(ctx, user, identity)
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to lookup user by email: %w", err)
	}

	if !allowCreate {
		return nil, apperr.Forbidden("no account exists for this Google user")
	}

	now := s.now()
	sub := identity.Subject
	user = &model.User{
		ID:        uuid.New().String(),
		GoogleSub: &sub,
		Email:     identity.Email,
		Name:      identity.Name,
		Picture:   identity.Picture,
		Level:     1,
		Streak:    0,
		Theme:     model.ThemeSystem,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.userRepository.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("new google user created", "user_id", user.ID)
	if s.emailService != nil {
		err = s.emailService.SendWelcomeEmail(ctx, user.Email, user.Name)
		if err != nil {
			slog.Warn("failed to send welcome email", "error", err, "user_id", user.ID)
		}
	}
	return user, nil
}

// refreshProfile fills blank profile fields from Google and persists the link
func (s *AuthService) refreshProfile(ctx context.Context, user *model.User, identity *GoogleIdentity) (*model.User, error) {
	changed := user.GoogleSub == nil || *user.GoogleSub != identity.Subject
	if user.Name == "" && identity.Name != "" {
		user.Name = identity.Name
		changed = true
	}
	if user.Picture == "" && identity.Picture != "" {
		user.Picture = identity.Picture
		changed = true
	}
	if !changed {
		return user, nil
	}

	err := s.userRepository.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// GenerateSession signs a session token for the user and returns its expiry
func (s *AuthService) GenerateSession(user *model.User) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(s.sessionExpiry)

	claims := sessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.sessionSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiry, nil
}

// VerifySession checks the token signature and expiry and returns the identity snapshot
func (s *AuthService) VerifySession(tokenString string) (*model.Identity, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.sessionSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token")
	}

	return &model.Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.Name}, nil
}

func (s *AuthService) SetSessionCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}
