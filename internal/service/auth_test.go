package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionSecret = "test-session-secret-with-32-bytes!"

// fakeVerifier maps raw tokens to identities
type fakeVerifier struct {
	identities map[string]*GoogleIdentity
	err        error
}

func (v *fakeVerifier) Verify(_ context.Context, rawToken string) (*GoogleIdentity, error) {
	if v.err != nil {
		return nil, v.err
	}
	identity, ok := v.identities[rawToken]
	if !ok {
		return nil, apperr.Unauthorized("invalid Google ID token")
	}
	copied := *identity
	return &copied, nil
}

func newAuthFixture(t *testing.T, verifier TokenVerifier) (*fixture, *AuthService) {
	t.Helper()

	f := newFixture(t)
	emailService := NewEmailService("", "noreply@example.com", "http://localhost:5173", "MagicJournal", true)
	return f, NewAuthService(f.users, verifier, emailService, testSessionSecret, time.Hour, true)
}

func TestAuthenticate_CreatesThenReusesUser(t *testing.T) {
	verifier := &fakeVerifier{identities: map[string]*GoogleIdentity{
		"tok-ada": {Subject: "sub-ada", Email: "Ada@Example.com", Name: "Ada", Picture: "https://pics/ada.png"},
	}}
	_, auth := newAuthFixture(t, verifier)
	ctx := context.Background()

	created, err := auth.Authenticate(ctx, "tok-ada", true)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, 1, created.Level)
	assert.Equal(t, model.ThemeSystem, created.Theme)
	require.NotNil(t, created.GoogleSub)
	assert.Equal(t, "sub-ada", *created.GoogleSub)

	again, err := auth.Authenticate(ctx, " tok-ada ", false)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestAuthenticate_LinksExistingEmail(t *testing.T) {
	verifier := &fakeVerifier{identities: map[string]*GoogleIdentity{
		"tok-bob":   {Subject: "sub-bob", Email: "bob@example.com", Name: "Robert", Picture: "https://pics/bob.png"},
		"tok-other": {Subject: "sub-other", Email: "bob@example.com"},
	}}
	f, auth := newAuthFixture(t, verifier)
	ctx := context.Background()
	existing := f.createUser(t, "bob@example.com", "Bob")

	user, err := auth.Authenticate(ctx, "tok-bob", false)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.Equal(t, "Bob", user.Name)
	assert.Equal(t, "https://pics/bob.png", user.Picture)

	stored, err := f.users.ByGoogleSub(ctx, "sub-bob")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, stored.ID)

	_, err = auth.Authenticate(ctx, "tok-other", true)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestAuthenticate_Rejections(t *testing.T) {
	verifier := &fakeVerifier{identities: map[string]*GoogleIdentity{
		"tok-new":      {Subject: "sub-new", Email: "new@example.com"},
		"tok-no-email": {Subject: "sub-x"},
	}}
	_, auth := newAuthFixture(t, verifier)
	ctx := context.Background()

	_, err := auth.Authenticate(ctx, "   ", true)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = auth.Authenticate(ctx, "garbage", true)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = auth.Authenticate(ctx, "tok-no-email", true)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = auth.Authenticate(ctx, "tok-new", false)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestAuthenticate_UpstreamFailurePassesThrough(t *testing.T) {
	verifier := &fakeVerifier{err: apperr.Upstream("could not reach Google to verify the token", context.DeadlineExceeded)}
	_, auth := newAuthFixture(t, verifier)

	_, err := auth.Authenticate(context.Background(), "tok", true)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestSession_RoundTripAndExpiry(t *testing.T) {
	_, auth := newAuthFixture(t, &fakeVerifier{})
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	auth.now = fixedClock(issued)

	user := &model.User{ID: "u1", Email: "ada@example.com", Name: "Ada"}
	token, expiry, err := auth.GenerateSession(user)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Hour), expiry)

	identity, err := auth.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, &model.Identity{UserID: "u1", Email: "ada@example.com", Name: "Ada"}, identity)

	auth.now = fixedClock(issued.Add(2 * time.Hour))
	_, err = auth.VerifySession(token)
	assert.Error(t, err)

	auth.now = fixedClock(issued)
	other := NewAuthService(nil, nil, nil, "a-different-secret-of-32-bytes!!", time.Hour, false)
	other.now = fixedClock(issued)
	_, err = other.VerifySession(token)
	assert.Error(t, err)

	_, err = auth.VerifySession("not-a-jwt")
	assert.Error(t, err)
}

func TestSessionCookie_Attributes(t *testing.T) {
	_, auth := newAuthFixture(t, &fakeVerifier{})

	rec := httptest.NewRecorder()
	auth.SetSessionCookie(rec, "signed", time.Now().Add(time.Hour))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, "signed", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, "/", cookies[0].Path)

	rec = httptest.NewRecorder()
	auth.ClearSessionCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
