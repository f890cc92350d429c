package routes

import (
	"context"
	"net/http"

	"github.com/magicjournal/server/internal/app"
	"github.com/magicjournal/server/internal/handler"
	"github.com/magicjournal/server/internal/middleware"
	"github.com/magicjournal/server/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes builds the API handler. ctx bounds background work such as the
// rate limiter's visitor cleanup.
func SetupRoutes(ctx context.Context, app *app.App) http.Handler {
	// Handlers
	system := handler.NewSystemHandler(app.DB)
	auth := handler.NewAuthHandler(app.AuthService, app.UserService, app.Cfg)
	user := handler.NewUserHandler(app.UserService)
	habit := handler.NewHabitHandler(app.HabitService)
	goal := handler.NewGoalHandler(app.GoalService)
	journal := handler.NewJournalHandler(app.JournalService)
	health := handler.NewHealthHandler(app.HealthService)
	friend := handler.NewFriendHandler(app.FriendService)
	assistant := handler.NewAssistantHandler(app.AssistantService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /api/health", system.Health)

	if app.Cfg.MetricsEnabled() {
		mux.Handle("GET /metrics", middleware.BasicAuth(app.Cfg.MetricsUser, app.Cfg.MetricsPass, promhttp.Handler()))
	}

	// Auth (rate limited)
	rateLimiter := middleware.NewRateLimiter(ctx, app.Cfg.AuthRateLimit, app.Cfg.AuthBurst)

	mux.HandleFunc("POST /api/auth/google", rateLimiter.Limit(auth.GoogleSignIn))
	mux.HandleFunc("GET /api/auth/google/start", rateLimiter.Limit(auth.GoogleStart))
	mux.HandleFunc("GET /api/auth/google/callback", rateLimiter.Limit(auth.GoogleCallback))
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(auth.Me))

	// Profile
	mux.HandleFunc("GET /api/user/me", middleware.RequireAuth(user.Me))
	mux.HandleFunc("PATCH /api/user/me", middleware.RequireAuth(user.Update))
	mux.HandleFunc("POST /api/user/me/avatar", middleware.RequireAuth(user.UploadAvatar))
	mux.HandleFunc("DELETE /api/user/me/avatar", middleware.RequireAuth(user.DeleteAvatar))

	// Habits & goals
	mux.HandleFunc("GET /api/habits", middleware.RequireAuth(habit.List))
	mux.HandleFunc("GET /api/goals", middleware.RequireAuth(goal.List))
	mux.HandleFunc("POST /api/goals", middleware.RequireAuth(goal.Create))
	mux.HandleFunc("GET /api/goals/{id}", middleware.RequireAuth(goal.Get))
	mux.HandleFunc("PATCH /api/goals/{id}", middleware.RequireAuth(goal.Update))
	mux.HandleFunc("DELETE /api/goals/{id}", middleware.RequireAuth(goal.Delete))

	// Journal
	mux.HandleFunc("GET /api/journal/entries", middleware.RequireAuth(journal.List))
	mux.HandleFunc("POST /api/journal/entries", middleware.RequireAuth(journal.Submit))
	mux.HandleFunc("DELETE /api/journal/entries/{id}", middleware.RequireAuth(journal.Delete))

	// Health
	mux.HandleFunc("GET /api/health/daily", middleware.RequireAuth(health.Daily))
	mux.HandleFunc("POST /api/health/daily", middleware.RequireAuth(health.Ingest))
	mux.HandleFunc("POST /api/health/enable", middleware.RequireAuth(goal.EnableHealth))

	// Friends
	mux.HandleFunc("GET /api/friends", middleware.RequireAuth(friend.List))
	mux.HandleFunc("GET /api/friends/requests", middleware.RequireAuth(friend.Requests))
	mux.HandleFunc("POST /api/friends/requests", middleware.RequireAuth(friend.Send))
	mux.HandleFunc("POST /api/friends/requests/{id}/accept", middleware.RequireAuth(friend.Accept))
	mux.HandleFunc("POST /api/friends/requests/{id}/decline", middleware.RequireAuth(friend.Decline))
	mux.HandleFunc("POST /api/friends/requests/{id}/cancel", middleware.RequireAuth(friend.Cancel))
	mux.HandleFunc("DELETE /api/friends/{id}", middleware.RequireAuth(friend.Unfriend))
	mux.HandleFunc("GET /api/friends/{id}/habits", middleware.RequireAuth(friend.Goals))

	// Assistant
	mux.HandleFunc("POST /api/ai/respond", middleware.RequireAuth(assistant.Respond))

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestLogging,
		middleware.CORS(app.Cfg.FrontendOrigins), // answers preflight before auth
		middleware.OriginCheck(app.Cfg.FrontendOrigins),
		middleware.Auth(app.AuthService, service.SessionCookieName),
		middleware.Metrics, // innermost so it sees r.Pattern set by the mux
	)

	return handler
}
