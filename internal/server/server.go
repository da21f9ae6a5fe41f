package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/famfin/internal/config"
	"github.com/dukerupert/famfin/internal/email"
	"github.com/dukerupert/famfin/internal/handler"
	"github.com/dukerupert/famfin/internal/metrics"
	"github.com/dukerupert/famfin/internal/middleware"
	"github.com/dukerupert/famfin/internal/push"
	"github.com/dukerupert/famfin/internal/store"
	ws "github.com/dukerupert/famfin/internal/websocket"
)

type Server struct {
	db             *sql.DB
	cfg            config.Config
	hub            *ws.Hub
	authH          *handler.AuthHandler
	familyH        *handler.FamilyHandler
	budgetH        *handler.BudgetHandler
	expenseH       *handler.ExpenseHandler
	pushH          *handler.PushHandler
	adminH         *handler.AdminHandler
	sessionStore   *store.SessionStore
	userStore      *store.UserStore
	familyStore    *store.FamilyStore
	rateLimiter    *middleware.RateLimiter
	pushDispatcher *push.Dispatcher
	logger         *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	familyStore := store.NewFamilyStore(db)
	sessionStore := store.NewSessionStore(db, cfg.SessionTTL)
	budgetStore := store.NewBudgetStore(db)
	expenseStore := store.NewExpenseStore(db)
	shareStore := store.NewShareStore(db)
	pushSt := store.NewPushStore(db)

	hub.SetJoinPolicy(func(userID, familyID int64) bool {
		m, err := familyStore.GetMember(familyID, userID)
		if err != nil {
			logger.Error("join policy lookup", "user_id", userID, "family_id", familyID, "error", err)
			return false
		}
		return m != nil
	})

	// Push notification service + dispatcher
	var pushSvc *push.Service
	var pushDisp *push.Dispatcher
	if cfg.Push.Enabled() {
		pushSvc = push.NewService(cfg.Push)
		pushDisp = push.NewDispatcher(pushSvc, pushSt, logger)
	}

	var mailer *email.Client
	if cfg.Email.PostmarkToken != "" {
		mailer = email.NewClient(cfg.Email.PostmarkToken, cfg.Email.From, cfg.BaseURL)
	}

	return &Server{
		db:             db,
		cfg:            cfg,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, familyStore, sessionStore, cfg.BaseURL, cfg.SessionTTL, logger.With("component", "auth")),
		familyH:        handler.NewFamilyHandler(familyStore, userStore, sessionStore, hub, logger.With("component", "family")),
		budgetH:        handler.NewBudgetHandler(budgetStore, expenseStore, shareStore, familyStore, userStore, hub, pushDisp, mailer, logger.With("component", "budget")),
		expenseH:       handler.NewExpenseHandler(expenseStore, budgetStore, familyStore, hub, logger.With("component", "expense")),
		pushH:          handler.NewPushHandler(pushSt, pushSvc, pushDisp, logger.With("component", "push_handler")),
		adminH:         handler.NewAdminHandler(userStore, familyStore, hub, logger.With("component", "admin")),
		sessionStore:   sessionStore,
		userStore:      userStore,
		familyStore:    familyStore,
		rateLimiter:    middleware.NewRateLimiter(),
		pushDispatcher: pushDisp,
		logger:         logger,
	}
}

// Hub returns the live notification hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PushDispatcher returns the web push dispatcher, or nil when push is disabled.
func (s *Server) PushDispatcher() *push.Dispatcher {
	return s.pushDispatcher
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	if s.cfg.MetricsEnabled {
		outerMux.Handle("GET /metrics", metrics.Handler())
	}

	// Live transport. The session, when present, pins the connection's identity.
	wsHandler := ws.HandleWebSocket(s.hub, ws.HandlerOptions{OriginPatterns: s.cfg.WebSocket.OriginPatterns})
	if s.cfg.WebSocket.RequireSession {
		outerMux.Handle("GET /ws", middleware.RequireAuth(s.sessionStore, s.userStore, s.familyStore)(wsHandler))
	} else {
		outerMux.Handle("GET /ws", middleware.OptionalAuth(s.sessionStore, s.userStore, s.familyStore)(wsHandler))
	}

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.familyStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}` + "\n"))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Auth routes that require authentication
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Family routes
	mux.HandleFunc("POST /api/families", s.familyH.Create)
	mux.HandleFunc("GET /api/families", s.familyH.List)
	mux.HandleFunc("GET /api/families/{id}", s.familyH.Get)
	mux.HandleFunc("PUT /api/families/{id}", s.familyH.Update)
	mux.HandleFunc("DELETE /api/families/{id}", s.familyH.Delete)
	mux.HandleFunc("POST /api/families/{id}/select", s.familyH.Select)
	mux.HandleFunc("GET /api/families/{id}/members", s.familyH.ListMembers)
	mux.HandleFunc("POST /api/families/{id}/members", s.familyH.AddMember)
	mux.HandleFunc("PUT /api/families/{id}/members/{user_id}", s.familyH.UpdateMemberRole)
	mux.HandleFunc("DELETE /api/families/{id}/members/{user_id}", s.familyH.RemoveMember)
	mux.HandleFunc("GET /api/families/{id}/summary", s.budgetH.Summary)

	// Budget routes
	mux.HandleFunc("GET /api/families/{id}/budgets", s.budgetH.List)
	mux.HandleFunc("POST /api/families/{id}/budgets", s.budgetH.Create)
	mux.HandleFunc("GET /api/budgets/shared", s.budgetH.Shared)
	mux.HandleFunc("GET /api/budgets/{id}", s.budgetH.Get)
	mux.HandleFunc("PUT /api/budgets/{id}", s.budgetH.Update)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.budgetH.Delete)
	mux.HandleFunc("POST /api/budgets/{id}/share", s.budgetH.Share)
	mux.HandleFunc("DELETE /api/budgets/{id}/share/{user_id}", s.budgetH.Unshare)

	// Expense routes
	mux.HandleFunc("GET /api/families/{id}/expenses", s.expenseH.List)
	mux.HandleFunc("POST /api/families/{id}/expenses", s.expenseH.Create)
	mux.HandleFunc("GET /api/expenses/{id}", s.expenseH.Get)
	mux.HandleFunc("PUT /api/expenses/{id}", s.expenseH.Update)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.expenseH.Delete)

	// Push routes
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("POST /api/push/test", s.pushH.Test)

	// Admin routes
	admin := func(h http.HandlerFunc) http.Handler { return middleware.RequireAdmin(h) }
	mux.Handle("GET /api/admin/users", admin(s.adminH.ListUsers))
	mux.Handle("PUT /api/admin/users/{id}/role", admin(s.adminH.UpdateRole))
	mux.Handle("GET /api/admin/families", admin(s.adminH.ListFamilies))
	mux.Handle("GET /api/admin/presence", admin(s.adminH.Presence))
	mux.Handle("POST /api/admin/announce", admin(s.adminH.Announce))
}
