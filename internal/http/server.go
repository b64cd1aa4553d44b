package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"

	"tally/internal/auth"
	"tally/internal/services"
	appweb "tally/web"
)

// Services bundles the application services the server fronts.
type Services struct {
	Auth         *services.AuthService
	Entities     *services.EntityService
	Categories   *services.CategoryService
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Recurring    *services.RecurringService
}

type Server struct {
	http.Server

	tokens       *auth.JWTManager
	authService  *services.AuthService
	entities     *services.EntityService
	categories   *services.CategoryService
	transactions *services.TransactionService
	budgets      *services.BudgetService
	recurring    *services.RecurringService

	templates   *template.Template
	rateLimiter *rateLimiter
	metrics     *metrics

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(addr string, tokens *auth.JWTManager, svcs Services) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		tokens:       tokens,
		authService:  svcs.Auth,
		entities:     svcs.Entities,
		categories:   svcs.Categories,
		transactions: svcs.Transactions,
		budgets:      svcs.Budgets,
		recurring:    svcs.Recurring,
		templates:    template.Must(template.ParseFS(appweb.Templates, "templates/*.html")),
		rateLimiter:  newRateLimiter(),
		metrics:      newMetrics(),
	}

	if static, err := fs.Sub(appweb.Static, "static"); err == nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.withObservability(pattern, h))
	}

	handle("GET /healthz", handleHealth)
	handle("GET /readyz", handleReady)
	mux.Handle("GET /metrics", s.metrics.handler())

	handle("POST /api/auth/register", s.handleRegister)
	handle("POST /api/auth/login", s.handleLogin)
	handle("GET /api/auth/me", s.withAuth(s.handleMe))

	handle("POST /api/entities", s.withAuth(s.handleCreateEntity))
	handle("GET /api/entities", s.withAuth(s.handleListEntities))
	handle("POST /api/entities/{entityID}/members", s.withAuth(s.handleAddMember))

	handle("POST /api/entities/{entityID}/categories", s.withEntity(s.handleCreateCategory))
	handle("GET /api/entities/{entityID}/categories", s.withEntity(s.handleListCategories))
	handle("GET /api/entities/{entityID}/categories/tree", s.withEntity(s.handleCategoryTree))
	handle("GET /api/entities/{entityID}/categories/{categoryID}", s.withEntity(s.handleGetCategory))
	handle("PUT /api/entities/{entityID}/categories/{categoryID}", s.withEntity(s.handleUpdateCategory))
	handle("DELETE /api/entities/{entityID}/categories/{categoryID}", s.withEntity(s.handleDeleteCategory))

	handle("POST /api/entities/{entityID}/transactions", s.withEntity(s.handleCreateTransaction))
	handle("GET /api/entities/{entityID}/transactions", s.withEntity(s.handleListTransactions))
	handle("GET /api/entities/{entityID}/transactions/{transactionID}", s.withEntity(s.handleGetTransaction))
	handle("PUT /api/entities/{entityID}/transactions/{transactionID}", s.withEntity(s.handleUpdateTransaction))
	handle("DELETE /api/entities/{entityID}/transactions/{transactionID}", s.withEntity(s.handleDeleteTransaction))

	handle("POST /api/entities/{entityID}/budgets", s.withEntity(s.handleCreateBudget))
	handle("GET /api/entities/{entityID}/budgets", s.withEntity(s.handleListBudgets))
	handle("GET /api/entities/{entityID}/budgets/progress", s.withEntity(s.handleBudgetProgress))
	handle("GET /api/entities/{entityID}/budgets/{budgetID}", s.withEntity(s.handleGetBudget))
	handle("PUT /api/entities/{entityID}/budgets/{budgetID}", s.withEntity(s.handleUpdateBudget))
	handle("DELETE /api/entities/{entityID}/budgets/{budgetID}", s.withEntity(s.handleDeleteBudget))

	handle("POST /api/entities/{entityID}/recurring", s.withEntity(s.handleCreateRecurring))
	handle("GET /api/entities/{entityID}/recurring", s.withEntity(s.handleListRecurring))
	handle("GET /api/entities/{entityID}/recurring/{templateID}", s.withEntity(s.handleGetRecurring))
	handle("PUT /api/entities/{entityID}/recurring/{templateID}", s.withEntity(s.handleUpdateRecurring))
	handle("DELETE /api/entities/{entityID}/recurring/{templateID}", s.withEntity(s.handleDeleteRecurring))

	handle("GET /api/entities/{entityID}/dashboard", s.withEntity(s.handleDashboard))
	handle("GET /api/entities/{entityID}/export/transactions.csv", s.withEntity(s.handleExportTransactions))

	handle("GET /ui/entities/{entityID}/categories", s.withEntity(s.handleCategoryTreeWidget))
	handle("GET /ui/entities/{entityID}/categories/tree", s.withEntity(s.handleCategoryTreePartial))

	return s
}

// Shutdown gracefully stops the server and its cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
