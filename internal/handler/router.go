package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/segyhp/loan-tracker/pkg/response"
)

// NewRouter mounts the health and /api/v1 routes behind the common
// middleware stack.
func NewRouter(loanHandler *LoanHandler, healthHandler *HealthHandler, logger zerolog.Logger, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(UserMiddleware)

	api.HandleFunc("/loans", loanHandler.ListLoans).Methods("GET")
	api.HandleFunc("/loans", loanHandler.CreateLoan).Methods("POST")
	api.HandleFunc("/loans/{loanId}", loanHandler.GetLoan).Methods("GET")
	api.HandleFunc("/loans/{loanId}", loanHandler.DeleteLoan).Methods("DELETE")
	api.HandleFunc("/loans/{loanId}/payments", loanHandler.ListPayments).Methods("GET")
	api.HandleFunc("/loans/{loanId}/payments", loanHandler.ApplyLoanPayment).Methods("POST")
	api.HandleFunc("/payments", loanHandler.ApplyPayment).Methods("POST")
	api.HandleFunc("/dashboard", loanHandler.Dashboard).Methods("GET")
	api.HandleFunc("/reminders", loanHandler.Reminders).Methods("GET")
	api.HandleFunc("/export/excel", loanHandler.Export).Methods("GET")
	api.HandleFunc("/events", loanHandler.Events).Methods("GET")

	// Outermost first. CORS wraps the router so preflight requests are
	// answered before route method matching.
	var handler http.Handler = router
	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		response.LoggingMiddleware(logger),
		middleware.Recoverer,
		response.CORSMiddleware(allowedOrigins),
	}
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}
	return handler
}
