package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/segyhp/loan-ledger/pkg/response"
)

// NewRouter mounts the health checks and the /api/v1 loan routes.
func NewRouter(loans *LoanHandler, health *HealthHandler, logger zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger), response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/quotes", loans.Quote).Methods(http.MethodPost)

	api.HandleFunc("/loans", loans.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans", loans.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}", loans.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/history", loans.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/schedule", loans.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/payments", loans.MakePayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/status", loans.TransitionStatus).Methods(http.MethodPost)

	api.HandleFunc("/customers/{customerId}/loans", loans.CustomerLoans).Methods(http.MethodGet)
	api.HandleFunc("/customers/{customerId}/portal/loans", loans.PortalLoans).Methods(http.MethodGet)

	return router
}
