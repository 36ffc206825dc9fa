// Package http is the JSON transport for the query engine: one endpoint
// returning an account's month transactions, with the account taken
// from the caller's bearer token.
package http

import (
	"context"
	"net/http"
	"time"

	"ebank/internal/core"
	applog "ebank/internal/log"
	"ebank/internal/query"
)

// TransactionQuerier is the query engine surface the transport needs.
type TransactionQuerier interface {
	MonthTransactions(ctx context.Context, iban string, month core.Month, page, size int, currency string) (query.Result, error)
}

// NewServer builds the API server with sane timeouts and request
// logging.
func NewServer(addr string, querier TransactionQuerier, verifier *TokenVerifier, logger *applog.Logger) *http.Server {
	h := &handler{
		querier:  querier,
		verifier: verifier,
		logger:   logger.WithComponent(applog.ComponentHTTP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/transactions", h.monthTransactions)
	mux.HandleFunc("GET /healthz", h.health)

	return &http.Server{
		Addr:           addr,
		Handler:        applog.Middleware(logger)(mux),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
}
