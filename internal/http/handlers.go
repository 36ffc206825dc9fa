package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"ebank/internal/core"
	"ebank/internal/forex"
	applog "ebank/internal/log"
	"ebank/internal/query"
)

type handler struct {
	querier  TransactionQuerier
	verifier *TokenVerifier
	logger   *applog.Logger
}

// transactionsRequest is the parsed and validated query string of
// GET /api/transactions.
type transactionsRequest struct {
	Month    core.Month
	Page     int
	Size     int
	Currency string
}

func parseTransactionsRequest(q url.Values) (transactionsRequest, error) {
	req := transactionsRequest{Page: 1, Size: 20}

	month, err := core.ParseMonth(q.Get("month"))
	if err != nil {
		return req, fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	req.Month = month

	if v := q.Get("page"); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("page must be an integer")
		}
	}
	if v := q.Get("size"); v != "" {
		if req.Size, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("size must be an integer")
		}
	}

	req.Currency = q.Get("currency")
	if len(req.Currency) != 3 {
		return req, fmt.Errorf("currency must be a 3-letter code")
	}
	return req, nil
}

func (h *handler) monthTransactions(w http.ResponseWriter, r *http.Request) {
	iban, err := h.verifier.ExtractIBAN(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	req, err := parseTransactionsRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("transactions query",
		applog.FieldIBAN, iban,
		applog.FieldMonth, req.Month.String(),
		applog.FieldPage, req.Page,
		applog.FieldPageSize, req.Size,
		applog.FieldCurrency, req.Currency)

	res, err := h.querier.MonthTransactions(r.Context(), iban, req.Month, req.Page, req.Size, req.Currency)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionsResponse(res))
}

// writeQueryError maps query failures to distinct statuses instead of
// collapsing them into an empty result.
func (h *handler) writeQueryError(w http.ResponseWriter, err error) {
	var rateErr *forex.RateUnavailableError
	switch {
	case errors.Is(err, query.ErrInvalidPagination):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &rateErr):
		writeError(w, http.StatusBadGateway, rateErr.Error())
	default:
		h.logger.Error("query failed", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
