package http

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"ebank/internal/core"
	"ebank/internal/query"
)

// transactionsResponse shapes a query result for the wire. The zero
// case keeps the historical response exactly: "transactions" collapses
// to the integer 0 instead of an empty list, and the totals are plain
// zeros. Consumers depend on that shape.
func transactionsResponse(res query.Result) map[string]any {
	if len(res.Transactions) == 0 && res.Debited.IsZero() && res.Credited.IsZero() {
		return map[string]any{
			"debited":      0,
			"credited":     0,
			"transactions": 0,
			"total-pages":  res.TotalPages,
		}
	}

	transactions := res.Transactions
	if transactions == nil {
		transactions = []core.PaymentEvent{}
	}
	return map[string]any{
		"debited":      rawNumber(res.Debited),
		"credited":     rawNumber(res.Credited),
		"transactions": transactions,
		"total-pages":  res.TotalPages,
	}
}

// rawNumber renders a decimal as a bare JSON number, keeping exact
// digits without shopspring's default string quoting.
func rawNumber(d decimal.Decimal) json.RawMessage {
	return json.RawMessage(d.String())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
