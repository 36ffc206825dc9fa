package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent is returned when a consumed record cannot be decoded
// into a valid PaymentEvent. Such records are dropped by the engine, they
// are never retried.
var ErrMalformedEvent = errors.New("malformed payment event")

// PaymentEvent is one immutable payment transaction as consumed from the
// transactions stream. PaymentID is stamped by the aggregation engine
// from the record's log position; any id present in the payload is
// discarded.
type PaymentEvent struct {
	PaymentID       string `json:"paymentId"`
	IBAN            string `json:"iban"`
	Amount          Amount `json:"amount"`
	TransactionDate Date   `json:"transaction_date"`
	Description     string `json:"description"`
}

// DecodeEvent parses and validates a raw payment event payload. Any
// failure is reported as ErrMalformedEvent.
func DecodeEvent(data []byte) (PaymentEvent, error) {
	var e PaymentEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return PaymentEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if e.IBAN == "" {
		return PaymentEvent{}, fmt.Errorf("%w: missing iban", ErrMalformedEvent)
	}
	if e.Amount.Currency == "" {
		return PaymentEvent{}, fmt.Errorf("%w: missing amount", ErrMalformedEvent)
	}
	if e.TransactionDate.IsZero() {
		return PaymentEvent{}, fmt.Errorf("%w: missing transaction_date", ErrMalformedEvent)
	}
	// The payload may carry its own id; the log position wins.
	e.PaymentID = ""
	return e, nil
}

// AccountAggregate is the folded state for one IBAN: every payment event
// ever consumed for the account, in arrival order, plus the date of the
// most recent fold. Append is the only mutation.
type AccountAggregate struct {
	IBAN         string         `json:"iban"`
	Transactions []PaymentEvent `json:"transactions"`
	LastUpdate   Date           `json:"last_update"`
}

// Fold combines one event into the aggregate and returns the updated
// aggregate. The IBAN is taken from the first folded event and never
// changes afterwards.
func (a AccountAggregate) Fold(e PaymentEvent, on Date) AccountAggregate {
	if a.IBAN == "" {
		a.IBAN = e.IBAN
	}
	a.Transactions = append(a.Transactions, e)
	a.LastUpdate = on
	return a
}
