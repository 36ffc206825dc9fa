package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldIBAN       = "iban"
	FieldMonth      = "month"
	FieldCurrency   = "currency"
	FieldPage       = "page"
	FieldPageSize   = "size"
	FieldTopic      = "topic"
	FieldPartition  = "partition"
	FieldOffset     = "offset"
	FieldPaymentID  = "payment_id"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentEngine = "engine"
	ComponentStore  = "store"
	ComponentStream = "stream"
	ComponentForex  = "forex"
	ComponentQuery  = "query"
)
