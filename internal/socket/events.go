package socket

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Inbound and outbound envelope event names.
const (
	eventSessionStarted  = "session_started"
	eventSessionEnded    = "session_ended"
	eventTableRegistered = "table_registered"
	eventError           = "error"

	eventRegisterTable = "register_table"
	eventEndSession    = "end_session"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ConnectionEvent struct {
	Connected bool
	Reason    string
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type SessionStartedEvent struct {
	SessionID string `json:"session_id"`
	TableID   string `json:"table_id,omitempty"`
}

// Bill is the summary the server attaches when a session closes.
type Bill struct {
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	Currency  string          `json:"currency,omitempty"`
}

type SessionEndedEvent struct {
	SessionID string `json:"session_id"`
	Bill      *Bill  `json:"bill,omitempty"`
}

type TableRegisteredEvent struct {
	TableID string `json:"table_id"`
}

type registerTableRequest struct {
	TableID string `json:"table_id"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}
