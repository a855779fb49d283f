package domain

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeInfo    OutcomeStatus = "info"
	OutcomeError   OutcomeStatus = "error"
)

// ToolOutcome is the structured result of a tool call. It is the payload of
// the provider's function-response channel, never shown to the diner as is.
type ToolOutcome struct {
	Status        OutcomeStatus `json:"status"`
	Message       string        `json:"message"`
	UserID        int64         `json:"user_id,omitempty"`
	ReservationID int64         `json:"reservation_id,omitempty"`
}

func ErrorOutcome(message string) ToolOutcome {
	return ToolOutcome{Status: OutcomeError, Message: message}
}

func InfoOutcome(message string) ToolOutcome {
	return ToolOutcome{Status: OutcomeInfo, Message: message}
}

// AsMap renders the outcome in the shape function-response payloads expect.
func (o ToolOutcome) AsMap() map[string]any {
	m := map[string]any{
		"status":  string(o.Status),
		"message": o.Message,
	}
	if o.UserID != 0 {
		m["user_id"] = o.UserID
	}
	if o.ReservationID != 0 {
		m["reservation_id"] = o.ReservationID
	}
	return m
}
