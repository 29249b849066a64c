package eventdesk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents an error response from the EventDesk API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an API error with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// ============================================================================
// Event Types
// ============================================================================

// EventID identifies an event. The server assigns numeric identifiers;
// records created while disconnected carry a temporary "temp-<timestamp>"
// identifier until the create is acknowledged.
type EventID string

// IsTemp reports whether the identifier is a client-side temporary one.
func (id EventID) IsTemp() bool {
	return strings.HasPrefix(string(id), "temp-")
}

// MarshalJSON emits server-assigned identifiers as JSON numbers and
// temporary identifiers as strings, matching the wire contract.
func (id EventID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts either form.
func (id *EventID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = EventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("event ID must be a number or string: %w", err)
	}
	*id = EventID(n.String())
	return nil
}

// NewTempID returns a fresh temporary identifier.
func NewTempID() EventID {
	return EventID(fmt.Sprintf("temp-%d", time.Now().UnixNano()))
}

// Event is a calendar entry for a sporting event.
type Event struct {
	ID          EventID `json:"ID"`
	Title       string  `json:"title"`
	Group       string  `json:"group"`
	Date        string  `json:"date"`       // YYYY-MM-DD
	StartTime   string  `json:"start_time"` // HH:MM
	EndTime     string  `json:"end_time"`   // HH:MM
	Description string  `json:"description"`

	// Queued marks a record still awaiting network synchronization.
	Queued bool `json:"_isQueued,omitempty"`
}

// EventInput is the payload for create and update requests.
type EventInput struct {
	Title       string `json:"title"`
	Group       string `json:"group"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
}

// Validate checks the input the way the server does: all fields are
// required and the start time must be strictly before the end time.
func (in *EventInput) Validate() error {
	if in.Title == "" || in.Group == "" || in.Date == "" ||
		in.StartTime == "" || in.EndTime == "" || in.Description == "" {
		return &APIError{StatusCode: 400, Message: "All fields are required"}
	}
	if minutesOfDay(in.StartTime) >= minutesOfDay(in.EndTime) {
		return &APIError{StatusCode: 400, Message: "Start time must be before end time"}
	}
	return nil
}

// Event builds an Event from the input with the given identifier.
func (in *EventInput) Event(id EventID) Event {
	return Event{
		ID:          id,
		Title:       in.Title,
		Group:       in.Group,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Description: in.Description,
	}
}

// ============================================================================
// Paginated Results
// ============================================================================

// PageMetadata describes the position of a page within the full result set.
type PageMetadata struct {
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	TotalItems      int  `json:"totalItems"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	Limit           int  `json:"limit"`
}

// EventPage is one page of events plus pagination metadata. Both the
// online and the offline read path return this shape.
type EventPage struct {
	Data     []Event      `json:"data"`
	Metadata PageMetadata `json:"metadata"`
}

// HealthStatus is the health-check response body.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
