package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type AvailabilityResponse struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

type FreeSlotsResponse struct {
	Day   string      `json:"day"`
	Slots []time.Time `json:"slots"`
}

type AlternativesResponse struct {
	Requested    time.Time   `json:"requested"`
	Alternatives []time.Time `json:"alternatives"`
}

type SuggestionResponse struct {
	Start     time.Time `json:"start"`
	Score     int       `json:"score"`
	Rationale string    `json:"rationale"`
}

type SuggestionsResponse struct {
	Suggestions []SuggestionResponse `json:"suggestions"`
}

type CreateBookingRequest struct {
	UserID string  `json:"user_id"`
	Start  string  `json:"start"`
	Reason *string `json:"reason,omitempty"`
}

type RescheduleBookingRequest struct {
	NewStart string `json:"new_start"`
}

type BookingResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	Reason    *string   `json:"reason,omitempty"`
	Status    string    `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
